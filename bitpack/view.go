package bitpack

// View describes a window into a byte slice without owning it. Views are
// handed across module boundaries instead of copies; a View must not outlive
// the buffer it references.
type View struct {
	Data   []byte
	Offset int
	Length int
}

// NewView wraps an entire byte slice.
func NewView(data []byte) View {
	return View{Data: data, Length: len(data)}
}

// Slice narrows the view to a sub-window relative to the current offset.
func (v View) Slice(offset, length int) View {
	return View{Data: v.Data, Offset: v.Offset + offset, Length: length}
}

// Bytes returns the referenced window. The result aliases the underlying
// buffer.
func (v View) Bytes() []byte {
	if v.Data == nil || v.Offset < 0 || v.Length < 0 || v.Offset+v.Length > len(v.Data) {
		return nil
	}
	return v.Data[v.Offset : v.Offset+v.Length]
}
