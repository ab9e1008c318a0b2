// Package bitpack implements the bit-addressable buffer every wire payload
// is serialized through.
//
// Bit order is fixed once for the whole protocol: bits fill each byte
// starting at the least-significant position, and multi-byte values are
// little-endian. Changing either would break every peer on the wire.
package bitpack

import "errors"

var (
	// ErrBitWidth is returned when a read or write asks for more than 64
	// bits at once.
	ErrBitWidth = errors.New("bitpack: bit width must be between 1 and 64")

	// ErrBufferUnderrun is returned when a read would pass the end of the
	// buffer's valid data. The current decode cannot continue.
	ErrBufferUnderrun = errors.New("bitpack: read past end of buffer")

	// ErrWrapperOverflow is returned when writing to a wrapped buffer.
	// Wrapped storage is borrowed for decoding and never written to.
	ErrWrapperOverflow = errors.New("bitpack: write to wrapped buffer")
)

// Mode selects the direction a buffer is currently used in.
type Mode int

const (
	ModeWrite Mode = iota
	ModeRead
)

const defaultCapacity = 64

// Buffer is a growable bit-addressable read/write buffer.
//
// A Buffer owns its storage unless rebound with MakeWrapper, in which case it
// borrows externally-owned bytes and refuses to grow. Owned storage doubles
// on overflow and never shrinks.
type Buffer struct {
	owned     []byte
	data      []byte
	position  int // cursor, in bits
	valid     int // valid data, in bits
	mode      Mode
	isWrapper bool
}

// NewBuffer allocates an owned buffer with the given initial capacity in
// bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	owned := make([]byte, capacity)
	return &Buffer{owned: owned, data: owned}
}

// Reset rewinds the cursor, rebinds owned storage, and sets the direction.
// Pooled buffers are reset on every checkout.
func (b *Buffer) Reset(mode Mode) {
	b.data = b.owned
	b.isWrapper = false
	b.mode = mode
	b.position = 0
	if mode == ModeWrite {
		b.valid = 0
	} else if b.valid > len(b.data)*8 {
		// A previous wrapper binding may have been longer than the owned
		// storage the buffer just rebound to.
		b.valid = len(b.data) * 8
	}
	// ModeRead keeps the high-water mark so reads stop at real data.
}

// MakeWrapper rebinds the buffer to externally-owned bytes so an incoming
// frame can be decoded without copying it. The wrapped storage is never
// written to or grown; reads stop hard at the view's length.
func (b *Buffer) MakeWrapper(view View) {
	b.data = view.Bytes()
	b.isWrapper = true
	b.mode = ModeRead
	b.position = 0
	b.valid = len(b.data) * 8
}

// Mode reports the direction the buffer was last reset to.
func (b *Buffer) Mode() Mode { return b.mode }

// IsWrapper reports whether the buffer borrows its storage.
func (b *Buffer) IsWrapper() bool { return b.isWrapper }

// PositionBits returns the cursor position in bits.
func (b *Buffer) PositionBits() int { return b.position }

// Length returns the buffer's valid data length in bytes: the borrowed
// length for a wrapper, bytes touched so far (bit-precise, rounded up)
// for an owned buffer.
func (b *Buffer) Length() int { return (b.valid + 7) / 8 }

// Bytes returns the valid portion of the buffer. The result aliases the
// buffer's storage and is invalidated by the next write or reset.
func (b *Buffer) Bytes() []byte { return b.data[:b.Length()] }

// View returns a non-owning descriptor over the valid portion.
func (b *Buffer) View() View { return View{Data: b.data, Length: b.Length()} }

// WriteBits writes the low width bits of value at the cursor and advances
// it. Owned storage doubles when the write would overflow. Wrapped storage
// is read-only: any write fails with ErrWrapperOverflow, in-bounds or not.
func (b *Buffer) WriteBits(value uint64, width int) error {
	if width < 1 || width > 64 {
		return ErrBitWidth
	}
	if b.isWrapper {
		return ErrWrapperOverflow
	}
	if err := b.ensure(width); err != nil {
		return err
	}
	pos := b.position
	for width > 0 {
		byteIdx := pos >> 3
		bitIdx := pos & 7
		n := 8 - bitIdx
		if n > width {
			n = width
		}
		mask := byte((1 << n) - 1)
		b.data[byteIdx] &^= mask << bitIdx
		b.data[byteIdx] |= (byte(value) & mask) << bitIdx
		value >>= n
		pos += n
		width -= n
	}
	b.position = pos
	if pos > b.valid {
		b.valid = pos
	}
	return nil
}

// ReadBits reads width bits at the cursor and advances it. Reading past the
// valid length fails with ErrBufferUnderrun and leaves the cursor where it
// was; the current decode is unrecoverable at that point.
func (b *Buffer) ReadBits(width int) (uint64, error) {
	if width < 1 || width > 64 {
		return 0, ErrBitWidth
	}
	if b.position+width > b.valid {
		return 0, ErrBufferUnderrun
	}
	var out uint64
	shift := 0
	pos := b.position
	for width > 0 {
		byteIdx := pos >> 3
		bitIdx := pos & 7
		n := 8 - bitIdx
		if n > width {
			n = width
		}
		mask := byte((1 << n) - 1)
		out |= uint64((b.data[byteIdx]>>bitIdx)&mask) << shift
		shift += n
		pos += n
		width -= n
	}
	b.position = pos
	return out, nil
}

// WriteBytes writes a byte sequence, processing 64-bit chunks first and the
// remaining tail byte by byte. Equivalent to the matching sequence of
// WriteBits calls.
func (b *Buffer) WriteBytes(data []byte) error {
	i := 0
	for ; i+8 <= len(data); i += 8 {
		chunk := uint64(data[i]) | uint64(data[i+1])<<8 | uint64(data[i+2])<<16 | uint64(data[i+3])<<24 |
			uint64(data[i+4])<<32 | uint64(data[i+5])<<40 | uint64(data[i+6])<<48 | uint64(data[i+7])<<56
		if err := b.WriteBits(chunk, 64); err != nil {
			return err
		}
	}
	for ; i < len(data); i++ {
		if err := b.WriteBits(uint64(data[i]), 8); err != nil {
			return err
		}
	}
	return nil
}

// ReadBytes reads count bytes, processing 64-bit chunks first and the tail
// byte by byte.
func (b *Buffer) ReadBytes(count int) ([]byte, error) {
	if count < 0 {
		return nil, ErrBufferUnderrun
	}
	out := make([]byte, count)
	i := 0
	for ; i+8 <= count; i += 8 {
		chunk, err := b.ReadBits(64)
		if err != nil {
			return nil, err
		}
		out[i] = byte(chunk)
		out[i+1] = byte(chunk >> 8)
		out[i+2] = byte(chunk >> 16)
		out[i+3] = byte(chunk >> 24)
		out[i+4] = byte(chunk >> 32)
		out[i+5] = byte(chunk >> 40)
		out[i+6] = byte(chunk >> 48)
		out[i+7] = byte(chunk >> 56)
	}
	for ; i < count; i++ {
		v, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Skip advances the cursor without touching buffer contents. In write mode
// the skipped region is reserved (and zeroed storage is kept as-is); in read
// mode skipping past the valid length fails like a read would.
func (b *Buffer) Skip(bits int) error {
	if bits < 0 {
		return ErrBitWidth
	}
	if b.mode == ModeRead {
		if b.position+bits > b.valid {
			return ErrBufferUnderrun
		}
		b.position += bits
		return nil
	}
	if err := b.ensure(bits); err != nil {
		return err
	}
	b.position += bits
	if b.position > b.valid {
		b.valid = b.position
	}
	return nil
}

func (b *Buffer) ensure(bits int) error {
	need := (b.position + bits + 7) / 8
	if need <= len(b.data) {
		return nil
	}
	if b.isWrapper {
		return ErrWrapperOverflow
	}
	capacity := len(b.owned) * 2
	if capacity == 0 {
		capacity = defaultCapacity
	}
	for capacity < need {
		capacity *= 2
	}
	grown := make([]byte, capacity)
	copy(grown, b.owned)
	b.owned = grown
	b.data = grown
	return nil
}
