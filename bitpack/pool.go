package bitpack

import "sync"

// Buffers are pooled so per-packet serialization does not allocate. A
// checkout lasts for one serialize/deserialize call; callers must return the
// buffer on every path, errors included.
//
//	buf := bitpack.Get(bitpack.ModeWrite)
//	defer bitpack.Put(buf)
var pool = sync.Pool{
	New: func() any { return NewBuffer(defaultCapacity) },
}

// Get checks a buffer out of the pool, reset to the requested mode.
func Get(mode Mode) *Buffer {
	b := pool.Get().(*Buffer)
	b.Reset(mode)
	return b
}

// Put returns a buffer to the pool. The buffer must not be used afterwards,
// and no View into it may be outstanding.
func Put(b *Buffer) {
	if b == nil {
		return
	}
	pool.Put(b)
}
