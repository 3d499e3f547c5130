package dataset

import (
	"bytes"
	"sync"
)

// maxPooledBuf keeps oversized buffers (a full gauge configuration can be
// hundreds of MB) from pinning memory in the pool.
const maxPooledBuf = 16 << 20

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// getBuf takes a reset buffer from the pool.
func getBuf() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// putBuf returns b to the pool unless it grew too large.
func putBuf(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuf {
		return
	}
	bufPool.Put(b)
}
