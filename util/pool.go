package util

import (
	"bytes"
	"sync"
)

// maxPooledBuf caps the capacity of buffers returned to the pool so that
// one very large board render does not pin memory for the process lifetime.
const maxPooledBuf = 64 * 1024

// BufPool provides reusable output buffers for Telnet line writes,
// reducing GC pressure when every session re-renders the board.
var BufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuf retrieves an empty buffer from the pool.  Callers must return
// it with [PutBuf] when finished.
func GetBuf() *bytes.Buffer {
	buf := BufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuf {
		return
	}
	BufPool.Put(buf)
}
