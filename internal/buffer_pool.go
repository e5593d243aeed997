// Package internal holds helpers shared by the saori packages.
package internal

import (
	"bytes"
	"sync"
)

// ByteBufferPool recycles bytes.Buffers used to assemble wire messages.
type ByteBufferPool struct {
	pool    sync.Pool
	maxSize int
}

// NewByteBufferPool returns a pool of buffers preallocated to initialSize.
// Buffers that grew beyond maxSize are dropped on Put so one huge message
// doesn't pin memory.
func NewByteBufferPool(initialSize, maxSize int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
		maxSize: maxSize,
	}
}

func (p *ByteBufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *ByteBufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > p.maxSize {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
