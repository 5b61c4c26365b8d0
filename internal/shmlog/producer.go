package shmlog

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Format lays out an empty log ring over mem: the data region takes every
// byte after DataOffset. The header is marked initialized last, so a
// consumer polling Validate never sees a half-built ring.
func Format(mem []byte) (*ControlBlock, error) {
	ctl, err := NewControlBlock(mem)
	if err != nil {
		return nil, err
	}
	if len(mem) <= DataOffset {
		return nil, fmt.Errorf("%w: no room for data", ErrBufferTooSmall)
	}

	atomic.StoreUint32(ctl.word(offInitialized), 0)
	atomic.StoreUint32(ctl.word(offMagic), BufferMagic)
	atomic.StoreUint32(ctl.word(offTotalSize), uint32(len(mem)-DataOffset))
	atomic.StoreUint32(ctl.word(offFillSize), 0)
	atomic.StoreUint32(ctl.word(offReader), 0)
	atomic.StoreUint32(ctl.word(offWriter), 0)
	atomic.StoreUint32(ctl.word(offInitialized), 1)
	return ctl, nil
}

// Producer is the writer side of the ring. It never waits for the consumer:
// unread bytes are overwritten when the ring is lapped.
type Producer struct {
	mu   sync.Mutex
	ctl  *ControlBlock
	data []byte
}

// NewProducer opens an already formatted region for writing.
func NewProducer(mem []byte) (*Producer, error) {
	ctl, data, err := Open(mem)
	if err != nil {
		return nil, err
	}
	return &Producer{ctl: ctl, data: data}, nil
}

// Write appends p at the writer cursor, wrapping at the end of the region.
func (p *Producer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := uint32(len(p.data))
	writer := p.ctl.WriterOffset()
	for rest := b; len(rest) > 0; {
		n := copy(p.data[writer:], rest)
		rest = rest[n:]
		writer = (writer + uint32(n)) % size
		atomic.StoreUint32(p.ctl.word(offWriter), writer)
	}

	fill := uint64(p.ctl.FillSize()) + uint64(len(b))
	if fill > uint64(size) {
		fill = uint64(size)
	}
	atomic.StoreUint32(p.ctl.word(offFillSize), uint32(fill))
	return len(b), nil
}

// Reset marks the ring uninitialized, as a producer tearing down would.
func (p *Producer) Reset() {
	atomic.StoreUint32(p.ctl.word(offInitialized), 0)
}
