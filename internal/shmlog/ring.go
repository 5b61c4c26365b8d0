package shmlog

import "sync/atomic"

// RingReader hands out contiguous unread spans of the data region and
// advances the consumer cursor. A single goroutine may call Drain at a time;
// the producer runs concurrently without coordination.
type RingReader struct {
	ctl  *ControlBlock
	data []byte

	wraps  atomic.Uint64
	looped atomic.Bool
}

// NewRingReader creates a reader over data, the region described by ctl.
func NewRingReader(ctl *ControlBlock, data []byte) *RingReader {
	return &RingReader{ctl: ctl, data: data}
}

// ControlBlock returns the header the reader is bound to.
func (r *RingReader) ControlBlock() *ControlBlock {
	if r == nil {
		return nil
	}
	return r.ctl
}

// cursors loads both offsets and reports whether they are usable.
func (r *RingReader) cursors() (reader, writer uint32, ok bool) {
	if r == nil || r.ctl == nil || len(r.data) == 0 {
		return 0, 0, false
	}
	size := uint32(len(r.data))
	writer = r.ctl.WriterOffset()
	reader = r.ctl.ReaderOffset()
	if writer >= size || reader >= size {
		return 0, 0, false
	}
	return reader, writer, true
}

// contiguous is the number of unread bytes up to the physical end of the
// region.
func (r *RingReader) contiguous(reader, writer uint32) uint32 {
	switch {
	case reader == writer:
		return 0
	case reader < writer:
		return writer - reader
	default:
		return uint32(len(r.data)) - reader
	}
}

// Drain returns at most maxLen unread bytes and advances the reader cursor
// past them. A span never crosses the end of the region: after the producer
// wraps, the tail is returned first and the head on the next call.
//
// The returned slice aliases shared memory. Nil means nothing to read.
func (r *RingReader) Drain(maxLen int) []byte {
	if maxLen <= 0 {
		return nil
	}
	reader, writer, ok := r.cursors()
	if !ok {
		return nil
	}

	n := r.contiguous(reader, writer)
	if n == 0 {
		return nil
	}
	if reader > writer {
		r.looped.Store(true)
	}
	if n > uint32(maxLen) {
		n = uint32(maxLen)
	}

	next := reader + n
	if next == uint32(len(r.data)) {
		next = 0
		r.wraps.Add(1)
	}
	span := r.data[reader : reader+n]
	r.ctl.SetReaderOffset(next)
	return span
}

// Available reports the unread byte count across the wrap point without
// consuming anything.
func (r *RingReader) Available() int {
	reader, writer, ok := r.cursors()
	if !ok {
		return 0
	}
	if reader <= writer {
		return int(writer - reader)
	}
	return len(r.data) - int(reader) + int(writer)
}

// Size is the capacity of the data region.
func (r *RingReader) Size() int {
	if r == nil {
		return 0
	}
	return len(r.data)
}

// Wrapped reports whether the reader has ever followed the producer across
// the end of the region.
func (r *RingReader) Wrapped() bool { return r.looped.Load() }

// Wraps counts how many times the reader cursor went back to offset 0.
func (r *RingReader) Wraps() uint64 { return r.wraps.Load() }
