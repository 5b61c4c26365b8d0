// Package shmlog drains a secure-world log ring out of shared memory.
//
// The producer (a trusted execution environment) appends raw text into a
// fixed-size data region and advances a writer cursor in a control block
// placed at the start of the mapping. This package is the consumer side:
//
//   - ControlBlock: typed, atomic view of the shared header
//   - RingReader: bounded, contiguous reads that advance the reader cursor
//   - Reassembler: splits drained bytes into bounded newline-terminated lines
//   - Drainer: one drain cycle (read, split, forward to a Sink)
//   - Producer: writer side, used by the simulator and in tests
//
// Memory Layout:
//
//	0x00 magic        0x04 initialized   0x08 total_size  0x0C fill_size
//	0x10 mode         0x14 reader        0x18 writer      ... padding
//	0x80 data region (total_size bytes)
//
// The channel is lossy by construction: the producer never waits for the
// consumer, and an empty ring (reader == writer) cannot be told apart from
// a ring the producer has lapped exactly.
//
// Example Usage:
//
//	ctl, data, err := shmlog.Open(mem)
//	reader := shmlog.NewRingReader(ctl, data)
//	lines, _ := shmlog.NewReassembler(shmlog.DefaultLineMax)
//	drainer := shmlog.NewDrainer(reader, lines, sink, logger)
//	stats, err := drainer.DrainOnce(ctx)
package shmlog
