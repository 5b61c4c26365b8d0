// Package sink implements destinations for drained log lines.
//
// Every sink satisfies shmlog.Sink. Sinks that buffer within a drain cycle
// also implement shmlog.Flusher, and sinks holding files or connections
// implement io.Closer. Multi fans out to several of them.
//
//   - Logger: zap logger named "tee", one info entry per line
//   - File: size-rotated plain text (lumberjack)
//   - Archive: zstd-compressed stream, one block per cycle
//   - Remote: JSON batches posted to an HTTP collector from a background sender
//
// The live tail hub in package ws is also a sink.
package sink
