package shmlog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink receives reassembled lines. The line is opaque text; it must never
// be used as a format string. The slice is only valid during the call.
type Sink interface {
	AppendLine(line []byte) error
}

type discard struct{}

func (discard) AppendLine([]byte) error { return nil }

// Flusher is implemented by sinks that buffer lines within a drain cycle.
// Flush runs on the drain worker at the end of every cycle and must not
// wait on I/O.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Observer is told about every drain cycle.
type Observer interface {
	ObserveDrain(stats Stats, err error)
}

// Stats describes one drain cycle.
type Stats struct {
	Skipped    bool
	Bytes      int
	Lines      int
	Synthetic  int
	SinkErrors int
	Reader     uint32
	Writer     uint32
	Wrapped    bool
	Duration   time.Duration
}

// Drainer runs single, bounded drain cycles. It is not safe for concurrent
// use; the scheduler guarantees cycles never overlap.
type Drainer struct {
	ring     *RingReader
	lines    *Reassembler
	sink     Sink
	readMax  int
	logger   *zap.Logger
	observer Observer
}

// NewDrainer wires a reader, a reassembler and a sink. A nil logger
// discards diagnostics.
func NewDrainer(ring *RingReader, lines *Reassembler, sink Sink, logger *zap.Logger) *Drainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = discard{}
	}
	return &Drainer{
		ring:    ring,
		lines:   lines,
		sink:    sink,
		readMax: DefaultReadMax,
		logger:  logger,
	}
}

// WithReadMax sets the per-cycle byte cap.
func (d *Drainer) WithReadMax(n int) *Drainer {
	if n > 0 {
		d.readMax = n
	}
	return d
}

// WithObserver attaches an observer, typically the metrics collector.
func (d *Drainer) WithObserver(o Observer) *Drainer {
	d.observer = o
	return d
}

// DrainOnce reads up to readMax bytes and forwards every line to the sink.
// Sink failures are counted and logged but do not stop the cycle. The only
// error returned is a reassembly inconsistency, which is also logged.
func (d *Drainer) DrainOnce(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats, err := d.drain(ctx)
	stats.Duration = time.Since(start)
	if d.observer != nil {
		d.observer.ObserveDrain(stats, err)
	}
	return stats, err
}

func (d *Drainer) drain(ctx context.Context) (Stats, error) {
	var stats Stats

	ctl := d.ring.ControlBlock()
	if ctl == nil {
		return stats, nil
	}
	if ctl.Mode() == ModeDisabled {
		stats.Skipped = true
		return stats, nil
	}

	stats.Writer = ctl.WriterOffset()
	chunk := d.ring.Drain(d.readMax)
	stats.Reader = ctl.ReaderOffset()
	stats.Wrapped = d.ring.Wrapped()
	if len(chunk) == 0 {
		return stats, nil
	}
	stats.Bytes = len(chunk)

	var firstErr error
	n, err := d.lines.Split(chunk, func(line Line) {
		if line.Synthetic {
			stats.Synthetic++
		}
		if sinkErr := d.sink.AppendLine(line.Bytes); sinkErr != nil {
			stats.SinkErrors++
			if firstErr == nil {
				firstErr = sinkErr
			}
		}
	})
	stats.Lines = n

	if stats.SinkErrors > 0 {
		d.logger.Warn("Sink rejected lines",
			zap.Int("failed", stats.SinkErrors),
			zap.Int("lines", stats.Lines),
			zap.Error(firstErr),
		)
	}
	if err != nil {
		d.logger.Error("Line reassembly inconsistent",
			zap.Int("bytes", stats.Bytes),
			zap.Int("lines", stats.Lines),
			zap.Error(err),
		)
	}

	if f, ok := d.sink.(Flusher); ok {
		if flushErr := f.Flush(ctx); flushErr != nil {
			d.logger.Warn("Sink flush failed", zap.Error(flushErr))
		}
	}

	return stats, err
}
