package sink

import (
	"bytes"
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

// Func adapts a function to shmlog.Sink.
type Func func(line []byte) error

// AppendLine calls f.
func (f Func) AppendLine(line []byte) error { return f(line) }

// Multi fans every line out to several sinks. One failing sink does not
// keep the line from the others.
type Multi struct {
	sinks []shmlog.Sink
}

// NewMulti drops nil entries.
func NewMulti(sinks ...shmlog.Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len is the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// AppendLine implements shmlog.Sink.
func (m *Multi) AppendLine(line []byte) error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if err := s.AppendLine(line); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Flush flushes every sink that buffers.
func (m *Multi) Flush(ctx context.Context) error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if f, ok := s.(shmlog.Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// Close closes every sink that holds resources.
func (m *Multi) Close() error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// Logger forwards each line to a zap logger named "tee" at info level.
// The line is the message, never a template.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates the logger sink.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("tee")}
}

// AppendLine implements shmlog.Sink.
func (l *Logger) AppendLine(line []byte) error {
	l.logger.Info(string(bytes.TrimSuffix(line, []byte{'\n'})))
	return nil
}
