// Package testutil provides test doubles shared by the bridge's packages.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
)

// MockSink is a testify mock of a line sink.
type MockSink struct {
	mock.Mock
}

// AppendLine mocks the AppendLine method. The line is copied before it is
// recorded since callers reuse the buffer.
func (m *MockSink) AppendLine(line []byte) error {
	args := m.Called(string(line))
	return args.Error(0)
}

// NewMockSink creates a mock sink that accepts every line.
func NewMockSink(t *testing.T) *MockSink {
	t.Helper()
	m := new(MockSink)
	m.On("AppendLine", mock.Anything).Return(nil).Maybe()
	return m
}

// RecordingSink keeps a copy of every line it receives.
type RecordingSink struct {
	mu      sync.Mutex
	lines   []string
	flushes int
	notify  chan struct{}
}

// NewRecordingSink creates an empty recorder.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{notify: make(chan struct{}, 1)}
}

// AppendLine records a copy of line.
func (r *RecordingSink) AppendLine(line []byte) error {
	r.mu.Lock()
	r.lines = append(r.lines, string(bytes.Clone(line)))
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Flush counts flushes.
func (r *RecordingSink) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

// Lines returns a snapshot of the recorded lines.
func (r *RecordingSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Flushes returns how many times Flush was called.
func (r *RecordingSink) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Notify fires (coalesced) after each appended line.
func (r *RecordingSink) Notify() <-chan struct{} {
	return r.notify
}
