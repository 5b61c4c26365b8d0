package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Archive writes lines to a zstd stream. Each Flush ends a zstd block, so
// a reader sees everything up to the last completed drain cycle.
type Archive struct {
	mu     sync.Mutex
	file   *os.File
	enc    *zstd.Encoder
	closed bool
}

// NewArchive appends to path, creating it if needed. Appended streams are
// valid concatenated zstd frames.
func NewArchive(path string) (*Archive, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Archive{file: file, enc: enc}, nil
}

// AppendLine implements shmlog.Sink.
func (a *Archive) AppendLine(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return os.ErrClosed
	}
	_, err := a.enc.Write(line)
	return err
}

// Flush implements shmlog.Flusher.
func (a *Archive) Flush(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.enc.Flush()
}

// Close finishes the frame and closes the file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.enc.Close()
	if cerr := a.file.Close(); err == nil {
		err = cerr
	}
	return err
}
