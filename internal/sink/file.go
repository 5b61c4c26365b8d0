package sink

import (
	"errors"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures the rotating file sink.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// MaxAgeDays of zero keeps rotated files forever.
	MaxAgeDays int
	Compress   bool
}

// File appends raw lines to a size-rotated file.
type File struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFile opens the file sink lazily; the file is created on first write.
func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.New("file sink path is empty")
	}
	return &File{
		out: &lumberjack.Logger{
			Filename:   filepath.Clean(cfg.Path),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}, nil
}

// AppendLine implements shmlog.Sink. Lines already end in a newline.
func (f *File) AppendLine(line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.out.Write(line)
	return err
}

// Rotate starts a new file, keeping the current one as a backup.
func (f *File) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Rotate()
}

// Close closes the current file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}
