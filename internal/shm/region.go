package shm

import (
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrUnsupported = errors.New("shared memory mapping not supported on this platform")
	ErrClosed      = errors.New("region already unmapped")
	ErrEmpty       = errors.New("region size must be positive")
)

// Region is a mapped byte range. Bytes is only valid until Unmap.
type Region struct {
	path string
	file *os.File
	// mapping is the page-aligned slice returned by mmap; mem is the
	// caller's window into it.
	mapping []byte
	mem     []byte
}

// Path is the file or device backing the region.
func (r *Region) Path() string { return r.path }

// Bytes returns the mapped window.
func (r *Region) Bytes() []byte { return r.mem }

// Len is the size of the window.
func (r *Region) Len() int { return len(r.mem) }

// DefaultPath returns where the simulator and daemon meet by default.
func DefaultPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}
