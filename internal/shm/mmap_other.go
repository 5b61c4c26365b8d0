//go:build !unix

package shm

// Map is unavailable off unix.
func Map(path string, offset int64, size int) (*Region, error) {
	return nil, ErrUnsupported
}

// Create is unavailable off unix.
func Create(path string, size int) (*Region, error) {
	return nil, ErrUnsupported
}

// Unmap is a no-op off unix.
func (r *Region) Unmap() error { return ErrUnsupported }

// Remove is a no-op off unix.
func (r *Region) Remove() error { return ErrUnsupported }
