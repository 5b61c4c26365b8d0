//go:build unix

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps size bytes of path starting at byte offset. The offset does not
// need to be page-aligned.
func Map(path string, offset int64, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	region, err := mapFile(file, offset, size)
	if err != nil {
		file.Close()
		return nil, err
	}
	region.path = path
	return region, nil
}

// Create makes (or truncates) a file of size bytes and maps all of it.
func Create(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to size %s: %w", path, err)
	}

	region, err := mapFile(file, 0, size)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	region.path = path
	return region, nil
}

func mapFile(file *os.File, offset int64, size int) (*Region, error) {
	page := int64(unix.Getpagesize())
	base := offset &^ (page - 1)
	delta := int(offset - base)

	mapping, err := unix.Mmap(int(file.Fd()), base, delta+size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes at 0x%x failed: %w", size, offset, err)
	}

	return &Region{
		file:    file,
		mapping: mapping,
		mem:     mapping[delta : delta+size],
	}, nil
}

// Unmap releases the mapping and closes the backing file.
func (r *Region) Unmap() error {
	if r.mapping == nil {
		return ErrClosed
	}
	mapping := r.mapping
	r.mapping, r.mem = nil, nil

	err := unix.Munmap(mapping)
	if cerr := r.file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("munmap %s failed: %w", r.path, err)
	}
	return nil
}

// Remove unmaps the region and deletes its backing file.
func (r *Region) Remove() error {
	err := r.Unmap()
	if rerr := os.Remove(r.path); err == nil && rerr != nil {
		err = rerr
	}
	return err
}
