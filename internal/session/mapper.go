package session

import (
	"errors"

	"github.com/GriffinCanCode/teelog/internal/shm"
)

// ErrNoMapper is returned by Attach when no Mapper is given.
var ErrNoMapper = errors.New("no mapper for log region")

// Mapping is a mapped shared region.
type Mapping interface {
	Bytes() []byte
	Unmap() error
}

// Mapper maps size bytes of shared memory at addr.
type Mapper interface {
	Map(addr uint64, size uint32) (Mapping, error)
}

// FileMapper maps a file or device such as /dev/mem or a /dev/shm file.
// The address is used as the byte offset into it.
type FileMapper struct {
	Path string
}

// Map implements Mapper.
func (m FileMapper) Map(addr uint64, size uint32) (Mapping, error) {
	region, err := shm.Map(m.Path, int64(addr), int(size))
	if err != nil {
		return nil, err
	}
	return region, nil
}
