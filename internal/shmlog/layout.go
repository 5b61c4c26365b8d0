package shmlog

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	// BufferMagic marks a region the producer has laid out as a log ring.
	BufferMagic uint32 = 0xAA00AA00

	// DataOffset is where the data region starts, relative to the mapping.
	DataOffset = 0x80

	// DefaultReadMax caps one drain at a memory page.
	DefaultReadMax = 4096

	// DefaultLineMax is the longest line handed to a sink, counting the
	// newline and the NUL terminator.
	DefaultLineMax = 1024

	// ModeDisabled in the control block stops draining.
	ModeDisabled uint32 = 0
	// ModeEnabled is the mode the consumer writes at attach by default.
	ModeEnabled uint32 = 1
)

// Control block field offsets.
const (
	offMagic       = 0x00
	offInitialized = 0x04
	offTotalSize   = 0x08
	offFillSize    = 0x0C
	offMode        = 0x10
	offReader      = 0x14
	offWriter      = 0x18
)

var (
	ErrBufferTooSmall = errors.New("shared region smaller than log header")
	ErrMisaligned     = errors.New("shared region not 4-byte aligned")
	ErrInvalidBuffer  = errors.New("shared region is not a log buffer")
	ErrNotInitialized = errors.New("log buffer not initialized by producer")
	ErrBadSize        = errors.New("log buffer size does not fit mapping")
)

// ControlBlock is a view over the producer's header. All fields are 32-bit
// words accessed atomically since the producer writes concurrently.
type ControlBlock struct {
	mem []byte
}

// NewControlBlock wraps the start of a mapping. It does not validate the
// contents; see Validate.
func NewControlBlock(mem []byte) (*ControlBlock, error) {
	if len(mem) < DataOffset {
		return nil, fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, ErrMisaligned
	}
	return &ControlBlock{mem: mem[:DataOffset]}, nil
}

func (c *ControlBlock) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&c.mem[off]))
}

func (c *ControlBlock) Magic() uint32 { return atomic.LoadUint32(c.word(offMagic)) }
func (c *ControlBlock) Initialized() bool { return atomic.LoadUint32(c.word(offInitialized)) == 1 }
func (c *ControlBlock) TotalSize() uint32 { return atomic.LoadUint32(c.word(offTotalSize)) }
func (c *ControlBlock) FillSize() uint32 { return atomic.LoadUint32(c.word(offFillSize)) }
func (c *ControlBlock) Mode() uint32 { return atomic.LoadUint32(c.word(offMode)) }
func (c *ControlBlock) ReaderOffset() uint32 { return atomic.LoadUint32(c.word(offReader)) }
func (c *ControlBlock) WriterOffset() uint32 { return atomic.LoadUint32(c.word(offWriter)) }

// SetMode enables (non-zero) or disables draining.
func (c *ControlBlock) SetMode(mode uint32) { atomic.StoreUint32(c.word(offMode), mode) }

// SetReaderOffset is only called by the consumer.
func (c *ControlBlock) SetReaderOffset(off uint32) { atomic.StoreUint32(c.word(offReader), off) }

// Validate checks the header against the mapping it lives in.
func (c *ControlBlock) Validate() error {
	if magic := c.Magic(); magic != BufferMagic {
		return fmt.Errorf("%w: magic 0x%08x", ErrInvalidBuffer, magic)
	}
	if !c.Initialized() {
		return ErrNotInitialized
	}
	return nil
}

// Open validates the header at the start of mem and returns it together
// with the data region it describes.
func Open(mem []byte) (*ControlBlock, []byte, error) {
	ctl, err := NewControlBlock(mem)
	if err != nil {
		return nil, nil, err
	}
	if err := ctl.Validate(); err != nil {
		return nil, nil, err
	}
	size := ctl.TotalSize()
	if size == 0 || uint64(DataOffset)+uint64(size) > uint64(len(mem)) {
		return nil, nil, fmt.Errorf("%w: total_size %d, mapping %d", ErrBadSize, size, len(mem))
	}
	return ctl, mem[DataOffset : DataOffset+int(size)], nil
}

// RegionSize is the mapping size needed for a data region of size bytes.
func RegionSize(size uint32) int {
	return DataOffset + int(size)
}
