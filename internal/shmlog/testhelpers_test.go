package shmlog

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// newRing formats a region with a data area of size bytes.
func newRing(t *testing.T, size int) (*ControlBlock, []byte, []byte) {
	t.Helper()
	mem := make([]byte, RegionSize(uint32(size)))
	_, err := Format(mem)
	require.NoError(t, err)
	ctl, data, err := Open(mem)
	require.NoError(t, err)
	return ctl, data, mem
}

// setCursors places both cursors directly, bypassing the producer.
func setCursors(ctl *ControlBlock, reader, writer uint32) {
	atomic.StoreUint32(ctl.word(offReader), reader)
	atomic.StoreUint32(ctl.word(offWriter), writer)
}

// fill writes a recognizable byte pattern: data[i] = i.
func fill(data []byte) {
	for i := range data {
		data[i] = byte(i)
	}
}
