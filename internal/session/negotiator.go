package session

import (
	"context"
	"errors"
	"sync"
)

const (
	// StatusSuccess is the only negotiation status that lets attach proceed.
	StatusSuccess int32 = 0

	// AddrOverrideTag in a reply means Addr and Size replace the request.
	AddrOverrideTag uint32 = 0x1001
)

// ErrNegotiation is returned when the producer refuses to start logging.
var ErrNegotiation = errors.New("set logger negotiation failed")

// Negotiation is the producer's answer to a SetLogger request.
type Negotiation struct {
	Status int32
	Tag    uint32
	Addr   uint64
	Size   uint32
}

// Override reports the region the reply asks the consumer to use instead of
// the requested one.
func (n Negotiation) Override() (addr uint64, size uint32, ok bool) {
	if n.Tag != AddrOverrideTag {
		return 0, 0, false
	}
	return n.Addr, n.Size, true
}

// Negotiator tells the producer that logging starts (start=true, with the
// region the consumer proposes) or stops (start=false).
type Negotiator interface {
	SetLogger(ctx context.Context, start bool, addr uint64, size uint32) (Negotiation, error)
}

// StaticNegotiator accepts every request without overriding the region.
// It is used when the producer lays out the region on its own, as the
// simulator does.
type StaticNegotiator struct {
	mu      sync.Mutex
	started bool
}

// SetLogger records the requested state and reports success.
func (s *StaticNegotiator) SetLogger(_ context.Context, start bool, _ uint64, _ uint32) (Negotiation, error) {
	s.mu.Lock()
	s.started = start
	s.mu.Unlock()
	return Negotiation{Status: StatusSuccess}, nil
}

// Started reports the last state requested.
func (s *StaticNegotiator) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
