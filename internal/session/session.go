package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/shared/id"
	"github.com/GriffinCanCode/teelog/internal/shmlog"
	"github.com/GriffinCanCode/teelog/internal/workqueue"
)

// DefaultInterval is the delay between drain cycles.
const DefaultInterval = time.Second

// ErrDetached is returned by operations on a session after Detach.
var ErrDetached = errors.New("session detached")

// Config describes the region to attach to and how to drain it.
type Config struct {
	// Addr and Size are proposed to the producer; a reply carrying
	// AddrOverrideTag replaces them.
	Addr uint64
	Size uint32

	Interval time.Duration
	ReadMax  int
	LineMax  int
	// Mode is written into the control block at attach.
	Mode uint32
}

// DefaultConfig returns a config for the given region with drain defaults.
func DefaultConfig(addr uint64, size uint32) Config {
	return Config{
		Addr:     addr,
		Size:     size,
		Interval: DefaultInterval,
		ReadMax:  shmlog.DefaultReadMax,
		LineMax:  shmlog.DefaultLineMax,
		Mode:     shmlog.ModeEnabled,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ReadMax <= 0 {
		c.ReadMax = shmlog.DefaultReadMax
	}
	if c.LineMax <= 0 {
		c.LineMax = shmlog.DefaultLineMax
	}
	return c
}

// Metrics receives session events. *monitoring.Metrics implements it.
type Metrics interface {
	shmlog.Observer
	IncRearmFailures()
	RecordAttachFailure(reason string)
	SetSessionsActive(count int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDrain(shmlog.Stats, error) {}
func (nopMetrics) IncRearmFailures()                {}
func (nopMetrics) RecordAttachFailure(string)       {}
func (nopMetrics) SetSessionsActive(int)            {}

// Option customizes Attach.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics Metrics
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics reports drain cycles and session events to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Status is a point-in-time view of a session.
type Status struct {
	ID         string    `json:"id"`
	Addr       uint64    `json:"addr"`
	Size       uint32    `json:"size"`
	DataSize   int       `json:"data_size"`
	Reader     uint32    `json:"reader"`
	Writer     uint32    `json:"writer"`
	Available  int       `json:"available"`
	Fill       uint32    `json:"fill"`
	Wrapped    bool      `json:"wrapped"`
	Wraps      uint64    `json:"wraps"`
	Mode       uint32    `json:"mode"`
	Running    bool      `json:"running"`
	Detached   bool      `json:"detached"`
	AttachedAt time.Time `json:"attached_at"`
}

// Session is one attachment of the bridge to a producer's log ring. It
// owns the mapping, the drain work and the single worker that runs it.
type Session struct {
	id         id.SessionID
	cfg        Config
	attachedAt time.Time

	negotiator Negotiator
	mapping    Mapping
	ctl        *shmlog.ControlBlock
	ring       *shmlog.RingReader
	drainer    *shmlog.Drainer

	queue *workqueue.Queue
	work  *workqueue.DelayedWork

	ctx    context.Context
	cancel context.CancelFunc

	logger  *zap.Logger
	metrics Metrics

	running atomic.Bool

	// mu guards the mapping against Status and SetMode while Detach
	// unmaps it.
	mu        sync.RWMutex
	detached  bool
	detachErr error
}

// Attach negotiates a region with the producer, maps it, validates the
// control block and prepares the drain. Draining starts with Start.
func Attach(ctx context.Context, cfg Config, negotiator Negotiator, mapper Mapper, sink shmlog.Sink, opts ...Option) (*Session, error) {
	o := options{logger: zap.NewNop(), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	if negotiator == nil {
		negotiator = &StaticNegotiator{}
	}
	if mapper == nil {
		o.metrics.RecordAttachFailure("config")
		return nil, ErrNoMapper
	}
	cfg = cfg.withDefaults()

	reply, err := negotiator.SetLogger(ctx, true, cfg.Addr, cfg.Size)
	if err != nil {
		o.metrics.RecordAttachFailure("negotiation")
		return nil, fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	if reply.Status != StatusSuccess {
		o.metrics.RecordAttachFailure("negotiation")
		return nil, fmt.Errorf("%w: status 0x%x", ErrNegotiation, uint32(reply.Status))
	}
	if addr, size, ok := reply.Override(); ok {
		o.logger.Info("Producer overrode log region",
			zap.Uint64("requested_addr", cfg.Addr),
			zap.Uint32("requested_size", cfg.Size),
			zap.Uint64("addr", addr),
			zap.Uint32("size", size),
		)
		cfg.Addr, cfg.Size = addr, size
	}

	mapping, err := mapper.Map(cfg.Addr, cfg.Size)
	if err != nil {
		o.metrics.RecordAttachFailure("map")
		stop(ctx, negotiator, o.logger)
		return nil, fmt.Errorf("failed to map log region 0x%x+%d: %w", cfg.Addr, cfg.Size, err)
	}

	ctl, data, err := shmlog.Open(mapping.Bytes())
	if err != nil {
		o.metrics.RecordAttachFailure(failureReason(err))
		if uerr := mapping.Unmap(); uerr != nil {
			o.logger.Warn("Failed to unmap rejected region", zap.Error(uerr))
		}
		stop(ctx, negotiator, o.logger)
		return nil, fmt.Errorf("log buffer rejected: %w", err)
	}
	ctl.SetMode(cfg.Mode)

	lines, err := shmlog.NewReassembler(cfg.LineMax)
	if err != nil {
		o.metrics.RecordAttachFailure("config")
		if uerr := mapping.Unmap(); uerr != nil {
			o.logger.Warn("Failed to unmap region", zap.Error(uerr))
		}
		stop(ctx, negotiator, o.logger)
		return nil, err
	}

	sid := id.NewSessionID()
	logger := o.logger.With(zap.String("session_id", sid.String()))
	ring := shmlog.NewRingReader(ctl, data)

	s := &Session{
		id:         sid,
		cfg:        cfg,
		attachedAt: time.Now(),
		negotiator: negotiator,
		mapping:    mapping,
		ctl:        ctl,
		ring:       ring,
		drainer: shmlog.NewDrainer(ring, lines, sink, logger).
			WithReadMax(cfg.ReadMax).
			WithObserver(o.metrics),
		queue:   workqueue.New("tee-log-wq", logger),
		logger:  logger,
		metrics: o.metrics,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.work = s.queue.NewDelayedWork(s.tick)
	s.metrics.SetSessionsActive(1)

	logger.Info("Attached to log region",
		zap.Uint64("addr", cfg.Addr),
		zap.Uint32("size", cfg.Size),
		zap.Int("data_size", ring.Size()),
		zap.Uint32("mode", cfg.Mode),
	)
	return s, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, shmlog.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, shmlog.ErrInvalidBuffer):
		return "bad_magic"
	default:
		return "layout"
	}
}

func stop(ctx context.Context, negotiator Negotiator, logger *zap.Logger) {
	if _, err := negotiator.SetLogger(ctx, false, 0, 0); err != nil {
		logger.Warn("Failed to notify producer of logger stop", zap.Error(err))
	}
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// Config returns the effective config, including any producer override.
func (s *Session) Config() Config { return s.cfg }

// Running reports whether drain cycles are being scheduled.
func (s *Session) Running() bool { return s.running.Load() }

// Start queues the first drain one interval from now. Each cycle re-arms
// itself. Calling Start on a running session is a no-op.
func (s *Session) Start() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detached {
		return ErrDetached
	}

	s.running.Store(true)
	if err := s.work.Schedule(s.cfg.Interval); err != nil {
		if errors.Is(err, workqueue.ErrPending) {
			return nil
		}
		s.running.Store(false)
		return fmt.Errorf("failed to queue drain: %w", err)
	}
	s.logger.Debug("Drain scheduled", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// tick runs on the queue's worker, so cycles never overlap.
func (s *Session) tick() {
	s.drainer.DrainOnce(s.ctx)

	err := s.work.Schedule(s.cfg.Interval)
	switch {
	case err == nil, errors.Is(err, workqueue.ErrPending):
	case errors.Is(err, workqueue.ErrCanceled):
		s.running.Store(false)
	default:
		// The queue is gone without a cancel; nothing will run again.
		s.running.Store(false)
		s.metrics.IncRearmFailures()
		s.logger.Error("Failed to re-arm log drain, draining stopped", zap.Error(err))
	}
}

// DrainNow runs one cycle on the worker outside the regular schedule.
func (s *Session) DrainNow(ctx context.Context) (shmlog.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detached {
		return shmlog.Stats{}, ErrDetached
	}

	type result struct {
		stats shmlog.Stats
		err   error
	}
	done := make(chan result, 1)
	work := s.queue.NewDelayedWork(func() {
		stats, err := s.drainer.DrainOnce(ctx)
		done <- result{stats, err}
	})
	if err := work.Schedule(0); err != nil {
		return shmlog.Stats{}, err
	}

	select {
	case r := <-done:
		return r.stats, r.err
	case <-ctx.Done():
		work.CancelSync()
		return shmlog.Stats{}, ctx.Err()
	}
}

// SetMode writes the consumer mode into the control block. Zero disables
// draining; cycles keep running and skip.
func (s *Session) SetMode(mode uint32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detached {
		return ErrDetached
	}
	s.ctl.SetMode(mode)
	s.logger.Info("Log mode changed", zap.Uint32("mode", mode))
	return nil
}

// Mode reads the current mode from the control block.
func (s *Session) Mode() (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detached {
		return 0, ErrDetached
	}
	return s.ctl.Mode(), nil
}

// Status snapshots the cursors and session state.
func (s *Session) Status() Status {
	st := Status{
		ID:         s.id.String(),
		Addr:       s.cfg.Addr,
		Size:       s.cfg.Size,
		Running:    s.running.Load(),
		AttachedAt: s.attachedAt,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detached {
		st.Detached = true
		return st
	}

	st.DataSize = s.ring.Size()
	st.Reader = s.ctl.ReaderOffset()
	st.Writer = s.ctl.WriterOffset()
	st.Available = s.ring.Available()
	st.Fill = s.ctl.FillSize()
	st.Wrapped = s.ring.Wrapped()
	st.Wraps = s.ring.Wraps()
	st.Mode = s.ctl.Mode()
	return st
}

// Detach stops the drain, waiting for an in-flight cycle, then unmaps the
// region and tells the producer logging has stopped. Unread bytes are
// abandoned. Later calls return the first call's result.
func (s *Session) Detach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return s.detachErr
	}

	s.cancel()
	s.work.CancelSync()
	s.queue.Destroy()
	s.running.Store(false)

	var result *multierror.Error
	if err := s.mapping.Unmap(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to unmap log region: %w", err))
	}
	if _, err := s.negotiator.SetLogger(ctx, false, 0, 0); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to stop producer logger: %w", err))
	}

	s.detached = true
	s.detachErr = result.ErrorOrNil()
	s.metrics.SetSessionsActive(0)
	s.logger.Info("Detached from log region", zap.Error(s.detachErr))
	return s.detachErr
}
