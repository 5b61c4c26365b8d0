package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/teelog/internal/shared/id"
)

// ErrRemoteStatus is returned when the collector answers with a non-2xx.
var ErrRemoteStatus = errors.New("remote collector rejected batch")

// RemoteConfig configures the remote sink.
type RemoteConfig struct {
	URL string
	// Source identifies this bridge in every batch; defaults to the hostname.
	Source string
	// MaxBatch caps the lines per POST.
	MaxBatch int
	// MaxBuffer caps lines held while the collector is unreachable; the
	// oldest are dropped first.
	MaxBuffer int

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultRemoteConfig returns the defaults used by teelogd.
func DefaultRemoteConfig(url string) RemoteConfig {
	return RemoteConfig{
		URL:          url,
		MaxBatch:     500,
		MaxBuffer:    10000,
		Timeout:      10 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// Batch is the JSON body posted to the collector.
type Batch struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	SentAt  time.Time `json:"sent_at"`
	Dropped int       `json:"dropped,omitempty"`
	Lines   []string  `json:"lines"`
}

// Remote buffers lines during a drain cycle and posts them as JSON batches
// from its own sender goroutine. Flush only wakes the sender, so a slow or
// unreachable collector never holds up the drain worker. Lines that fail to
// send are kept for the next attempt.
type Remote struct {
	cfg     RemoteConfig
	client  *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger

	mu      sync.Mutex
	pending []string
	dropped int
	sent    int

	// deliverMu serializes Deliver so batches leave in order.
	deliverMu sync.Mutex

	kick      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewRemote builds the HTTP client: retryablehttp retries transient
// failures under resty, and a circuit breaker stops posting to a collector
// that keeps failing.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote sink url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultRemoteConfig(cfg.URL)
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaults.MaxBatch
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = defaults.MaxBuffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Source == "" {
		cfg.Source, _ = os.Hostname()
	}
	logger = logger.Named("remote-sink")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "teelog/1.0").
		SetHeader("Content-Type", "application/json")

	breaker := resilience.New("remote-sink", resilience.Settings{
		MaxRequests:   1,
		Interval:      time.Minute,
		Timeout:       30 * time.Second,
		ReadyToTrip:   func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: resilience.LogStateChanges(logger),
	})

	r := &Remote{
		cfg:     cfg,
		client:  client,
		breaker: breaker,
		logger:  logger,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	go r.sender()
	return r, nil
}

func (r *Remote) sender() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.kick:
		}

		err := r.Deliver(r.ctx)
		switch {
		case err == nil, r.ctx.Err() != nil:
		case errors.Is(err, resilience.ErrCircuitOpen):
			r.logger.Debug("Collector circuit open, holding lines", zap.Int("pending", r.Pending()))
		default:
			r.logger.Warn("Failed to deliver batch", zap.Int("pending", r.Pending()), zap.Error(err))
		}
	}
}

// AppendLine implements shmlog.Sink.
func (r *Remote) AppendLine(line []byte) error {
	text := string(bytes.TrimSuffix(line, []byte{'\n'}))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, text)
	if over := len(r.pending) - r.cfg.MaxBuffer; over > 0 {
		r.pending = r.pending[over:]
		r.dropped += over
	}
	return nil
}

// Pending is the number of lines waiting to be sent.
func (r *Remote) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Sent is the number of lines the collector has accepted.
func (r *Remote) Sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Breaker exposes the circuit breaker state.
func (r *Remote) Breaker() *resilience.Breaker { return r.breaker }

// Flush implements shmlog.Flusher. It wakes the sender and returns at once.
func (r *Remote) Flush(context.Context) error {
	select {
	case r.kick <- struct{}{}:
	default:
	}
	return nil
}

// Deliver posts everything pending and waits for the result. It stops at
// the first failed batch and keeps that batch and everything after it.
func (r *Remote) Deliver(ctx context.Context) error {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	lines, dropped := r.pending, r.dropped
	r.pending, r.dropped = nil, 0
	r.mu.Unlock()

	for len(lines) > 0 {
		n := min(len(lines), r.cfg.MaxBatch)
		batch := Batch{
			ID:      id.NewBatchID().String(),
			Source:  r.cfg.Source,
			SentAt:  time.Now().UTC(),
			Dropped: dropped,
			Lines:   lines[:n],
		}

		if err := r.post(ctx, batch); err != nil {
			r.requeue(lines, dropped)
			return err
		}

		r.mu.Lock()
		r.sent += n
		r.mu.Unlock()
		lines, dropped = lines[n:], 0
	}
	return nil
}

func (r *Remote) requeue(lines []string, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(lines, r.pending...)
	r.dropped += dropped
	if over := len(r.pending) - r.cfg.MaxBuffer; over > 0 {
		r.pending = r.pending[over:]
		r.dropped += over
	}
}

func (r *Remote) post(ctx context.Context, batch Batch) error {
	body, err := sonic.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	return r.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := r.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(r.cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to post batch %s: %w", batch.ID, err)
		}
		if resp.IsError() {
			return fmt.Errorf("%w: batch %s: %s", ErrRemoteStatus, batch.ID, resp.Status())
		}
		r.logger.Debug("Batch delivered",
			zap.String("batch_id", batch.ID),
			zap.Int("lines", len(batch.Lines)),
		)
		return nil
	})
}

// Close stops the sender, abandoning any in-flight attempt, then makes one
// last delivery bounded by the request timeout. Later calls return the
// first call's result.
func (r *Remote) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
		defer cancel()
		r.closeErr = r.Deliver(ctx)
	})
	return r.closeErr
}
