// Package usage records billing units and agent activity off the request path.
//
// A Sink owns one background worker draining a bounded queue. Submitting never
// blocks: when the queue is full the record is dropped and counted.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// DefaultBufferSize is the queue capacity used when none is configured.
const DefaultBufferSize = 256

// DefaultWriteTimeout bounds each store or publish call made by the worker.
const DefaultWriteTimeout = 5 * time.Second

var (
	// ErrDropped is returned when the queue is full.
	ErrDropped = errors.New("usage queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("usage sink closed")
)

// UsageWriter persists usage records.
type UsageWriter interface {
	InsertUsage(ctx context.Context, rec *domain.UsageRecord) error
}

// Stats counts what the sink has done since it started.
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

type job struct {
	usage *domain.UsageRecord
	log   *domain.AgentLog
}

// Sink is an asynchronous, bounded writer for usage records and agent logs.
type Sink struct {
	usage        UsageWriter
	publisher    ports.EventPublisher
	jobs         chan job
	writeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.jobs = make(chan job, n)
		}
	}
}

// WithWriteTimeout bounds each write made by the worker.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithClock sets the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		s.now = now
	}
}

// NewSink starts a sink. Either writer may be nil, in which case that kind of
// record is discarded.
func NewSink(usage UsageWriter, publisher ports.EventPublisher, opts ...Option) *Sink {
	s := &Sink{
		usage:        usage,
		publisher:    publisher,
		jobs:         make(chan job, DefaultBufferSize),
		writeTimeout: DefaultWriteTimeout,
		logger:       slog.Default(),
		now:          time.Now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// RecordUsage queues a usage record. The context is not retained.
func (s *Sink) RecordUsage(_ context.Context, rec *domain.UsageRecord) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	return s.submit(job{usage: &cp})
}

// LogAgent queues an agent activity log.
func (s *Sink) LogAgent(_ context.Context, log *domain.AgentLog) error {
	if log == nil {
		return nil
	}
	cp := *log
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	return s.submit(job{log: &cp})
}

func (s *Sink) submit(j job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return ErrClosed
	}
	select {
	case s.jobs <- j:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("usage queue full, dropping record", slog.Int64("dropped", s.dropped.Load()))
		return ErrDropped
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for j := range s.jobs {
		s.write(j)
	}
}

func (s *Sink) write(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	var err error
	switch {
	case j.usage != nil:
		if s.usage == nil {
			return
		}
		err = s.usage.InsertUsage(ctx, j.usage)
	case j.log != nil:
		if s.publisher == nil {
			return
		}
		err = s.publisher.Publish(ctx, j.log)
	}

	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("failed to write usage record", slog.String("error", err.Error()))
		return
	}
	s.written.Add(1)
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Written: s.written.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
	}
}

// Close stops accepting records and waits until the queue is drained or ctx
// is done.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
