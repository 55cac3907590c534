// FILE: src/internal/collector/collector.go
// Package collector defines the Collector contract and the Supervisor
// that owns the journal, ring buffer, collector set, and bridge on one
// side of the fabric.
package collector

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/ringbuffer"
	"github.com/lixenwraith/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Collector is a long-lived worker that observes one signal source and
// emits EventRecords via the Supervisor's Emit entry point.
type Collector interface {
	// Name identifies the collector and becomes the emitted record's
	// Source field.
	Name() string
	// Start spawns the collector's worker. It must return promptly;
	// long-running work happens on the goroutine it starts.
	Start(ctx context.Context, sup *Supervisor) error
	// Stop signals the worker to exit and blocks until it has. Must be
	// idempotent.
	Stop()
}

// Forwarder hands a stamped record to the bridge's outbound queue. The
// supervisor is agnostic to whether a bridge is configured at all.
type Forwarder interface {
	EnqueueOutbound(event.Record)
}

// Supervisor owns one journal, one ring buffer, a collector set, and
// (optionally) a bridge for peer forwarding. It is the thread-safe
// facade every collector and the bridge's inbound callback call into.
type Supervisor struct {
	logger     *log.Logger
	jrnl       *journal.Journal
	ring       *ringbuffer.Buffer[event.Record]
	forwarder  Forwarder
	collectors []Collector
	hostname   string
	machineID  string

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limitRPS  float64
	limitBurst int

	group  *errgroup.Group
	cancel context.CancelFunc
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithForwarder attaches a bridge (or any Forwarder) that stamped
// records are cloned into for peer delivery.
func WithForwarder(f Forwarder) Option {
	return func(s *Supervisor) { s.forwarder = f }
}

// SetForwarder attaches the forwarder after construction, for callers
// whose bridge needs the supervisor's EmitInbound as its callback and
// so cannot exist before the supervisor does.
func (s *Supervisor) SetForwarder(f Forwarder) { s.forwarder = f }

// WithEmitRateLimit bounds how many records per second a single
// collector source may push into the journal, guarding the journal's
// single mutex against a pathological collector.
func WithEmitRateLimit(ratePerSecond float64, burst int) Option {
	return func(s *Supervisor) {
		s.limitRPS = ratePerSecond
		s.limitBurst = burst
	}
}

// WithMachineID overrides the auto-detected stable machine identifier.
func WithMachineID(id string) Option {
	return func(s *Supervisor) { s.machineID = id }
}

// New constructs a Supervisor over an already-open journal and ring
// buffer.
func New(logger *log.Logger, jrnl *journal.Journal, ring *ringbuffer.Buffer[event.Record], opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:   logger,
		jrnl:     jrnl,
		ring:     ring,
		limiters: make(map[string]*rate.Limiter),
		limitRPS: 50,
		limitBurst: 100,
	}
	if h, err := os.Hostname(); err == nil {
		s.hostname = h
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a collector to the supervised set. Call before Start.
func (s *Supervisor) Register(c Collector) {
	s.collectors = append(s.collectors, c)
}

// Start starts every registered collector with a context derived from
// ctx; each collector runs its own goroutines.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	s.group = group

	for _, c := range s.collectors {
		c := c
		if err := c.Start(gctx, s); err != nil {
			s.logger.Error("msg", "collector failed to start", "collector", c.Name(), "error", err)
			s.Emit(event.Record{
				Source:   c.Name(),
				Category: event.CategoryGeneral,
				Severity: event.SeverityError,
				Message:  fmt.Sprintf("collector failed to start: %v", err),
			})
		}
	}
}

// Stop signals every collector to stop and joins them, then cancels
// the shared context.
func (s *Supervisor) Stop() {
	for _, c := range s.collectors {
		c.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}
}

// Emit stamps a record with common attributes and defaults, appends it
// to the journal, pushes it into the ring, and (if a forwarder is
// configured) enqueues it outbound. Per-source rate limiting drops the
// record before any of that if the source is emitting too fast.
func (s *Supervisor) Emit(r event.Record) {
	if !s.allow(r.Source) {
		return
	}
	s.stampCommonAttributes(&r)

	stamped, err := s.jrnl.Append(r)
	if err != nil {
		s.logger.Warn("msg", "journal append failed", "source", r.Source, "error", err)
		return
	}
	s.ring.Push(stamped)
	if s.forwarder != nil {
		s.forwarder.EnqueueOutbound(stamped)
	}
}

// EmitInbound is the bridge's inbound callback target: a peer record
// re-enters the stamp/ring/journal pipeline but is never re-forwarded.
func (s *Supervisor) EmitInbound(r event.Record) {
	s.stampCommonAttributes(&r)
	stamped, err := s.jrnl.Append(r)
	if err != nil {
		s.logger.Warn("msg", "journal append failed for inbound peer record", "error", err)
		return
	}
	s.ring.Push(stamped)
}

func (s *Supervisor) stampCommonAttributes(r *event.Record) {
	if _, ok := r.Attribute("hostname"); !ok && s.hostname != "" {
		r.SetAttribute("hostname", s.hostname)
	}
	if _, ok := r.Attribute("machine_id"); !ok && s.machineID != "" {
		r.SetAttribute("machine_id", s.machineID)
	}
}

func (s *Supervisor) allow(source string) bool {
	if s.limitRPS <= 0 {
		return true
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.limitRPS), s.limitBurst)
		s.limiters[source] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Allow()
}

// Ring exposes the ring buffer for host-side snapshot consumers (none
// currently ship in this repo, but the daemons may add one).
func (s *Supervisor) Ring() *ringbuffer.Buffer[event.Record] { return s.ring }
