// Package ratelimit implements the Rate-Limit / Circuit-Breaker Manager
// (C1): per-source token-bucket permits plus circuit-breaker state,
// modeled on the project's internal/errors.CircuitBreaker but generalized
// to hold one independent bucket and breaker per source and adapted to
// the exact transition rules the discovery core requires.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	scifinderrors "paperlink-discovery/internal/errors"
)

// Outcome is reported back to the manager after a permit is used.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

// Config configures one source's bucket and breaker.
type Config struct {
	Capacity            float64       // token bucket capacity (ceiling, not a target)
	RefillRatePerSecond float64       // tokens added per second
	FailureThreshold    int           // consecutive/windowed failures to open
	SlidingWindow       time.Duration // window for the failure threshold
	CooldownPeriod      time.Duration // OPEN -> HALF_OPEN delay
}

// DefaultConfigs mirrors spec §4.1's defaults, expressed as a ceiling.
func DefaultConfigs() map[string]Config {
	base := Config{
		FailureThreshold: 5,
		SlidingWindow:    60 * time.Second,
		CooldownPeriod:   30 * time.Second,
	}
	crossref := base
	crossref.Capacity = 45
	crossref.RefillRatePerSecond = 45

	semanticScholar := base
	semanticScholar.Capacity = 100
	semanticScholar.RefillRatePerSecond = 100.0 / 60.0

	perplexity := base
	perplexity.Capacity = 10
	perplexity.RefillRatePerSecond = 10.0 / 60.0

	return map[string]Config{
		"CROSSREF":         crossref,
		"SEMANTIC_SCHOLAR": semanticScholar,
		"PERPLEXITY":       perplexity,
	}
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

type failureBucket struct {
	timestamp time.Time
	failures  int
}

type sourceEntry struct {
	mu sync.Mutex

	cfg Config

	tokens     float64
	lastRefill time.Time

	state          breakerState
	openedAt       time.Time
	halfOpenInUse  bool
	failureBuckets []failureBucket

	totalAcquired int64
	totalRejected int64
}

func newSourceEntry(cfg Config) *sourceEntry {
	return &sourceEntry{
		cfg:        cfg,
		tokens:     cfg.Capacity,
		lastRefill: time.Now(),
		state:      stateClosed,
	}
}

// Manager owns one sourceEntry per named source.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*sourceEntry
	configs map[string]Config
	logger  *slog.Logger
}

// NewManager creates a Manager with the given per-source configs.
func NewManager(configs map[string]Config, logger *slog.Logger) *Manager {
	return &Manager{
		entries: make(map[string]*sourceEntry),
		configs: configs,
		logger:  logger,
	}
}

func (m *Manager) entry(source string) *sourceEntry {
	m.mu.RLock()
	e, ok := m.entries[source]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[source]; ok {
		return e
	}
	cfg, ok := m.configs[source]
	if !ok {
		cfg = Config{Capacity: 10, RefillRatePerSecond: 1, FailureThreshold: 5, SlidingWindow: 60 * time.Second, CooldownPeriod: 30 * time.Second}
	}
	e = newSourceEntry(cfg)
	m.entries[source] = e
	return e
}

// Permit is the right to make one outbound call, paired with exactly one
// Report call.
type Permit struct {
	source   string
	manager  *Manager
	reported bool
	mu       sync.Mutex
}

// Report records the outcome of the call this permit authorized. It is
// safe to call at most once; subsequent calls are no-ops.
func (p *Permit) Report(outcome Outcome) {
	p.mu.Lock()
	if p.reported {
		p.mu.Unlock()
		return
	}
	p.reported = true
	p.mu.Unlock()

	p.manager.report(p.source, outcome)
}

// Acquire blocks cooperatively until a token is available, the circuit is
// found open, or timeout elapses. It never holds a lock while parked.
func (m *Manager) Acquire(ctx context.Context, source string, timeout time.Duration) (*Permit, error) {
	e := m.entry(source)

	deadline := time.Now().Add(timeout)
	const pollInterval = 5 * time.Millisecond

	for {
		e.mu.Lock()
		now := time.Now()

		switch e.state {
		case stateOpen:
			if now.Sub(e.openedAt) >= e.cfg.CooldownPeriod {
				e.state = stateHalfOpen
				e.halfOpenInUse = false
				m.logger.Info("circuit breaker half-open", slog.String("source", source))
			} else {
				e.totalRejected++
				e.mu.Unlock()
				return nil, scifinderrors.NewSourceCircuitOpenError(source)
			}
		case stateHalfOpen:
			if e.halfOpenInUse {
				e.totalRejected++
				e.mu.Unlock()
				return nil, scifinderrors.NewSourceCircuitOpenError(source)
			}
		}

		m.refillLocked(e, now)

		if e.tokens >= 1 {
			e.tokens -= 1
			if e.state == stateHalfOpen {
				e.halfOpenInUse = true
			}
			e.totalAcquired++
			e.mu.Unlock()
			return &Permit{source: source, manager: m}, nil
		}
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, scifinderrors.NewDiscoveryTimeoutError("rate_limit_acquire")
		case <-time.After(pollInterval):
		}

		if time.Now().After(deadline) {
			return nil, scifinderrors.NewDiscoveryTimeoutError("rate_limit_acquire")
		}
	}
}

// refillLocked applies continuous refill; caller must hold e.mu.
func (m *Manager) refillLocked(e *sourceEntry, now time.Time) {
	elapsed := now.Sub(e.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	e.tokens = min(e.cfg.Capacity, e.tokens+elapsed*e.cfg.RefillRatePerSecond)
	e.lastRefill = now
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func (m *Manager) report(source string, outcome Outcome) {
	e := m.entry(source)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	isFailure := outcome == Failure

	switch e.state {
	case stateHalfOpen:
		e.halfOpenInUse = false
		if isFailure {
			e.state = stateOpen
			e.openedAt = now
			e.failureBuckets = nil
			m.logger.Warn("circuit breaker reopened", slog.String("source", source))
		} else {
			e.state = stateClosed
			e.failureBuckets = nil
			m.logger.Info("circuit breaker closed", slog.String("source", source))
		}
		return
	case stateOpen:
		// Shouldn't normally receive reports while open (no permits
		// granted), but handle defensively.
		return
	}

	// stateClosed: track failures in the sliding window.
	if isFailure {
		e.failureBuckets = append(e.failureBuckets, failureBucket{timestamp: now, failures: 1})
	}
	cutoff := now.Add(-e.cfg.SlidingWindow)
	kept := e.failureBuckets[:0]
	total := 0
	for _, b := range e.failureBuckets {
		if b.timestamp.After(cutoff) {
			kept = append(kept, b)
			total += b.failures
		}
	}
	e.failureBuckets = kept

	if total >= e.cfg.FailureThreshold {
		e.state = stateOpen
		e.openedAt = now
		e.failureBuckets = nil
		m.logger.Warn("circuit breaker opened", slog.String("source", source), slog.Int("window_failures", total))
	}
}

// Sources lists the names this Manager was configured with, for
// operational reads that want every source's snapshot.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sources := make([]string, 0, len(m.configs))
	for s := range m.configs {
		sources = append(sources, s)
	}
	return sources
}

// Reset is an administrative override that forces CLOSED.
func (m *Manager) Reset(source string) {
	e := m.entry(source)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = stateClosed
	e.halfOpenInUse = false
	e.failureBuckets = nil
}

// Stats returns a read-only snapshot for operational reads.
func (m *Manager) Stats(source string) RateLimiterSnapshot {
	e := m.entry(source)
	e.mu.Lock()
	defer e.mu.Unlock()

	failures := 0
	for _, b := range e.failureBuckets {
		failures += b.failures
	}

	var openedAt *time.Time
	if e.state == stateOpen {
		t := e.openedAt
		openedAt = &t
	}

	return RateLimiterSnapshot{
		Source:              source,
		Capacity:             e.cfg.Capacity,
		Tokens:               e.tokens,
		RefillRatePerSecond:  e.cfg.RefillRatePerSecond,
		LastRefill:           e.lastRefill,
		CircuitState:         e.state.String(),
		ConsecutiveFailures:  failures,
		OpenedAt:             openedAt,
		TotalAcquired:        e.totalAcquired,
		TotalRejected:        e.totalRejected,
	}
}

// RateLimiterSnapshot is the read-only view exposed to operational reads
// and to RateLimiterState persistence/reporting.
type RateLimiterSnapshot struct {
	Source              string
	Capacity             float64
	Tokens               float64
	RefillRatePerSecond  float64
	LastRefill           time.Time
	CircuitState         string
	ConsecutiveFailures  int
	OpenedAt             *time.Time
	TotalAcquired        int64
	TotalRejected        int64
}
