// Package task implements the Agent Task Substrate (C6): a durable
// single-table model for asynchronous units of work, with retry policy,
// a cost hook, and read-only metrics. RetryPolicy.delayFor keeps the
// base/factor/jitter/cap exponential-backoff shape the project's error
// package used for retries; the durable table itself has no direct
// teacher equivalent and is built on the project's NATS JetStream KV
// store.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	scifinderrors "paperlink-discovery/internal/errors"
)

// KVStore is the durable substrate the task table is built on: get/put/
// delete plus the two scan operations spec §6 requires for recovery and
// cleanup sweeps.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ScanByStatus(ctx context.Context, status string) ([]string, error)
	ScanOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// CreditLedger is the external cost/credit collaborator (§6 outbound #2).
type CreditLedger interface {
	Charge(ctx context.Context, operation, userID string) (ok bool, err error)
	Record(ctx context.Context, operation, userID string, costUnits float64, taskID string)
}

// Status mirrors dtypes.TaskStatus but is re-declared here to keep the
// substrate importable without a hard dependency on the discovery types
// package (the substrate is domain-agnostic: any agent can use it).
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusTimedOut   Status = "TIMED_OUT"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Record is the durable row persisted for one task.
type Record struct {
	TaskID     string     `json:"task_id"`
	AgentID    string     `json:"agent_id"`
	UserID     string     `json:"user_id"`
	Input      []byte     `json:"input"`
	Status     Status     `json:"status"`
	Result     []byte     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Attempts   int        `json:"attempts"`
}

// RetryPolicy matches spec §4.6: exponential backoff, base 1s, factor 2,
// jitter ±25%, cap 30s, at most MaxAttempts, only transient failures retried.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Factor        float64
	JitterPercent float64
	MaxDelay      time.Duration
}

// DefaultRetryPolicy is spec's default per-agent policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		Factor:        2,
		JitterPercent: 0.25,
		MaxDelay:      30 * time.Second,
	}
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	jitter := d * p.JitterPercent * (rand.Float64()*2 - 1)
	d += jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Metrics is the read-only snapshot exposed by the substrate.
type Metrics struct {
	QueuedMillis   int64
	RunMillis      int64
	SuccessCount   int64
	FailureByKind  map[string]int64
	RetryCount     int64
}

// Fn is the body a task runs; it must observe ctx cancellation.
type Fn func(ctx context.Context) ([]byte, error)

// ClassifyFn decides whether an error returned by Fn is transient
// (eligible for retry) or fatal (terminate immediately).
type ClassifyFn func(err error) (transient bool)

// Substrate is the durable task table plus execution engine.
type Substrate struct {
	store  KVStore
	ledger CreditLedger
	logger *slog.Logger
	policy RetryPolicy

	mu       sync.Mutex // serializes PENDING->PROCESSING per task_id
	running  map[string]struct{}
	metrics  Metrics
	metricMu sync.Mutex
}

// New creates a Substrate backed by the given durable store.
func New(store KVStore, ledger CreditLedger, logger *slog.Logger) *Substrate {
	return &Substrate{
		store:   store,
		ledger:  ledger,
		logger:  logger,
		policy:  DefaultRetryPolicy(),
		running: make(map[string]struct{}),
		metrics: Metrics{FailureByKind: make(map[string]int64)},
	}
}

// WithRetryPolicy overrides the default retry policy.
func (s *Substrate) WithRetryPolicy(p RetryPolicy) *Substrate {
	s.policy = p
	return s
}

const taskTTL = 7 * 24 * time.Hour

func taskKey(taskID string) string { return "task/" + taskID }

// Create inserts a new PENDING task and returns its id.
func (s *Substrate) Create(ctx context.Context, agentID, userID string, input []byte) (string, error) {
	taskID := uuid.NewString()
	rec := Record{
		TaskID:    taskID,
		AgentID:   agentID,
		UserID:    userID,
		Input:     input,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, taskKey(taskID), raw, taskTTL); err != nil {
		return "", scifinderrors.NewPersistenceFaultError("task_create", err)
	}
	return taskID, nil
}

// Status returns the current status of a task.
func (s *Substrate) Status(ctx context.Context, taskID string) (Status, error) {
	rec, err := s.load(ctx, taskID)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

func (s *Substrate) load(ctx context.Context, taskID string) (*Record, error) {
	raw, found, err := s.store.Get(ctx, taskKey(taskID))
	if err != nil {
		return nil, scifinderrors.NewPersistenceFaultError("task_load", err)
	}
	if !found {
		return nil, scifinderrors.NewInvalidInputError("unknown task", "task_id")
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, scifinderrors.NewPersistenceFaultError("task_decode", err)
	}
	return &rec, nil
}

func (s *Substrate) save(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, taskKey(rec.TaskID), raw, taskTTL)
}

// Run transitions PENDING -> PROCESSING exactly once, executes fn under a
// per-task timeout, retries transient failures per policy, and transitions
// to a terminal state. A second call on an already-started task is a
// no-op returning the existing status.
func (s *Substrate) Run(ctx context.Context, taskID string, operation string, timeout time.Duration, fn Fn, classify ClassifyFn) (Status, []byte, error) {
	s.mu.Lock()
	if _, already := s.running[taskID]; already {
		s.mu.Unlock()
		st, err := s.Status(ctx, taskID)
		return st, nil, err
	}

	rec, err := s.load(ctx, taskID)
	if err != nil {
		s.mu.Unlock()
		return "", nil, err
	}
	if rec.Status != StatusPending {
		s.mu.Unlock()
		return rec.Status, rec.Result, nil
	}

	s.running[taskID] = struct{}{}
	now := time.Now()
	rec.Status = StatusProcessing
	rec.StartedAt = &now
	_ = s.save(ctx, rec)
	s.mu.Unlock()

	s.recordQueuedMillis(now.Sub(rec.CreatedAt))
	runStart := time.Now()
	defer func() { s.recordRunMillis(time.Since(runStart)) }()

	defer func() {
		s.mu.Lock()
		delete(s.running, taskID)
		s.mu.Unlock()
	}()

	if s.ledger != nil {
		ok, err := s.ledger.Charge(ctx, operation, rec.UserID)
		if err != nil || !ok {
			return s.finish(ctx, rec, StatusFailed, nil, scifinderrors.NewInsufficientCreditsError(rec.UserID, operation).Error())
		}
	}

	var result []byte
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		rec.Attempts = attempt

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		result, lastErr = fn(runCtx)
		cancel()

		if lastErr == nil {
			if s.ledger != nil {
				s.ledger.Record(ctx, operation, rec.UserID, 1.0, taskID)
			}
			s.recordSuccess()
			return s.finish(ctx, rec, StatusCompleted, result, "")
		}

		if ctx.Err() != nil {
			return s.finish(ctx, rec, StatusCancelled, nil, "cancelled")
		}
		if runCtx.Err() != nil {
			s.recordFailure("timeout")
			return s.finish(ctx, rec, StatusTimedOut, nil, "per-task timeout exceeded")
		}

		transient := classify != nil && classify(lastErr)
		if !transient || attempt == s.policy.MaxAttempts {
			s.recordFailure("fatal")
			break
		}

		s.recordRetry()
		select {
		case <-time.After(s.policy.delayFor(attempt)):
		case <-ctx.Done():
			return s.finish(ctx, rec, StatusCancelled, nil, "cancelled")
		}
	}

	return s.finish(ctx, rec, StatusFailed, nil, lastErr.Error())
}

func (s *Substrate) finish(ctx context.Context, rec *Record, status Status, result []byte, errMsg string) (Status, []byte, error) {
	now := time.Now()
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.FinishedAt = &now
	if err := s.save(ctx, rec); err != nil {
		s.logger.Warn("failed to persist task terminal state", slog.String("task_id", rec.TaskID), slog.String("error", err.Error()))
	}
	return status, result, nil
}

// Cancel marks a PENDING task CANCELLED immediately, or signals a
// PROCESSING task to stop cooperatively (the runner observes ctx.Done()
// via the context passed by the caller of Run and will transition the
// task itself once it notices).
func (s *Substrate) Cancel(ctx context.Context, taskID string) error {
	rec, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		return nil
	}
	if rec.Status == StatusPending {
		rec.Status = StatusCancelled
		now := time.Now()
		rec.FinishedAt = &now
		return s.save(ctx, rec)
	}
	// PROCESSING: cooperative — the caller's ctx cancellation (driven
	// externally, e.g. via a cancel func stored by C7) will cause Run's
	// fn to observe ctx.Done() and Run will transition to CANCELLED.
	return nil
}

// Await blocks until the task reaches a terminal state or ctx is done.
func (s *Substrate) Await(ctx context.Context, taskID string) (Status, []byte, error) {
	const pollInterval = 20 * time.Millisecond
	for {
		rec, err := s.load(ctx, taskID)
		if err != nil {
			return "", nil, err
		}
		if rec.Status.IsTerminal() {
			if rec.Error != "" {
				return rec.Status, rec.Result, fmt.Errorf("%s", rec.Error)
			}
			return rec.Status, rec.Result, nil
		}
		select {
		case <-ctx.Done():
			return rec.Status, nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Purge opportunistically removes completed tasks older than maxAge. It
// never blocks live operations: a failure here is logged, not returned.
func (s *Substrate) Purge(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	keys, err := s.store.ScanOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("task purge scan failed", slog.String("error", err.Error()))
		return
	}
	for _, k := range keys {
		raw, found, err := s.store.Get(ctx, k)
		if err != nil || !found {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.Status.IsTerminal() && rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			if err := s.store.Delete(ctx, k); err != nil {
				s.logger.Warn("task purge delete failed", slog.String("task_id", rec.TaskID), slog.String("error", err.Error()))
			}
		}
	}
}

// GetMetrics returns a snapshot of substrate-wide counters.
func (s *Substrate) GetMetrics() Metrics {
	s.metricMu.Lock()
	defer s.metricMu.Unlock()
	out := Metrics{
		QueuedMillis:  s.metrics.QueuedMillis,
		RunMillis:     s.metrics.RunMillis,
		SuccessCount:  s.metrics.SuccessCount,
		RetryCount:    s.metrics.RetryCount,
		FailureByKind: make(map[string]int64, len(s.metrics.FailureByKind)),
	}
	for k, v := range s.metrics.FailureByKind {
		out.FailureByKind[k] = v
	}
	return out
}

func (s *Substrate) recordSuccess() {
	s.metricMu.Lock()
	s.metrics.SuccessCount++
	s.metricMu.Unlock()
}

func (s *Substrate) recordFailure(kind string) {
	s.metricMu.Lock()
	s.metrics.FailureByKind[kind]++
	s.metricMu.Unlock()
}

func (s *Substrate) recordRetry() {
	s.metricMu.Lock()
	s.metrics.RetryCount++
	s.metricMu.Unlock()
}

func (s *Substrate) recordQueuedMillis(d time.Duration) {
	s.metricMu.Lock()
	s.metrics.QueuedMillis += d.Milliseconds()
	s.metricMu.Unlock()
}

func (s *Substrate) recordRunMillis(d time.Duration) {
	s.metricMu.Lock()
	s.metrics.RunMillis += d.Milliseconds()
	s.metricMu.Unlock()
}
