package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory stand-in for the NATS JetStream KV table.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeStore) ScanByStatus(ctx context.Context, status string) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) ScanOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestSubstrate_CreateAndStatusStartsPending(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", []byte("input"))
	require.NoError(t, err)

	status, err := sub.Status(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
}

func TestSubstrate_RunSucceeds(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	status, result, err := sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, []byte("ok"), result)
	metrics := sub.GetMetrics()
	assert.Equal(t, int64(1), metrics.SuccessCount)
	assert.GreaterOrEqual(t, metrics.RunMillis, int64(0))
	assert.GreaterOrEqual(t, metrics.QueuedMillis, int64(0))
}

func TestSubstrate_RunIsIdempotentOnSecondCall(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	calls := 0
	var wg sync.WaitGroup
	wg.Add(2)
	run := func() {
		defer wg.Done()
		sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
			calls++
			time.Sleep(10 * time.Millisecond)
			return []byte("ok"), nil
		}, nil)
	}
	go run()
	go run()
	wg.Wait()

	assert.Equal(t, 1, calls, "a task must execute its body at most once even under concurrent Run calls")
}

func TestSubstrate_RunRetriesTransientFailures(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger()).WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 1, JitterPercent: 0, MaxDelay: 10 * time.Millisecond,
	})
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	attempts := 0
	status, _, err := sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return []byte("ok"), nil
	}, func(err error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(2), sub.GetMetrics().RetryCount)
}

func TestSubstrate_RunFailsFastOnNonTransientError(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	attempts := 0
	status, _, err := sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
		attempts++
		return nil, errors.New("fatal failure")
	}, func(err error) bool { return false })

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, 1, attempts)
}

func TestSubstrate_RunTimesOutPerTaskDeadline(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	status, _, err := sub.Run(context.Background(), taskID, "discover", 10*time.Millisecond, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, func(err error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, status)
}

func TestSubstrate_RunDeniesOnInsufficientCredits(t *testing.T) {
	ledger := NewInMemoryCreditLedger(0, map[string]float64{"discover": 1}, testLogger())
	sub := New(newFakeStore(), ledger, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	ran := false
	status, _, err := sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
		ran = true
		return []byte("ok"), nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.False(t, ran, "the task body must not execute when the credit charge is refused")
}

func TestSubstrate_CancelPendingTask(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, sub.Cancel(context.Background(), taskID))

	status, err := sub.Status(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)
}

func TestSubstrate_AwaitBlocksUntilTerminal(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
			return []byte("ok"), nil
		}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, result, err := sub.Await(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, []byte("ok"), result)
}

func TestSubstrate_StatusUnknownTaskErrors(t *testing.T) {
	sub := New(newFakeStore(), nil, testLogger())
	_, err := sub.Status(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestSubstrate_PurgeRemovesOldTerminalTasks(t *testing.T) {
	store := newFakeStore()
	sub := New(store, nil, testLogger())
	taskID, err := sub.Create(context.Background(), "agent-1", "user-1", nil)
	require.NoError(t, err)
	sub.Run(context.Background(), taskID, "discover", time.Second, func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	}, nil)

	sub.Purge(context.Background(), -time.Hour) // treat everything as older than cutoff

	_, found, _ := store.Get(context.Background(), taskKey(taskID))
	assert.False(t, found, "a terminal task past its max age must be purged")
}

func TestInMemoryCreditLedger_ZeroCostOperationAlwaysSucceeds(t *testing.T) {
	l := NewInMemoryCreditLedger(0, nil, testLogger())
	ok, err := l.Charge(context.Background(), "unconfigured", "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryCreditLedger_InsufficientBalanceRefuses(t *testing.T) {
	l := NewInMemoryCreditLedger(1, map[string]float64{"discover": 2}, testLogger())
	ok, err := l.Charge(context.Background(), "discover", "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryCreditLedger_ChargeDebitsBalance(t *testing.T) {
	l := NewInMemoryCreditLedger(5, map[string]float64{"discover": 2}, testLogger())
	ok, err := l.Charge(context.Background(), "discover", "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Charge(context.Background(), "discover", "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Charge(context.Background(), "discover", "user-1")
	require.NoError(t, err)
	assert.False(t, ok, "balance should be exhausted after two charges of cost 2 from a balance of 5")
}
