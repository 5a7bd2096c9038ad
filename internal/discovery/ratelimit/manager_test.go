package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_AcquireWithinCapacity(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 2, RefillRatePerSecond: 1, FailureThreshold: 5, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())

	p1, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p1.Report(Success)

	p2, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p2.Report(Success)
}

func TestManager_AcquireBlocksUntilRefill(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 1, RefillRatePerSecond: 20, FailureThreshold: 5, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())

	p1, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p1.Report(Success)

	start := time.Now()
	p2, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p2.Report(Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestManager_AcquireTimesOutWhenStarved(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 1, RefillRatePerSecond: 0.001, FailureThreshold: 5, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())

	p1, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p1.Report(Success)

	_, err = m.Acquire(context.Background(), "TEST", 30*time.Millisecond)
	assert.Error(t, err)
}

func TestManager_CircuitOpensAfterThreshold(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 10, RefillRatePerSecond: 10, FailureThreshold: 3, SlidingWindow: time.Minute, CooldownPeriod: 50 * time.Millisecond},
	}, testLogger())

	for i := 0; i < 3; i++ {
		p, err := m.Acquire(context.Background(), "TEST", time.Second)
		require.NoError(t, err)
		p.Report(Failure)
	}

	_, err := m.Acquire(context.Background(), "TEST", time.Second)
	assert.Error(t, err)
	assert.Equal(t, "OPEN", m.Stats("TEST").CircuitState)
}

func TestManager_CircuitHalfOpenRecovers(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 10, RefillRatePerSecond: 10, FailureThreshold: 2, SlidingWindow: time.Minute, CooldownPeriod: 20 * time.Millisecond},
	}, testLogger())

	for i := 0; i < 2; i++ {
		p, err := m.Acquire(context.Background(), "TEST", time.Second)
		require.NoError(t, err)
		p.Report(Failure)
	}
	require.Equal(t, "OPEN", m.Stats("TEST").CircuitState)

	time.Sleep(30 * time.Millisecond)

	p, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "HALF_OPEN", m.Stats("TEST").CircuitState)
	p.Report(Success)
	assert.Equal(t, "CLOSED", m.Stats("TEST").CircuitState)
}

func TestManager_HalfOpenAllowsOnlyOneProbe(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 10, RefillRatePerSecond: 10, FailureThreshold: 1, SlidingWindow: time.Minute, CooldownPeriod: 20 * time.Millisecond},
	}, testLogger())

	p, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p.Report(Failure)
	require.Equal(t, "OPEN", m.Stats("TEST").CircuitState)

	time.Sleep(30 * time.Millisecond)

	probe, err := m.Acquire(context.Background(), "TEST", 10*time.Millisecond)
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "TEST", 10*time.Millisecond)
	assert.Error(t, err, "a second probe must be rejected while the first is in flight")

	probe.Report(Success)
}

func TestPermit_ReportIsIdempotent(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 5, RefillRatePerSecond: 5, FailureThreshold: 5, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())

	p, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)

	p.Report(Failure)
	p.Report(Failure) // second call must be a no-op, not a double-count

	assert.Equal(t, 1, m.Stats("TEST").ConsecutiveFailures)
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(map[string]Config{
		"TEST": {Capacity: 5, RefillRatePerSecond: 5, FailureThreshold: 1, SlidingWindow: time.Minute, CooldownPeriod: time.Hour},
	}, testLogger())

	p, err := m.Acquire(context.Background(), "TEST", time.Second)
	require.NoError(t, err)
	p.Report(Failure)
	require.Equal(t, "OPEN", m.Stats("TEST").CircuitState)

	m.Reset("TEST")
	assert.Equal(t, "CLOSED", m.Stats("TEST").CircuitState)
}

func TestManager_SourcesListsConfiguredNames(t *testing.T) {
	m := NewManager(DefaultConfigs(), testLogger())
	sources := m.Sources()
	assert.ElementsMatch(t, []string{"CROSSREF", "SEMANTIC_SCHOLAR", "PERPLEXITY"}, sources)
}

func TestManager_UnconfiguredSourceGetsFallback(t *testing.T) {
	m := NewManager(map[string]Config{}, testLogger())
	p, err := m.Acquire(context.Background(), "UNKNOWN", time.Second)
	require.NoError(t, err)
	p.Report(Success)
}
