package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dtypes "paperlink-discovery/internal/discovery/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDurable is an in-memory stand-in for the NATS-backed tier-2 store.
type fakeDurable struct {
	mu       sync.Mutex
	data     map[string][]byte
	failGet  bool
	failPut  bool
	getCalls int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{data: make(map[string][]byte)}
}

func (f *fakeDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet {
		return nil, false, errors.New("durable get failed")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeDurable) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failPut {
		return errors.New("durable put failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeDurable) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func sampleResult() dtypes.UnifiedDiscoveryResult {
	return dtypes.UnifiedDiscoveryResult{
		SourcePaperID: "paper-1",
		Papers: []*dtypes.DiscoveredPaper{
			{ID: "dp-1", Title: "A Related Paper"},
		},
	}
}

func TestCache_PutThenGetHitsTier1(t *testing.T) {
	c := New(nil, testLogger())
	key := "k1"
	c.Put(context.Background(), key, sampleResult())

	got, ok := c.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "paper-1", got.Result.SourcePaperID)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestCache_MissWhenAbsent(t *testing.T) {
	c := New(nil, testLogger())
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCache_FallsThroughToDurableTier(t *testing.T) {
	durable := newFakeDurable()
	c := New(durable, testLogger())
	key := "k1"

	cached := dtypes.CachedDiscoveryResult{Result: sampleResult(), StoredAt: time.Now(), TTL: time.Hour}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	durable.data[key] = raw

	got, ok := c.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "paper-1", got.Result.SourcePaperID)
}

func TestCache_DurableFaultDegradesToMiss(t *testing.T) {
	durable := newFakeDurable()
	durable.failGet = true
	c := New(durable, testLogger())

	_, ok := c.Get(context.Background(), "k1")
	assert.False(t, ok, "a tier-2 fault must degrade to a miss, not propagate an error")
}

func TestCache_PutFailureOnDurableIsNonFatal(t *testing.T) {
	durable := newFakeDurable()
	durable.failPut = true
	c := New(durable, testLogger())

	assert.NotPanics(t, func() {
		c.Put(context.Background(), "k1", sampleResult())
	})
	// tier-1 write still succeeds even though tier-2 failed.
	_, ok := c.Get(context.Background(), "k1")
	assert.True(t, ok)
}

func TestCache_ExpiredEntryIsTreatedAsMiss(t *testing.T) {
	now := time.Now()
	clock := now
	c := New(nil, testLogger(), WithClock(func() time.Time { return clock }), WithTTL(time.Millisecond))

	c.Put(context.Background(), "k1", sampleResult())
	clock = now.Add(time.Hour)

	_, ok := c.Get(context.Background(), "k1")
	assert.False(t, ok)
}

func TestCache_LRUEvictsOldestWhenFull(t *testing.T) {
	c := New(nil, testLogger(), WithMaxEntries(2))

	c.Put(context.Background(), "a", sampleResult())
	c.Put(context.Background(), "b", sampleResult())
	// touch "a" so "b" becomes the least-recently-used entry
	c.Get(context.Background(), "a")
	c.Put(context.Background(), "c", sampleResult())

	_, aOK := c.Get(context.Background(), "a")
	_, bOK := c.Get(context.Background(), "b")
	_, cOK := c.Get(context.Background(), "c")

	assert.True(t, aOK)
	assert.False(t, bOK, "least-recently-used entry should have been evicted")
	assert.True(t, cOK)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_Invalidate(t *testing.T) {
	durable := newFakeDurable()
	c := New(durable, testLogger())
	c.Put(context.Background(), "k1", sampleResult())

	c.Invalidate(context.Background(), "k1")

	_, ok := c.Get(context.Background(), "k1")
	assert.False(t, ok)
}

func TestKey_IsStableAndOrderIndependent(t *testing.T) {
	cfg1 := dtypes.DiscoveryConfiguration{
		SourcesEnabled: []dtypes.DiscoverySource{dtypes.SourceCrossref, dtypes.SourceSemanticScholar},
		MaxTotal:       10,
	}
	cfg2 := dtypes.DiscoveryConfiguration{
		SourcesEnabled: []dtypes.DiscoverySource{dtypes.SourceSemanticScholar, dtypes.SourceCrossref},
		MaxTotal:       10,
	}

	assert.Equal(t, Key("paper-1", cfg1), Key("paper-1", cfg2), "source order must not affect the cache key")
	assert.NotEqual(t, Key("paper-1", cfg1), Key("paper-2", cfg1))
}
