package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperlink-discovery/internal/discovery/cache"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/workers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWorker struct {
	source  dtypes.DiscoverySource
	delay   time.Duration
	success bool
	papers  []*dtypes.DiscoveredPaper
}

func (f *fakeWorker) Source() dtypes.DiscoverySource { return f.source }

func (f *fakeWorker) Discover(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.SourceDiscoveryResult {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return dtypes.SourceDiscoveryResult{Source: f.source, Success: false, ErrorMessage: "deadline exceeded"}
	}
	return dtypes.SourceDiscoveryResult{Source: f.source, Success: f.success, Papers: f.papers}
}

type fakeSynthesizer struct {
	called bool
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, paper dtypes.SourcePaper, perSource []dtypes.SourceDiscoveryResult, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult {
	f.called = true
	var papers []*dtypes.DiscoveredPaper
	for _, r := range perSource {
		papers = append(papers, r.Papers...)
	}
	return dtypes.UnifiedDiscoveryResult{SourcePaperID: paper.ID, Papers: papers, PerSourceResults: perSource}
}

func baseConfig(sources ...dtypes.DiscoverySource) dtypes.DiscoveryConfiguration {
	return dtypes.DiscoveryConfiguration{
		SourcesEnabled: sources,
		MaxPerSource:   20,
		MaxTotal:       20,
		Timeout:        200 * time.Millisecond,
	}
}

func TestCoordinator_RunFansOutToAllSources(t *testing.T) {
	wCrossref := &fakeWorker{source: dtypes.SourceCrossref, success: true, papers: []*dtypes.DiscoveredPaper{{ID: "a"}}}
	wS2 := &fakeWorker{source: dtypes.SourceSemanticScholar, success: true, papers: []*dtypes.DiscoveredPaper{{ID: "b"}}}
	synth := &fakeSynthesizer{}
	c := New(cache.New(nil, testLogger()), synth, []workers.SourceWorker{wCrossref, wS2}, testLogger())

	result := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, baseConfig(dtypes.SourceCrossref, dtypes.SourceSemanticScholar))

	assert.True(t, synth.called)
	assert.Len(t, result.Papers, 2)
}

func TestCoordinator_RunReturnsMinimalResultWhenNoSourcesEnabled(t *testing.T) {
	synth := &fakeSynthesizer{}
	c := New(cache.New(nil, testLogger()), synth, nil, testLogger())

	result := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, dtypes.DiscoveryConfiguration{MaxPerSource: 10})

	assert.False(t, synth.called)
	assert.False(t, result.SynthesisMetadata.PartialResult)
	assert.Empty(t, result.SynthesisMetadata.FailedSources)
	assert.NotEmpty(t, result.SynthesisMetadata.Errors)
}

func TestCoordinator_RunReturnsMinimalResultWhenAllSourcesFail(t *testing.T) {
	wFail := &fakeWorker{source: dtypes.SourceCrossref, success: false}
	synth := &fakeSynthesizer{}
	c := New(cache.New(nil, testLogger()), synth, []workers.SourceWorker{wFail}, testLogger())

	result := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, baseConfig(dtypes.SourceCrossref))

	assert.True(t, result.SynthesisMetadata.PartialResult)
	assert.Equal(t, []dtypes.DiscoverySource{dtypes.SourceCrossref}, result.SynthesisMetadata.FailedSources)
	assert.NotEmpty(t, result.SynthesisMetadata.Errors)
}

func TestCoordinator_RunHitsCacheOnSecondCall(t *testing.T) {
	wCrossref := &fakeWorker{source: dtypes.SourceCrossref, success: true, papers: []*dtypes.DiscoveredPaper{{ID: "a"}}}
	synth := &fakeSynthesizer{}
	sharedCache := cache.New(nil, testLogger())
	c := New(sharedCache, synth, []workers.SourceWorker{wCrossref}, testLogger())

	cfg := baseConfig(dtypes.SourceCrossref)
	first := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, cfg)
	require.False(t, first.SynthesisMetadata.CacheHit)

	second := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, cfg)
	assert.True(t, second.SynthesisMetadata.CacheHit)
}

func TestCoordinator_RunRespectsOverallDeadline(t *testing.T) {
	slowWorker := &fakeWorker{source: dtypes.SourceCrossref, success: true, delay: time.Second}
	synth := &fakeSynthesizer{}
	c := New(cache.New(nil, testLogger()), synth, []workers.SourceWorker{slowWorker}, testLogger())

	cfg := baseConfig(dtypes.SourceCrossref)
	cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	result := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, cfg)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond, "the coordinator must not wait for a worker past the overall deadline")
	assert.True(t, result.SynthesisMetadata.PartialResult)
}

func TestCoordinator_RunSkipsUnregisteredSource(t *testing.T) {
	synth := &fakeSynthesizer{}
	c := New(cache.New(nil, testLogger()), synth, nil, testLogger())

	result := c.Run(context.Background(), dtypes.SourcePaper{ID: "seed"}, baseConfig(dtypes.SourceCrossref))

	assert.True(t, result.SynthesisMetadata.PartialResult)
	assert.Equal(t, []dtypes.DiscoverySource{dtypes.SourceCrossref}, result.SynthesisMetadata.FailedSources)
}
