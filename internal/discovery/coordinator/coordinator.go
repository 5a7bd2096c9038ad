// Package coordinator implements the Discovery Coordinator (C5): it
// fans a discovery run out across enabled source workers with
// per-source and overall deadlines, cooperative cancellation, and
// cache-first/cache-write-back semantics, then hands raw per-source
// results to the Synthesis Engine.
//
// Fan-out shape grounded on internal/providers/manager.go's
// searchMerge (goroutine-per-provider + buffered result channel +
// context.WithTimeout).
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"paperlink-discovery/internal/discovery/cache"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/workers"
)

// Synthesizer is the subset of synthesis.Engine the coordinator drives.
type Synthesizer interface {
	Synthesize(ctx context.Context, paper dtypes.SourcePaper, perSource []dtypes.SourceDiscoveryResult, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult
}

// Coordinator runs one discovery request end to end.
type Coordinator struct {
	cache      *cache.Cache
	synthesize Synthesizer
	workers    map[dtypes.DiscoverySource]workers.SourceWorker
	logger     *slog.Logger
}

func New(c *cache.Cache, synthesizer Synthesizer, sourceWorkers []workers.SourceWorker, logger *slog.Logger) *Coordinator {
	byName := make(map[dtypes.DiscoverySource]workers.SourceWorker, len(sourceWorkers))
	for _, w := range sourceWorkers {
		byName[w.Source()] = w
	}
	return &Coordinator{cache: c, synthesize: synthesizer, workers: byName, logger: logger}
}

type sourceOutcome struct {
	result dtypes.SourceDiscoveryResult
}

// Run executes a discovery request: cache lookup, fan-out on miss,
// synthesis, cache write-back. Returns a partial result (never an
// error) when every source fails — see minimalErrorResult.
func (c *Coordinator) Run(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult {
	cfg.Clamp()

	key := cache.Key(paper.ID, cfg)
	if cached, ok := c.cache.Get(ctx, key); ok {
		result := cached.Result
		result.SynthesisMetadata.CacheHit = true
		return result
	}

	overallCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		overallCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	enabled := cfg.SourcesEnabled
	if len(enabled) == 0 {
		result := minimalErrorResult(paper, "no sources enabled", nil)
		return result
	}

	perSourceTimeout := cfg.Timeout
	if perSourceTimeout <= 0 || perSourceTimeout > 60*time.Second {
		perSourceTimeout = 60 * time.Second
	}
	if n := len(enabled); n > 0 {
		if budget := perSourceTimeout / time.Duration(n); budget > 0 && budget < perSourceTimeout {
			perSourceTimeout = budget
		}
	}

	resultCh := make(chan sourceOutcome, len(enabled))
	for _, src := range enabled {
		w, ok := c.workers[src]
		if !ok {
			resultCh <- sourceOutcome{result: dtypes.SourceDiscoveryResult{Source: src, Success: false, ErrorMessage: "source worker not registered"}}
			continue
		}
		go c.runWorker(overallCtx, w, paper, cfg, perSourceTimeout, resultCh)
	}

	received := make(map[dtypes.DiscoverySource]struct{}, len(enabled))
	perSource := make([]dtypes.SourceDiscoveryResult, 0, len(enabled))
	for i := 0; i < len(enabled); i++ {
		select {
		case out := <-resultCh:
			received[out.result.Source] = struct{}{}
			perSource = append(perSource, out.result)
		case <-overallCtx.Done():
			c.logger.Warn("discovery run deadline exceeded", slog.Int("sources_pending", len(enabled)-i))
			for _, src := range enabled {
				if _, ok := received[src]; ok {
					continue
				}
				perSource = append(perSource, dtypes.SourceDiscoveryResult{Source: src, Success: false, ErrorMessage: "overall deadline exceeded"})
			}
			i = len(enabled)
		}
	}

	unified := c.synthesize.Synthesize(ctx, paper, perSource, cfg)

	var failedSources []dtypes.DiscoverySource
	for _, r := range perSource {
		if !r.Success {
			failedSources = append(failedSources, r.Source)
		}
	}
	if len(failedSources) == len(perSource) {
		return minimalErrorResult(paper, "all sources failed", enabled)
	}

	c.cache.Put(ctx, key, unified)
	return unified
}

// runWorker executes one source worker under its own soft deadline and
// always sends exactly one outcome, even on panic-free early return.
func (c *Coordinator) runWorker(ctx context.Context, w workers.SourceWorker, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration, timeout time.Duration, out chan<- sourceOutcome) {
	workerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := w.Discover(workerCtx, paper, cfg)
	out <- sourceOutcome{result: result}
}

func minimalErrorResult(paper dtypes.SourcePaper, reason string, failedSources []dtypes.DiscoverySource) dtypes.UnifiedDiscoveryResult {
	return dtypes.UnifiedDiscoveryResult{
		SourcePaperID: paper.ID,
		Papers:        nil,
		SynthesisMetadata: dtypes.SynthesisMetadata{
			PartialResult: len(failedSources) > 0,
			FailedSources: failedSources,
			Errors:        []string{reason},
		},
	}
}
