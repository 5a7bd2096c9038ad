// Package workers defines the common SourceWorker contract shared by the
// Crossref, Semantic Scholar, and Perplexity workers (C2).
package workers

import (
	"context"
	"sort"
	"time"

	"paperlink-discovery/internal/discovery/ratelimit"
	dtypes "paperlink-discovery/internal/discovery/types"
)

// SourceWorker translates a source paper into normalized candidate
// papers via one external API. Implementations never throw past this
// boundary: all failures become SourceDiscoveryResult{Success:false}.
type SourceWorker interface {
	Source() dtypes.DiscoverySource
	Discover(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.SourceDiscoveryResult
}

// RateLimiter is the subset of ratelimit.Manager a worker depends on.
type RateLimiter interface {
	Acquire(ctx context.Context, source string, timeout time.Duration) (*ratelimit.Permit, error)
}

// PerCallTimeout is the transport-default timeout layer (§5): every
// outbound request gets its own shorter deadline than the worker's.
const PerCallTimeout = 30 * time.Second

// subfetchCap returns ceil(maxPerSource / n), spec §4.2.1's per-sub-fetch
// cap.
func subfetchCap(maxPerSource, n int) int {
	if n <= 0 {
		return maxPerSource
	}
	c := maxPerSource / n
	if maxPerSource%n != 0 {
		c++
	}
	if c < 1 {
		c = 1
	}
	return c
}

// ClampListExported orders candidates by the in-worker tie-break rule
// (tieBreakLess) and truncates to at most max entries (hard cap on
// returned list length, per §4.2), so truncation to max always drops
// the weakest candidates rather than an arbitrary suffix.
// Exported for reuse by individual worker packages.
func ClampListExported(papers []*dtypes.DiscoveredPaper, max int) []*dtypes.DiscoveredPaper {
	sort.SliceStable(papers, func(i, j int) bool {
		return tieBreakLess(papers[i], papers[j])
	})
	if max <= 0 || len(papers) <= max {
		return papers
	}
	return papers[:max]
}

// tieBreakLess implements the in-worker tie-break order: higher seed
// score first, then higher citation count, then more recent published
// date, then lexicographic title.
func tieBreakLess(a, b *dtypes.DiscoveredPaper) bool {
	if a.SeedScore != b.SeedScore {
		return a.SeedScore > b.SeedScore
	}
	if a.CitationCount != b.CitationCount {
		return a.CitationCount > b.CitationCount
	}
	aDate, bDate := timeOrZero(a.PublishedDate), timeOrZero(b.PublishedDate)
	if !aDate.Equal(bDate) {
		return aDate.After(bDate)
	}
	return a.Title < b.Title
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
