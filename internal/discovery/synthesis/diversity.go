package synthesis

import (
	dtypes "paperlink-discovery/internal/discovery/types"
)

// diversityQuota maps a diversity level to the fraction of max_total
// reserved for round-robin diversity picks rather than pure relevance
// order; the remainder still comes off the top of the relevance-sorted
// list.
var diversityQuota = map[dtypes.DiversityLevel]float64{
	dtypes.DiversityLow:    0.3,
	dtypes.DiversityMedium: 0.5,
	dtypes.DiversityHigh:   0.7,
}

// minCandidatesForDiversity is spec §4.4 step 4's threshold below which
// diversity selection is skipped entirely: with 20 or fewer surviving
// candidates, pure relevance order is kept instead of round-robin spread.
const minCandidatesForDiversity = 20

// selectDiverse trims relevance-sorted candidates to max_total while
// spreading the diversity-quota portion across venue/era/topic/
// first-author-initial dimensions via greedy round robin, so a single
// dominant venue or era cannot crowd out the rest of the result.
func selectDiverse(relevant []*dtypes.DiscoveredPaper, cfg dtypes.DiscoveryConfiguration) []*dtypes.DiscoveredPaper {
	maxTotal := cfg.MaxTotal
	if maxTotal <= 0 || maxTotal >= len(relevant) {
		return relevant
	}
	if len(relevant) <= minCandidatesForDiversity {
		return relevant[:maxTotal]
	}

	quota := diversityQuota[cfg.DiversityLevel]
	relevanceCount := maxTotal - int(float64(maxTotal)*quota)
	if relevanceCount < 0 {
		relevanceCount = 0
	}
	if relevanceCount > maxTotal {
		relevanceCount = maxTotal
	}

	picked := make([]*dtypes.DiscoveredPaper, 0, maxTotal)
	used := make(map[*dtypes.DiscoveredPaper]struct{}, maxTotal)

	for i := 0; i < relevanceCount && i < len(relevant); i++ {
		picked = append(picked, relevant[i])
		used[relevant[i]] = struct{}{}
	}

	remaining := make([]*dtypes.DiscoveredPaper, 0, len(relevant))
	for _, p := range relevant {
		if _, ok := used[p]; !ok {
			remaining = append(remaining, p)
		}
	}

	buckets := bucketize(remaining)
	dims := []string{"venue", "era", "topic", "author_initial"}
	dimIdx := 0

	for len(picked) < maxTotal && hasRemaining(buckets) {
		dim := dims[dimIdx%len(dims)]
		dimIdx++

		_, p := popBest(buckets, dim)
		if p == nil {
			continue
		}
		picked = append(picked, p)
		removeFromOtherBuckets(buckets, p, dim)
	}

	return picked
}

type bucketMap map[string]map[string][]*dtypes.DiscoveredPaper

func bucketize(papers []*dtypes.DiscoveredPaper) bucketMap {
	b := bucketMap{
		"venue":          map[string][]*dtypes.DiscoveredPaper{},
		"era":            map[string][]*dtypes.DiscoveredPaper{},
		"topic":          map[string][]*dtypes.DiscoveredPaper{},
		"author_initial": map[string][]*dtypes.DiscoveredPaper{},
	}
	for _, p := range papers {
		b["venue"][venueKey(p)] = append(b["venue"][venueKey(p)], p)
		b["era"][eraKey(p)] = append(b["era"][eraKey(p)], p)
		b["topic"][topicKey(p)] = append(b["topic"][topicKey(p)], p)
		b["author_initial"][authorInitialKey(p)] = append(b["author_initial"][authorInitialKey(p)], p)
	}
	return b
}

func venueKey(p *dtypes.DiscoveredPaper) string {
	if p.Venue == "" {
		return "unknown"
	}
	return p.Venue
}

func eraKey(p *dtypes.DiscoveredPaper) string {
	if p.PublishedDate == nil {
		return "unknown"
	}
	decade := (p.PublishedDate.Year() / 10) * 10
	return itoa(decade)
}

func topicKey(p *dtypes.DiscoveredPaper) string {
	if len(p.ResearchTopics) == 0 {
		return "unknown"
	}
	return p.ResearchTopics[0]
}

func authorInitialKey(p *dtypes.DiscoveredPaper) string {
	if len(p.Authors) == 0 || p.Authors[0] == "" {
		return "unknown"
	}
	return string([]rune(p.Authors[0])[0])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// popBest finds the bucket with the most unclaimed candidates for dim
// (widest underrepresented slice first) and pops its top-relevance
// entry.
func popBest(buckets bucketMap, dim string) (string, *dtypes.DiscoveredPaper) {
	sub := buckets[dim]
	var bestKey string
	var bestLen = -1
	for k, v := range sub {
		if len(v) > bestLen {
			bestLen = len(v)
			bestKey = k
		}
	}
	if bestLen <= 0 {
		return "", nil
	}
	p := sub[bestKey][0]
	sub[bestKey] = sub[bestKey][1:]
	return bestKey, p
}

// removeFromOtherBuckets purges a just-picked candidate from every
// dimension's buckets except skipDim, whose bucket popBest already
// popped it from.
func removeFromOtherBuckets(buckets bucketMap, p *dtypes.DiscoveredPaper, skipDim string) {
	for dim, sub := range buckets {
		if dim == skipDim {
			continue
		}
		for k, list := range sub {
			for i, candidate := range list {
				if candidate == p {
					sub[k] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
	}
}

func hasRemaining(buckets bucketMap) bool {
	for _, sub := range buckets {
		for _, v := range sub {
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}
