// Package synthesis implements the Synthesis Engine (C4): it takes raw
// per-source results and produces one deduplicated, scored, diverse,
// and optionally AI-reranked set of discovered papers.
//
// Dedup/sort shape grounded on internal/providers/manager.go's
// deduplicatePapers/sortPapersByQuality; the optional AI rerank step is
// grounded on the pubmed-cli synth package's LLMClient interface idiom.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	dtypes "paperlink-discovery/internal/discovery/types"
)

// LLMClient reranks a candidate list using a free-text prompt. Adapted
// from the pubmed-cli synth package's LLMClient interface.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// precedence ranks which source's record survives a dedup collision:
// SEMANTIC_SCHOLAR > CROSSREF > PERPLEXITY.
var precedence = map[dtypes.DiscoverySource]int{
	dtypes.SourceSemanticScholar: 3,
	dtypes.SourceCrossref:        2,
	dtypes.SourcePerplexity:      1,
}

// Engine fuses per-source results into one ranked, deduplicated list.
type Engine struct {
	llm    LLMClient
	logger *slog.Logger
}

func New(llm LLMClient, logger *slog.Logger) *Engine {
	return &Engine{llm: llm, logger: logger}
}

// Synthesize runs dedup, fusion scoring, relevance filtering, diversity
// selection, trim to max_total, and (if enabled and available) AI
// rerank, returning the final UnifiedDiscoveryResult.
func (e *Engine) Synthesize(ctx context.Context, paper dtypes.SourcePaper, perSource []dtypes.SourceDiscoveryResult, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult {
	var raw []*dtypes.DiscoveredPaper
	var successful, failed []dtypes.DiscoverySource
	var warnings []string

	for _, r := range perSource {
		if r.Success {
			successful = append(successful, r.Source)
			rescaleSeedScores(r.Papers)
			raw = append(raw, r.Papers...)
		} else {
			failed = append(failed, r.Source)
			warnings = append(warnings, fmt.Sprintf("%s: %s", r.Source, r.ErrorMessage))
		}
	}

	deduped := dedupe(raw)
	fuseScores(deduped)

	relevant := make([]*dtypes.DiscoveredPaper, 0, len(deduped))
	for _, p := range deduped {
		if p.RelevanceScore >= cfg.MinRelevance {
			relevant = append(relevant, p)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})

	selected := selectDiverse(relevant, cfg)

	if cfg.EnableAISynthesis && e.llm != nil && len(selected) > 0 {
		reranked, err := e.rerank(ctx, paper, selected)
		if err != nil {
			e.logger.Warn("AI rerank failed, keeping fusion order", slog.String("error", err.Error()))
			warnings = append(warnings, "ai_rerank_skipped: "+err.Error())
		} else {
			selected = reranked
		}
	}

	meta := dtypes.SynthesisMetadata{
		RawCount:          len(raw),
		ProcessedCount:    len(selected),
		SuccessfulSources: successful,
		FailedSources:     failed,
		OverallConfidence: overallConfidence(successful, len(perSource)),
		PartialResult:     len(failed) > 0,
		Warnings:          warnings,
	}

	return dtypes.UnifiedDiscoveryResult{
		SourcePaperID:     paper.ID,
		Papers:            selected,
		PerSourceResults:  perSource,
		SynthesisMetadata: meta,
		Configuration:     cfg,
	}
}

// dedupe merges candidates that refer to the same underlying paper.
// Identity predicates (any one match merges): identical normalized
// DOI, identical Semantic Scholar id, or title-similarity >= 0.92 with
// matching first-author surname. The surviving record is the one from
// the highest-precedence source; merged records union ExternalIDs,
// DiscoverySources, and HitCount.
func dedupe(papers []*dtypes.DiscoveredPaper) []*dtypes.DiscoveredPaper {
	var kept []*dtypes.DiscoveredPaper

	for _, candidate := range papers {
		matchIdx := -1
		for i, k := range kept {
			if isDuplicate(k, candidate) {
				matchIdx = i
				break
			}
		}
		if matchIdx == -1 {
			c := *candidate
			c.HitCount = 1
			kept = append(kept, &c)
			continue
		}

		existing := kept[matchIdx]
		existing.HitCount++
		for s := range candidate.DiscoverySources {
			existing.AddSource(s)
		}
		for k, v := range candidate.ExternalIDs {
			if existing.ExternalIDs == nil {
				existing.ExternalIDs = map[string]string{}
			}
			if existing.ExternalIDs[k] == "" {
				existing.ExternalIDs[k] = v
			}
		}
		if precedence[candidate.SourceOfRecord] > precedence[existing.SourceOfRecord] {
			merged := *candidate
			merged.HitCount = existing.HitCount
			merged.DiscoverySources = existing.DiscoverySources
			merged.ExternalIDs = existing.ExternalIDs
			kept[matchIdx] = &merged
		}
	}
	return kept
}

func isDuplicate(a, b *dtypes.DiscoveredPaper) bool {
	if doi, ok := normalizedID(a, "doi"); ok {
		if doi2, ok2 := normalizedID(b, "doi"); ok2 && doi == doi2 {
			return true
		}
	}
	if s2, ok := normalizedID(a, "s2_id"); ok {
		if s22, ok2 := normalizedID(b, "s2_id"); ok2 && s2 == s22 {
			return true
		}
	}
	if titleSimilarity(a.Title, b.Title) >= 0.92 && sameFirstAuthorSurname(a.Authors, b.Authors) {
		return true
	}
	return false
}

func normalizedID(p *dtypes.DiscoveredPaper, key string) (string, bool) {
	v, ok := p.ExternalIDs[key]
	if !ok || v == "" {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(v)), true
}

func sameFirstAuthorSurname(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return surname(a[0]) != "" && surname(a[0]) == surname(b[0])
}

func surname(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

// titleSimilarity is a token-Jaccard approximation: cheap, order
// independent, good enough at the 0.92 threshold spec calls for.
func titleSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ta))
	for t := range ta {
		set[t] = struct{}{}
	}
	intersection := 0
	for t := range tb {
		if _, ok := set[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,:;!?()[]\"'")
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

// rescaleSeedScores min-max normalizes one source's seed scores in
// place so its top candidate lands at 1.0 and its bottom at 0.0 before
// fusion (spec §4.4 step 2). A single candidate, or a tie across all
// candidates, rescales to 1.0 rather than dividing by zero.
func rescaleSeedScores(papers []*dtypes.DiscoveredPaper) {
	if len(papers) == 0 {
		return
	}
	min, max := papers[0].SeedScore, papers[0].SeedScore
	for _, p := range papers {
		if p.SeedScore < min {
			min = p.SeedScore
		}
		if p.SeedScore > max {
			max = p.SeedScore
		}
	}
	if max == min {
		for _, p := range papers {
			p.SeedScore = 1.0
		}
		return
	}
	for _, p := range papers {
		p.SeedScore = (p.SeedScore - min) / (max - min)
	}
}

// fuseScores applies the cross-source fusion formula (spec §4.4):
// 0.35*seed + 0.20*source_agreement + 0.20*relationship_weight +
// 0.15*citation_factor + 0.10*data_completeness.
func fuseScores(papers []*dtypes.DiscoveredPaper) {
	for _, p := range papers {
		normalizedSeed := clip01(p.SeedScore)

		sourceAgreement := clip01(float64(len(p.DiscoverySources)) / 2.0)

		relationshipWeight := p.RelationshipType.Weight()

		citationFactor := clip01(math.Log10(1+float64(p.CitationCount)) / 4)

		completeness := dataCompleteness(p)

		p.RelevanceScore = clip01(
			0.35*normalizedSeed +
				0.20*sourceAgreement +
				0.20*relationshipWeight +
				0.15*citationFactor +
				0.10*completeness,
		)
	}
}

func dataCompleteness(p *dtypes.DiscoveredPaper) float64 {
	fields := 0
	total := 5
	if p.Abstract != "" {
		fields++
	}
	if len(p.Authors) > 0 {
		fields++
	}
	if p.Venue != "" {
		fields++
	}
	if p.PublishedDate != nil {
		fields++
	}
	if len(p.ResearchTopics) > 0 {
		fields++
	}
	return float64(fields) / float64(total)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func overallConfidence(successful []dtypes.DiscoverySource, totalSources int) float64 {
	if totalSources == 0 {
		return 0
	}
	return float64(len(successful)) / float64(totalSources)
}

// rerank asks the LLM to reorder the already-fused candidate list,
// then blends its ranking 50/50 with the existing relevance order.
func (e *Engine) rerank(ctx context.Context, paper dtypes.SourcePaper, papers []*dtypes.DiscoveredPaper) ([]*dtypes.DiscoveredPaper, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Source paper: %s\n\nCandidates (reorder by true relevance, most relevant first, respond with one index per line):\n", paper.Title)
	for i, p := range papers {
		fmt.Fprintf(&b, "[%d] %s\n", i, p.Title)
	}

	raw, err := e.llm.Complete(ctx, b.String(), 500)
	if err != nil {
		return nil, err
	}

	order := parseIndices(raw, len(papers))
	if len(order) == 0 {
		return papers, nil
	}

	llmRank := make(map[int]float64, len(order))
	for rank, idx := range order {
		llmRank[idx] = 1.0 - float64(rank)/float64(len(order))
	}

	type blended struct {
		paper *dtypes.DiscoveredPaper
		score float64
	}
	out := make([]blended, len(papers))
	for i, p := range papers {
		out[i] = blended{paper: p, score: 0.5*p.RelevanceScore + 0.5*llmRank[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	result := make([]*dtypes.DiscoveredPaper, len(out))
	for i, b := range out {
		result[i] = b.paper
	}
	return result, nil
}

func parseIndices(raw string, n int) []int {
	var out []int
	seen := map[int]struct{}{}
	for _, line := range strings.Split(raw, "\n") {
		var idx int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &idx); err != nil {
			continue
		}
		if idx < 0 || idx >= n {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}
