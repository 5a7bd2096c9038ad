package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dtypes "paperlink-discovery/internal/discovery/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paper(id, doi, title string, rel dtypes.RelationshipType, source dtypes.DiscoverySource, seed float64) *dtypes.DiscoveredPaper {
	return &dtypes.DiscoveredPaper{
		ID:               id,
		ExternalIDs:      map[string]string{"doi": doi},
		Title:            title,
		Authors:          []string{"Jane Doe"},
		RelationshipType: rel,
		SeedScore:        seed,
		RelevanceScore:   seed,
		SourceOfRecord:   source,
		DiscoverySources: map[dtypes.DiscoverySource]struct{}{source: {}},
	}
}

func TestSynthesize_DedupesAcrossSourcesByDOI(t *testing.T) {
	e := New(nil, testLogger())

	p1 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/x", "A Paper", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.8),
	}}
	p2 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceSemanticScholar, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("b", "10.1/x", "A Paper", dtypes.RelationshipSemanticSimilarity, dtypes.SourceSemanticScholar, 0.9),
	}}

	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0}
	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed"}, []dtypes.SourceDiscoveryResult{p1, p2}, cfg)

	require.Len(t, result.Papers, 1, "the same DOI from two sources must collapse to one paper")
	assert.Equal(t, dtypes.SourceSemanticScholar, result.Papers[0].SourceOfRecord, "the higher-precedence source's record should survive")
	assert.Len(t, result.Papers[0].DiscoverySources, 2)
}

func TestSynthesize_FiltersBelowMinRelevance(t *testing.T) {
	e := New(nil, testLogger())
	p1 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/low", "Low Relevance Paper", dtypes.RelationshipVenue, dtypes.SourceCrossref, 0.01),
	}}
	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0.9}

	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed"}, []dtypes.SourceDiscoveryResult{p1}, cfg)

	assert.Empty(t, result.Papers)
}

func TestSynthesize_RecordsFailedSourcesAsPartial(t *testing.T) {
	e := New(nil, testLogger())
	ok := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/a", "Paper A", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.8),
	}}
	failed := dtypes.SourceDiscoveryResult{Source: dtypes.SourcePerplexity, Success: false, ErrorMessage: "timeout"}

	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0}
	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed"}, []dtypes.SourceDiscoveryResult{ok, failed}, cfg)

	assert.True(t, result.SynthesisMetadata.PartialResult)
	assert.Contains(t, result.SynthesisMetadata.FailedSources, dtypes.SourcePerplexity)
	assert.Contains(t, result.SynthesisMetadata.SuccessfulSources, dtypes.SourceCrossref)
}

func TestSynthesize_SortsByRelevanceDescending(t *testing.T) {
	e := New(nil, testLogger())
	p1 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/a", "Less Relevant", dtypes.RelationshipVenue, dtypes.SourceCrossref, 0.2),
		paper("b", "10.1/b", "More Relevant", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.95),
	}}
	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0}

	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed"}, []dtypes.SourceDiscoveryResult{p1}, cfg)

	require.Len(t, result.Papers, 2)
	assert.GreaterOrEqual(t, result.Papers[0].RelevanceScore, result.Papers[1].RelevanceScore)
}

func TestSynthesize_TrimsToMaxTotal(t *testing.T) {
	e := New(nil, testLogger())
	var papers []*dtypes.DiscoveredPaper
	for i := 0; i < 10; i++ {
		papers = append(papers, paper(string(rune('a'+i)), "10.1/"+string(rune('a'+i)), "Paper", dtypes.RelationshipVenue, dtypes.SourceCrossref, 0.5))
	}
	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed"}, []dtypes.SourceDiscoveryResult{
		{Source: dtypes.SourceCrossref, Success: true, Papers: papers},
	}, dtypes.DiscoveryConfiguration{MaxTotal: 3, MinRelevance: 0, DiversityLevel: dtypes.DiversityLow})

	assert.Len(t, result.Papers, 3)
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f.response, f.err
}

func TestSynthesize_AIRerankBlendsOrder(t *testing.T) {
	llm := &fakeLLM{response: "1\n0"}
	e := New(llm, testLogger())

	p1 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/a", "First By Fusion", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.9),
		paper("b", "10.1/b", "Second By Fusion", dtypes.RelationshipVenue, dtypes.SourceCrossref, 0.5),
	}}
	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0, EnableAISynthesis: true}

	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed", Title: "Seed"}, []dtypes.SourceDiscoveryResult{p1}, cfg)

	require.Len(t, result.Papers, 2)
	assert.Empty(t, result.SynthesisMetadata.Warnings)
}

func TestSynthesize_AIRerankFailureFallsBackToFusionOrder(t *testing.T) {
	llm := &fakeLLM{err: errors.New("llm unavailable")}
	e := New(llm, testLogger())

	p1 := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Success: true, Papers: []*dtypes.DiscoveredPaper{
		paper("a", "10.1/a", "First By Fusion", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.9),
		paper("b", "10.1/b", "Second By Fusion", dtypes.RelationshipVenue, dtypes.SourceCrossref, 0.5),
	}}
	cfg := dtypes.DiscoveryConfiguration{MaxTotal: 10, MinRelevance: 0, EnableAISynthesis: true}

	result := e.Synthesize(context.Background(), dtypes.SourcePaper{ID: "seed", Title: "Seed"}, []dtypes.SourceDiscoveryResult{p1}, cfg)

	require.Len(t, result.Papers, 2)
	assert.Equal(t, "First By Fusion", result.Papers[0].Title, "a failed rerank must keep the fusion-order result")
	assert.NotEmpty(t, result.SynthesisMetadata.Warnings)
}

func TestFuseScores_CombinesWeightedFactors(t *testing.T) {
	p := paper("a", "10.1/a", "Paper", dtypes.RelationshipCites, dtypes.SourceCrossref, 1.0)
	p.DiscoverySources[dtypes.SourceSemanticScholar] = struct{}{}
	p.CitationCount = 9999
	p.Abstract = "abstract"
	p.Authors = []string{"Jane Doe"}
	p.Venue = "Venue"
	now := time.Now()
	p.PublishedDate = &now
	p.ResearchTopics = []string{"cs"}

	fuseScores([]*dtypes.DiscoveredPaper{p})

	// ceiling at full agreement (2 sources), max relationship weight
	// (CITES 0.9), a saturated log-scaled citation factor, and full
	// completeness: 0.35 + 0.20 + 0.18 + 0.15 + 0.10 = 0.98.
	assert.InDelta(t, 0.98, p.RelevanceScore, 0.01)
}

func TestFuseScores_CitationFactorIsLogarithmic(t *testing.T) {
	p := paper("a", "10.1/a", "Paper", dtypes.RelationshipTopic, dtypes.SourceCrossref, 0)
	p.CitationCount = 100

	fuseScores([]*dtypes.DiscoveredPaper{p})

	// 0.20*0.5 (one source of two) + 0.20*0.5 (TOPIC weight) +
	// 0.15*(log10(101)/4 ~= 0.501) + 0.10*0.2 (authors-only completeness)
	assert.InDelta(t, 0.2952, p.RelevanceScore, 0.005)
}

func TestFuseScores_SourceAgreementUsesFixedDivisorOfTwo(t *testing.T) {
	single := paper("a", "10.1/a", "Paper", dtypes.RelationshipTopic, dtypes.SourceCrossref, 0)
	fuseScores([]*dtypes.DiscoveredPaper{single})
	singleAgreementContribution := single.RelevanceScore

	both := paper("b", "10.1/b", "Paper", dtypes.RelationshipTopic, dtypes.SourceCrossref, 0)
	both.DiscoverySources[dtypes.SourceSemanticScholar] = struct{}{}
	fuseScores([]*dtypes.DiscoveredPaper{both})

	assert.InDelta(t, singleAgreementContribution+0.10, both.RelevanceScore, 0.005, "agreement across 2 of a fixed divisor of 2 sources should add the full 0.20 weight's remaining half")
}

func TestRescaleSeedScores_NormalizesTopAndBottomPerSource(t *testing.T) {
	papers := []*dtypes.DiscoveredPaper{
		{ID: "a", SeedScore: 0.2},
		{ID: "b", SeedScore: 0.8},
	}
	rescaleSeedScores(papers)
	assert.InDelta(t, 0.0, papers[0].SeedScore, 0.001)
	assert.InDelta(t, 1.0, papers[1].SeedScore, 0.001)
}

func TestRescaleSeedScores_TiedScoresBecomeOne(t *testing.T) {
	papers := []*dtypes.DiscoveredPaper{
		{ID: "a", SeedScore: 0.5},
		{ID: "b", SeedScore: 0.5},
	}
	rescaleSeedScores(papers)
	assert.Equal(t, 1.0, papers[0].SeedScore)
	assert.Equal(t, 1.0, papers[1].SeedScore)
}

func TestSelectDiverse_NoTrimWhenUnderCapacity(t *testing.T) {
	papers := []*dtypes.DiscoveredPaper{
		paper("a", "10.1/a", "A", dtypes.RelationshipCites, dtypes.SourceCrossref, 0.9),
	}
	out := selectDiverse(papers, dtypes.DiscoveryConfiguration{MaxTotal: 10})
	assert.Len(t, out, 1)
}

func TestSelectDiverse_SkipsDiversityAtOrBelowTwentyCandidates(t *testing.T) {
	var papers []*dtypes.DiscoveredPaper
	for i := 0; i < 10; i++ {
		p := paper(fmt.Sprintf("p%d", i), fmt.Sprintf("10.1/%d", i), "Paper", dtypes.RelationshipVenue, dtypes.SourceCrossref, 1.0-float64(i)*0.05)
		p.Venue = "Venue A"
		papers = append(papers, p)
	}

	out := selectDiverse(papers, dtypes.DiscoveryConfiguration{MaxTotal: 4, DiversityLevel: dtypes.DiversityHigh})

	require.Len(t, out, 4)
	for i, p := range out {
		assert.Equal(t, papers[i].ID, p.ID, "at or below the 20-candidate floor, selection must stay pure relevance order")
	}
}

func TestSelectDiverse_SpreadsAcrossVenues(t *testing.T) {
	var papers []*dtypes.DiscoveredPaper
	for i := 0; i < 24; i++ {
		p := paper(fmt.Sprintf("p%d", i), fmt.Sprintf("10.1/%d", i), "Paper", dtypes.RelationshipVenue, dtypes.SourceCrossref, 1.0-float64(i)*0.01)
		if i < 12 {
			p.Venue = "Venue A"
		} else {
			p.Venue = "Venue B"
		}
		papers = append(papers, p)
	}

	out := selectDiverse(papers, dtypes.DiscoveryConfiguration{MaxTotal: 4, DiversityLevel: dtypes.DiversityHigh})

	venues := map[string]bool{}
	for _, p := range out {
		venues[p.Venue] = true
	}
	assert.Len(t, out, 4)
	assert.True(t, venues["Venue A"] && venues["Venue B"], "high diversity must pull from more than one venue when above the diversity floor")
}
