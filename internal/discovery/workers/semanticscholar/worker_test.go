package semanticscholar

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperlink-discovery/internal/discovery/ratelimit"
	dtypes "paperlink-discovery/internal/discovery/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func permissiveLimiter() *ratelimit.Manager {
	return ratelimit.NewManager(map[string]ratelimit.Config{
		"SEMANTIC_SCHOLAR": {Capacity: 100, RefillRatePerSecond: 100, FailureThreshold: 100, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())
}

const sampleRecommendationsBody = `{
  "recommendedPapers": [
    {"paperId": "abc123", "title": "Recommended Paper", "venue": "NeurIPS", "year": 2023, "citationCount": 40, "fieldsOfStudy": ["Computer Science"]}
  ]
}`

const sampleCitationsBody = `{
  "data": [
    {"isInfluential": true, "citingPaper": {"paperId": "def456", "title": "Citing Paper", "year": 2024, "citationCount": 5, "fieldsOfStudy": ["Computer Science"]}}
  ]
}`

const sampleTopicSearchBody = `{
  "data": [
    {"paperId": "ghi789", "title": "Topic Match Paper", "year": 2022, "citationCount": 10, "fieldsOfStudy": ["Computer Science"]}
  ]
}`

const sampleAuthorSearchBody = `{"data": [{"authorId": "author-1"}]}`

const sampleAuthorPapersBody = `{
  "data": [
    {"paperId": "jkl012", "title": "Other Work By Author", "year": 2021, "citationCount": 3}
  ]
}`

func TestWorker_DiscoverSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/papers/forpaper/"):
			w.Write([]byte(sampleRecommendationsBody))
		case strings.Contains(r.URL.Path, "/citations"):
			w.Write([]byte(sampleCitationsBody))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, RecBaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	assert.Len(t, result.Papers, 2)
}

func TestWorker_DiscoverIncludesTopicAndAuthorNetworkSubFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/papers/forpaper/"):
			w.Write([]byte(sampleRecommendationsBody))
		case strings.Contains(r.URL.Path, "/citations"):
			w.Write([]byte(sampleCitationsBody))
		case strings.Contains(r.URL.Path, "/author/search"):
			w.Write([]byte(sampleAuthorSearchBody))
		case strings.Contains(r.URL.Path, "/author/"):
			w.Write([]byte(sampleAuthorPapersBody))
		case strings.Contains(r.URL.Path, "/paper/search"):
			w.Write([]byte(sampleTopicSearchBody))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, RecBaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed", PrimaryField: "Computer Science", Authors: []string{"Ada Lovelace"}}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	assert.Len(t, result.Papers, 4)

	var sawTopic, sawAuthorNetwork bool
	for _, p := range result.Papers {
		switch p.RelationshipType {
		case dtypes.RelationshipTopic:
			sawTopic = true
		case dtypes.RelationshipAuthorNetwork:
			sawAuthorNetwork = true
		}
	}
	assert.True(t, sawTopic, "expected a RelationshipTopic candidate")
	assert.True(t, sawAuthorNetwork, "expected a RelationshipAuthorNetwork candidate")
}

func TestWorker_DiscoverFailsWhenIDUnresolvable(t *testing.T) {
	worker := New(Config{}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{} // no DOI, no title
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	assert.False(t, result.Success)
}

func TestWorker_DiscoverFailsWhenAllSubFetchesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, RecBaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	assert.False(t, result.Success)
}

func TestWorker_Source(t *testing.T) {
	worker := New(Config{}, permissiveLimiter(), testLogger())
	assert.Equal(t, dtypes.SourceSemanticScholar, worker.Source())
}

func TestSeedScore_WeightsClipToExpectedRange(t *testing.T) {
	score := seedScore(1, 1, 1, 1)
	assert.InDelta(t, 1.0, score, 0.001)
}
