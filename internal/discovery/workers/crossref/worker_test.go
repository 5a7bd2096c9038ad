package crossref

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
		"CROSSREF": {Capacity: 100, RefillRatePerSecond: 100, FailureThreshold: 100, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())
}

const sampleWorksBody = `{
  "message": {
    "items": [
      {
        "DOI": "10.1/abc",
        "title": ["A Related Paper"],
        "author": [{"given": "Jane", "family": "Doe"}],
        "container-title": ["Journal of Tests"],
        "published": {"date-parts": [[2022, 3, 1]]},
        "is-referenced-by-count": 12,
        "subject": ["computer science"],
        "URL": "https://example.org/abc"
      }
    ]
  }
}`

func TestWorker_DiscoverSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleWorksBody))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed", Title: "Seed Paper", Authors: []string{"Jane Doe"}, Journal: "Journal of Tests"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	assert.NotEmpty(t, result.Papers)
	assert.Equal(t, dtypes.SourceCrossref, result.Source)
}

func TestWorker_DiscoverResolvesDOIFromTitleWhenMissing(t *testing.T) {
	var sawResolveQuery bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query.bibliographic") != "" {
			sawResolveQuery = true
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleWorksBody))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{Title: "Seed Paper Without DOI"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	assert.True(t, sawResolveQuery, "worker must probe Crossref by title when the seed paper has no DOI")
}

func TestWorker_DiscoverFailsWhenAllSubFetchesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestWorker_DiscoverClampsToMaxPerSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleWorksBody))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{DOI: "10.1/seed"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 1}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	assert.LessOrEqual(t, len(result.Papers), 1)
}

func TestWorker_Source(t *testing.T) {
	worker := New(Config{}, permissiveLimiter(), testLogger())
	assert.Equal(t, dtypes.SourceCrossref, worker.Source())
}
