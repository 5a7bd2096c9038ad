package perplexity

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
		"PERPLEXITY": {Capacity: 100, RefillRatePerSecond: 100, FailureThreshold: 100, SlidingWindow: time.Minute, CooldownPeriod: time.Second},
	}, testLogger())
}

func chatResponseBody(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"` + content + `"}}]}`
}

func TestWorker_DiscoverSucceeds(t *testing.T) {
	content := `Some Trending Paper | https://example.org/paper | TRENDING | 0.8`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody(content)))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, APIKey: "test-key"}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{Title: "Seed Paper", PrimaryField: "Computer Science"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	require.Len(t, result.Papers, 1)
	assert.Equal(t, dtypes.RelationshipType("TRENDING"), result.Papers[0].RelationshipType)
}

func TestWorker_DiscoverFiltersLowConfidenceCandidates(t *testing.T) {
	content := "High Confidence Paper | https://example.org/a | TRENDING | 0.9\nLow Confidence Paper | https://example.org/b | TOPIC | 0.1"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody(content)))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, APIKey: "test-key"}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{Title: "Seed Paper"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	require.True(t, result.Success)
	require.Len(t, result.Papers, 1)
	assert.Equal(t, "High Confidence Paper", result.Papers[0].Title)
}

func TestWorker_DiscoverFailsWithoutAPIKey(t *testing.T) {
	worker := New(Config{BaseURL: "http://unused"}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{Title: "Seed Paper"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "bearer token")
}

func TestWorker_DiscoverFailsOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, APIKey: "test-key"}, permissiveLimiter(), testLogger())
	paper := dtypes.SourcePaper{Title: "Seed Paper"}
	cfg := dtypes.DiscoveryConfiguration{MaxPerSource: 20}

	result := worker.Discover(context.Background(), paper, cfg)

	assert.False(t, result.Success)
}

func TestWorker_CompleteSatisfiesLLMClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody("a synthesized answer")))
	}))
	defer srv.Close()

	worker := New(Config{BaseURL: srv.URL, APIKey: "test-key"}, permissiveLimiter(), testLogger())

	out, err := worker.Complete(context.Background(), "summarize this", 500)
	require.NoError(t, err)
	assert.Equal(t, "a synthesized answer", out)
}

func TestWorker_CompleteRespectsCancelledContext(t *testing.T) {
	worker := New(Config{BaseURL: "http://unused", APIKey: "test-key"}, permissiveLimiter(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.Complete(ctx, "prompt", 100)
	assert.Error(t, err)
}

func TestWorker_Source(t *testing.T) {
	worker := New(Config{}, permissiveLimiter(), testLogger())
	assert.Equal(t, dtypes.SourcePerplexity, worker.Source())
}
