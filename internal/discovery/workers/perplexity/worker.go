// Package perplexity implements the Perplexity source worker (C2.3):
// real-time trend signals via an OpenAI-compatible chat-completions
// endpoint. Adapted from internal/providers/tavily and
// internal/providers/exa's bearer-token HTTP client pattern, and from
// the pubmed-cli synth package's LLMClient interface idiom for
// structuring a prompt/response round trip.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	scifinderrors "paperlink-discovery/internal/errors"

	"paperlink-discovery/internal/discovery/ratelimit"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/workers"
)

const (
	defaultBaseURL     = "https://api.perplexity.ai"
	sourceName         = "PERPLEXITY"
	minConfidence      = 0.3
	defaultMaxTokens   = 1200
)

// Config configures the Perplexity worker.
type Config struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
	Model   string
}

// Worker implements workers.SourceWorker for Perplexity.
type Worker struct {
	cfg        Config
	httpClient *http.Client
	limiter    workers.RateLimiter
	logger     *slog.Logger
}

func New(cfg Config, limiter workers.RateLimiter, logger *slog.Logger) *Worker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = workers.PerCallTimeout
	}
	if cfg.Model == "" {
		cfg.Model = "sonar"
	}
	return &Worker{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, limiter: limiter, logger: logger}
}

func (w *Worker) Source() dtypes.DiscoverySource { return dtypes.SourcePerplexity }

func (w *Worker) Discover(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.SourceDiscoveryResult {
	start := time.Now()
	result := dtypes.SourceDiscoveryResult{Source: dtypes.SourcePerplexity, Metadata: map[string]interface{}{}}

	if w.cfg.APIKey == "" {
		result.Success = false
		result.ErrorMessage = "perplexity bearer token not configured"
		result.Duration = time.Since(start)
		return result
	}

	prompt := buildPrompt(paper)

	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	raw, err := w.complete(ctx, prompt, defaultMaxTokens)
	if err != nil {
		permit.Report(ratelimit.Failure)
		result.Success = false
		result.ErrorMessage = scifinderrors.NewSourceTransportError(sourceName, err).Error()
		result.Duration = time.Since(start)
		return result
	}
	permit.Report(ratelimit.Success)

	candidates := parseCitations(raw)

	var papers []*dtypes.DiscoveredPaper
	for _, c := range candidates {
		if c.confidence < minConfidence {
			continue
		}
		if len(c.externalIDs) == 0 {
			continue
		}
		papers = append(papers, c.toDiscoveredPaper())
	}

	papers = workers.ClampListExported(papers, cfg.MaxPerSource)
	result.Papers = papers
	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func buildPrompt(paper dtypes.SourcePaper) string {
	var b strings.Builder
	b.WriteString("Given the following paper, list trending related works, open-access variants, and topically related papers. ")
	b.WriteString("Respond with one citation per line in the form: TITLE | DOI_OR_URL | TYPE(TRENDING|OPEN_ACCESS_VARIANT|TOPIC) | CONFIDENCE(0-1).\n\n")
	fmt.Fprintf(&b, "Title: %s\n", paper.Title)
	if paper.PrimaryField != "" {
		fmt.Fprintf(&b, "Field: %s\n", paper.PrimaryField)
	}
	if len(paper.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(paper.Keywords, ", "))
	}
	if paper.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", paper.Abstract)
	}
	return b.String()
}

// Complete satisfies synthesis.LLMClient, letting the same bearer-token
// chat-completions client double as the AI rerank step's collaborator.
func (w *Worker) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return w.complete(ctx, prompt, maxTokens)
}

// complete issues a single chat-completions round trip. It checks ctx
// before sending so a cancellation that has already landed does not
// start a new request; an in-flight request is allowed to finish once
// started (bounded by the HTTP client's timeout).
func (w *Worker) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	reqBody := chatRequest{
		Model: w.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, w.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("perplexity server error: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("perplexity client error: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("perplexity response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type citationCandidate struct {
	title       string
	externalIDs map[string]string
	relType     dtypes.RelationshipType
	confidence  float64
}

var citationLine = regexp.MustCompile(`^\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(TRENDING|OPEN_ACCESS_VARIANT|TOPIC)\s*\|\s*([01](?:\.\d+)?)\s*$`)

func parseCitations(raw string) []citationCandidate {
	var out []citationCandidate
	for _, line := range strings.Split(raw, "\n") {
		m := citationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var confidence float64
		fmt.Sscanf(m[4], "%f", &confidence)

		ids := map[string]string{}
		idOrURL := m[2]
		if strings.HasPrefix(idOrURL, "http") {
			ids["url"] = idOrURL
		} else if idOrURL != "" {
			ids["doi"] = idOrURL
		}

		out = append(out, citationCandidate{
			title:       m[1],
			externalIDs: ids,
			relType:     dtypes.RelationshipType(m[3]),
			confidence:  confidence,
		})
	}
	return out
}

func (c citationCandidate) toDiscoveredPaper() *dtypes.DiscoveredPaper {
	seed := c.relType.Weight() * c.confidence
	return &dtypes.DiscoveredPaper{
		ID:               uuid.NewString(),
		ExternalIDs:      c.externalIDs,
		Title:            c.title,
		RelationshipType: c.relType,
		SeedScore:        seed,
		RelevanceScore:   seed,
		Confidence:       c.confidence,
		SourceOfRecord:   dtypes.SourcePerplexity,
		DiscoverySources: map[dtypes.DiscoverySource]struct{}{dtypes.SourcePerplexity: {}},
	}
}
