// Package semanticscholar implements the Semantic Scholar source worker
// (C2.2): semantic/influence signal discovery against the Graph and
// Recommendations APIs. Adapted from
// internal/providers/semantic_scholar.Provider's HTTP client shape,
// narrowed to the discovery core's SourceWorker contract.
package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	scifinderrors "paperlink-discovery/internal/errors"

	"paperlink-discovery/internal/discovery/ratelimit"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/workers"
)

// errSubFetchSkipped means a sub-fetch had no seed data to query with
// (e.g. no primary field/keywords, no author name) and never reached
// the network; it must not count toward anySucceeded in Discover.
var errSubFetchSkipped = errors.New("sub-fetch skipped: no seed data")

const (
	defaultBaseURL = "https://api.semanticscholar.org/graph/v1"
	recBaseURL     = "https://api.semanticscholar.org/recommendations/v1"
	sourceName     = "SEMANTIC_SCHOLAR"
)

// Config configures the Semantic Scholar worker.
type Config struct {
	BaseURL       string
	RecBaseURL    string
	Timeout       time.Duration
	APIKey        string
}

// Worker implements workers.SourceWorker for Semantic Scholar.
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
	if cfg.RecBaseURL == "" {
		cfg.RecBaseURL = recBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = workers.PerCallTimeout
	}
	return &Worker{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, limiter: limiter, logger: logger}
}

func (w *Worker) Source() dtypes.DiscoverySource { return dtypes.SourceSemanticScholar }

func (w *Worker) Discover(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.SourceDiscoveryResult {
	start := time.Now()
	result := dtypes.SourceDiscoveryResult{Source: dtypes.SourceSemanticScholar, Metadata: map[string]interface{}{}}

	s2ID, err := w.resolveID(ctx, paper)
	if err != nil || s2ID == "" {
		result.Success = false
		if err != nil {
			result.ErrorMessage = err.Error()
		} else {
			result.ErrorMessage = "could not resolve semantic scholar id"
		}
		result.Duration = time.Since(start)
		return result
	}

	var papers []*dtypes.DiscoveredPaper
	var anySucceeded bool

	if recs, err := w.fetchRecommendations(ctx, s2ID); err == nil {
		anySucceeded = true
		papers = append(papers, recs...)
	} else {
		w.logger.Debug("s2 recommendations fetch failed", slog.String("error", err.Error()))
	}

	if cites, err := w.fetchCitations(ctx, s2ID); err == nil {
		anySucceeded = true
		papers = append(papers, cites...)
	} else {
		w.logger.Debug("s2 citations fetch failed", slog.String("error", err.Error()))
	}

	if topic, err := w.fetchTopicMatches(ctx, paper); err == nil {
		anySucceeded = true
		papers = append(papers, topic...)
	} else {
		w.logger.Debug("s2 topic fetch failed", slog.String("error", err.Error()))
	}

	if network, err := w.fetchAuthorNetwork(ctx, paper); err == nil {
		anySucceeded = true
		papers = append(papers, network...)
	} else {
		w.logger.Debug("s2 author network fetch failed", slog.String("error", err.Error()))
	}

	if !anySucceeded {
		result.Success = false
		result.ErrorMessage = "all semantic scholar sub-fetches failed"
		result.Duration = time.Since(start)
		return result
	}

	papers = workers.ClampListExported(papers, cfg.MaxPerSource)
	result.Papers = papers
	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (w *Worker) resolveID(ctx context.Context, paper dtypes.SourcePaper) (string, error) {
	if paper.DOI != "" {
		return "DOI:" + paper.DOI, nil
	}
	if paper.Title == "" {
		return "", scifinderrors.NewInvalidInputError("missing title/DOI for S2 resolution", "title")
	}
	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	query := paper.Title
	if len(paper.Authors) > 0 {
		query += " " + paper.Authors[0]
	}
	q.Set("query", query)
	q.Set("limit", "1")
	q.Set("fields", "paperId")

	body, err := w.get(ctx, w.cfg.BaseURL+"/paper/search", q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return "", scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var resp struct {
		Data []struct {
			PaperID string `json:"paperId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].PaperID, nil
}

func (w *Worker) fetchRecommendations(ctx context.Context, s2ID string) ([]*dtypes.DiscoveredPaper, error) {
	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("fields", "title,abstract,authors,venue,year,citationCount,influentialCitationCount,externalIds,fieldsOfStudy")

	body, err := w.get(ctx, fmt.Sprintf("%s/papers/forpaper/%s", w.cfg.RecBaseURL, url.PathEscape(s2ID)), q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var resp struct {
		RecommendedPapers []s2Paper `json:"recommendedPapers"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}

	papers := make([]*dtypes.DiscoveredPaper, 0, len(resp.RecommendedPapers))
	for i, p := range resp.RecommendedPapers {
		recScore := 1.0 - float64(i)/float64(max(len(resp.RecommendedPapers), 1))
		papers = append(papers, p.toDiscoveredPaper(dtypes.RelationshipSemanticSimilarity, recScore))
	}
	return papers, nil
}

func (w *Worker) fetchCitations(ctx context.Context, s2ID string) ([]*dtypes.DiscoveredPaper, error) {
	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("fields", "title,abstract,authors,venue,year,citationCount,influentialCitationCount,externalIds,fieldsOfStudy,isInfluential")

	body, err := w.get(ctx, fmt.Sprintf("%s/paper/%s/citations", w.cfg.BaseURL, url.PathEscape(s2ID)), q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var resp struct {
		Data []struct {
			IsInfluential bool    `json:"isInfluential"`
			CitingPaper   s2Paper `json:"citingPaper"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}

	var influential, total int
	for _, d := range resp.Data {
		total++
		if d.IsInfluential {
			influential++
		}
	}
	influentialRatio := 0.0
	if total > 0 {
		influentialRatio = float64(influential) / float64(total)
	}

	papers := make([]*dtypes.DiscoveredPaper, 0, len(resp.Data))
	for _, d := range resp.Data {
		seed := seedScore(0, influentialRatio, topicOverlap(d.CitingPaper.FieldsOfStudy), citationVelocity(d.CitingPaper.CitationCount, d.CitingPaper.Year))
		dp := d.CitingPaper.toDiscoveredPaper(dtypes.RelationshipCitedBy, seed)
		papers = append(papers, dp)
	}
	return papers, nil
}

// fetchTopicMatches discovers papers sharing the seed's primary field or
// keywords via a plain bulk search, emitting RelationshipTopic results so
// a topic-only overlap (no citation or recommendation link) still
// surfaces.
func (w *Worker) fetchTopicMatches(ctx context.Context, paper dtypes.SourcePaper) ([]*dtypes.DiscoveredPaper, error) {
	query := paper.PrimaryField
	if len(paper.Keywords) > 0 {
		if query != "" {
			query += " "
		}
		query += strings.Join(paper.Keywords, " ")
	}
	if query == "" {
		return nil, errSubFetchSkipped
	}

	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", "20")
	q.Set("fields", "title,abstract,authors,venue,year,citationCount,influentialCitationCount,externalIds,fieldsOfStudy")

	body, err := w.get(ctx, w.cfg.BaseURL+"/paper/search", q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var resp struct {
		Data []s2Paper `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}

	papers := make([]*dtypes.DiscoveredPaper, 0, len(resp.Data))
	for _, p := range resp.Data {
		seed := topicOverlap(p.FieldsOfStudy)
		papers = append(papers, p.toDiscoveredPaper(dtypes.RelationshipTopic, seed))
	}
	return papers, nil
}

// fetchAuthorNetwork discovers other work by the seed's first author,
// emitting RelationshipAuthorNetwork results so a shared author alone
// can surface a candidate even without a direct citation link.
func (w *Worker) fetchAuthorNetwork(ctx context.Context, paper dtypes.SourcePaper) ([]*dtypes.DiscoveredPaper, error) {
	if len(paper.Authors) == 0 || paper.Authors[0] == "" {
		return nil, errSubFetchSkipped
	}

	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("query", paper.Authors[0])
	q.Set("limit", "1")
	q.Set("fields", "authorId")

	body, err := w.get(ctx, w.cfg.BaseURL+"/author/search", q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var authorResp struct {
		Data []struct {
			AuthorID string `json:"authorId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &authorResp); err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}
	if len(authorResp.Data) == 0 {
		return nil, nil
	}
	authorID := authorResp.Data[0].AuthorID

	permit, err = w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}
	pq := url.Values{}
	pq.Set("fields", "title,abstract,authors,venue,year,citationCount,influentialCitationCount,externalIds,fieldsOfStudy")
	pq.Set("limit", "20")

	body, err = w.get(ctx, fmt.Sprintf("%s/author/%s/papers", w.cfg.BaseURL, url.PathEscape(authorID)), pq)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	var papersResp struct {
		Data []s2Paper `json:"data"`
	}
	if err := json.Unmarshal(body, &papersResp); err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}

	papers := make([]*dtypes.DiscoveredPaper, 0, len(papersResp.Data))
	for i, p := range papersResp.Data {
		seed := 1.0 - float64(i)/float64(max(len(papersResp.Data), 1))
		papers = append(papers, p.toDiscoveredPaper(dtypes.RelationshipAuthorNetwork, seed))
	}
	return papers, nil
}

// seedScore implements §4.2.2's weighted combination: recommendation
// (0.4), influential-citation ratio (0.25), topic overlap (0.2),
// citation velocity (0.15), each clipped to [0, its weight].
func seedScore(recommendation, influentialRatio, topicOverlap, citationVelocity float64) float64 {
	clip := func(v, weight float64) float64 {
		v *= weight
		if v < 0 {
			return 0
		}
		if v > weight {
			return weight
		}
		return v
	}
	return clip(recommendation, 0.4) + clip(influentialRatio, 0.25) + clip(topicOverlap, 0.2) + clip(citationVelocity, 0.15)
}

func topicOverlap(fields []string) float64 {
	if len(fields) == 0 {
		return 0
	}
	return math.Min(1, float64(len(fields))/3)
}

func citationVelocity(citationCount, year int) float64 {
	if year <= 0 {
		return 0
	}
	age := time.Now().Year() - year
	if age < 1 {
		age = 1
	}
	return math.Min(1, float64(citationCount)/float64(age)/20)
}

func (w *Worker) get(ctx context.Context, fullURL string, q url.Values) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	u := fullURL
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	// A request already sent is allowed to finish (bounded by the HTTP
	// client's timeout); cancellation stops the next one.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if w.cfg.APIKey != "" {
		req.Header.Set("x-api-key", w.cfg.APIKey)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("semantic scholar server error: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("semantic scholar client error: %d", resp.StatusCode)
	}
	return data, nil
}

type s2Paper struct {
	PaperID                  string            `json:"paperId"`
	Title                    string            `json:"title"`
	Abstract                 string            `json:"abstract"`
	Venue                    string            `json:"venue"`
	Year                     int               `json:"year"`
	CitationCount            int               `json:"citationCount"`
	InfluentialCitationCount int               `json:"influentialCitationCount"`
	FieldsOfStudy            []string          `json:"fieldsOfStudy"`
	Authors                  []s2Author        `json:"authors"`
	ExternalIDs              map[string]string `json:"externalIds"`
}

type s2Author struct {
	Name string `json:"name"`
}

func (p s2Paper) toDiscoveredPaper(rel dtypes.RelationshipType, seed float64) *dtypes.DiscoveredPaper {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.Name)
	}
	var published *time.Time
	if p.Year > 0 {
		t := time.Date(p.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		published = &t
	}
	externalIDs := map[string]string{"s2_id": p.PaperID}
	if doi, ok := p.ExternalIDs["DOI"]; ok {
		externalIDs["doi"] = doi
	}
	if arxiv, ok := p.ExternalIDs["ArXiv"]; ok {
		externalIDs["arxiv"] = arxiv
	}

	return &dtypes.DiscoveredPaper{
		ID:                       uuid.NewString(),
		ExternalIDs:              externalIDs,
		Title:                    p.Title,
		Abstract:                 p.Abstract,
		Authors:                  authors,
		Venue:                    p.Venue,
		PublishedDate:            published,
		CitationCount:            p.CitationCount,
		InfluentialCitationCount: p.InfluentialCitationCount,
		ResearchTopics:           p.FieldsOfStudy,
		RelationshipType:         rel,
		SeedScore:                seed,
		RelevanceScore:           seed,
		SourceOfRecord:           dtypes.SourceSemanticScholar,
		DiscoverySources:         map[dtypes.DiscoverySource]struct{}{dtypes.SourceSemanticScholar: {}},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

