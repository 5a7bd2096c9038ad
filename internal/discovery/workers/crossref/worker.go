// Package crossref implements the Crossref source worker (C2.1):
// bibliographic citation network discovery against the Crossref JSON
// API. Grounded on internal/providers/arxiv.Provider's HTTP-client +
// buildQuery/makeRequest/parseResponse shape, adapted to Crossref's
// /works endpoints and the discovery core's SourceWorker contract.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	scifinderrors "paperlink-discovery/internal/errors"

	"paperlink-discovery/internal/discovery/ratelimit"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/workers"
)

const (
	defaultBaseURL = "https://api.crossref.org"
	sourceName     = "CROSSREF"
)

// Config configures the Crossref worker.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Worker implements workers.SourceWorker for Crossref.
type Worker struct {
	cfg        Config
	httpClient *http.Client
	limiter    workers.RateLimiter
	logger     *slog.Logger
}

// New creates a Crossref worker.
func New(cfg Config, limiter workers.RateLimiter, logger *slog.Logger) *Worker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = workers.PerCallTimeout
	}
	return &Worker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

func (w *Worker) Source() dtypes.DiscoverySource { return dtypes.SourceCrossref }

type subFetch struct {
	relationship dtypes.RelationshipType
	path         string
	query        url.Values
}

// Discover implements the contract: never throws past this boundary.
func (w *Worker) Discover(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.SourceDiscoveryResult {
	start := time.Now()
	result := dtypes.SourceDiscoveryResult{Source: dtypes.SourceCrossref, Metadata: map[string]interface{}{}}

	doi := paper.DOI
	if doi == "" {
		resolved, err := w.resolveDOIByTitle(ctx, paper.Title)
		if err != nil {
			result.Success = false
			result.ErrorMessage = err.Error()
			result.Duration = time.Since(start)
			return result
		}
		doi = resolved
	}
	if doi == "" {
		result.Success = false
		result.ErrorMessage = "could not resolve DOI"
		result.Duration = time.Since(start)
		return result
	}

	perFetchCap := subfetchCapExported(cfg.MaxPerSource, 5)

	fetches := []subFetch{
		{relationship: dtypes.RelationshipCitedBy, path: fmt.Sprintf("/works/%s/citations", url.PathEscape(doi))},
		{relationship: dtypes.RelationshipCites, path: fmt.Sprintf("/works/%s/references", url.PathEscape(doi))},
		{relationship: dtypes.RelationshipAuthorNetwork, path: "/works", query: authorQuery(paper.Authors)},
		{relationship: dtypes.RelationshipVenue, path: "/works", query: venueQuery(paper.Journal)},
		{relationship: dtypes.RelationshipTopic, path: "/works", query: subjectQuery(paper.Keywords, paper.PrimaryField)},
	}

	var papers []*dtypes.DiscoveredPaper
	var anySucceeded bool
	for _, f := range fetches {
		items, err := w.fetchOne(ctx, f, perFetchCap)
		if err != nil {
			w.logger.Debug("crossref sub-fetch failed", slog.String("relationship", string(f.relationship)), slog.String("error", err.Error()))
			continue
		}
		anySucceeded = true
		papers = append(papers, items...)
	}

	if !anySucceeded {
		result.Success = false
		result.ErrorMessage = "all crossref sub-fetches failed"
		result.Duration = time.Since(start)
		return result
	}

	papers = workers.ClampListExported(papers, cfg.MaxPerSource)
	result.Papers = papers
	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (w *Worker) fetchOne(ctx context.Context, f subFetch, cap int) ([]*dtypes.DiscoveredPaper, error) {
	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return nil, err
	}

	q := f.query
	if q == nil {
		q = url.Values{}
	}
	if cap > 0 {
		q.Set("rows", strconv.Itoa(cap))
	}

	body, err := w.get(ctx, f.path, q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return nil, scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	items, err := parseWorksResponse(body)
	if err != nil {
		return nil, scifinderrors.NewSourceProtocolError(sourceName, err.Error())
	}

	out := make([]*dtypes.DiscoveredPaper, 0, len(items))
	for _, it := range items {
		dp := it.toDiscoveredPaper(f.relationship)
		out = append(out, dp)
	}
	return out, nil
}

func (w *Worker) resolveDOIByTitle(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", scifinderrors.NewInvalidInputError("missing title for DOI probe", "title")
	}
	permit, err := w.limiter.Acquire(ctx, sourceName, 10*time.Second)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("query.bibliographic", title)
	q.Set("rows", "1")

	body, err := w.get(ctx, "/works", q)
	if err != nil {
		permit.Report(ratelimit.Failure)
		return "", scifinderrors.NewSourceTransportError(sourceName, err)
	}
	permit.Report(ratelimit.Success)

	items, err := parseWorksResponse(body)
	if err != nil || len(items) == 0 {
		return "", nil
	}
	return items[0].DOI, nil
}

func (w *Worker) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	u := w.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	// A request already sent is allowed to finish (bounded by the HTTP
	// client's timeout); cancellation stops the next one.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

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
		return nil, fmt.Errorf("crossref server error: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("crossref client error: %d", resp.StatusCode)
	}
	return data, nil
}

func authorQuery(authors []string) url.Values {
	q := url.Values{}
	if len(authors) > 0 {
		q.Set("query.author", authors[0])
	}
	q.Set("sort", "published")
	q.Set("order", "desc")
	return q
}

func venueQuery(journal string) url.Values {
	q := url.Values{}
	if journal != "" {
		q.Set("query.container-title", journal)
	}
	q.Set("sort", "published")
	q.Set("order", "desc")
	return q
}

func subjectQuery(keywords []string, field string) url.Values {
	q := url.Values{}
	terms := append([]string{}, keywords...)
	if field != "" {
		terms = append(terms, field)
	}
	q.Set("query", strings.Join(terms, " "))
	return q
}

// --- Crossref response schema (minimal) ---

type worksEnvelope struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI         string     `json:"DOI"`
	Title       []string   `json:"title"`
	Author      []author   `json:"author"`
	ContainerTitle []string `json:"container-title"`
	Published   *dateParts `json:"published"`
	IsReferencedByCount int `json:"is-referenced-by-count"`
	Subject     []string   `json:"subject"`
	URL         string     `json:"URL"`
}

type author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d *dateParts) toTime() *time.Time {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return nil
	}
	parts := d.DateParts[0]
	year := parts[0]
	month := 1
	day := 1
	if len(parts) > 1 {
		month = parts[1]
	}
	if len(parts) > 2 {
		day = parts[2]
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func parseWorksResponse(body []byte) ([]crossrefItem, error) {
	var env worksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return env.Message.Items, nil
}

func (it crossrefItem) toDiscoveredPaper(rel dtypes.RelationshipType) *dtypes.DiscoveredPaper {
	title := ""
	if len(it.Title) > 0 {
		title = it.Title[0]
	}
	venue := ""
	if len(it.ContainerTitle) > 0 {
		venue = it.ContainerTitle[0]
	}
	authors := make([]string, 0, len(it.Author))
	for _, a := range it.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}
	published := it.Published.toTime()

	seed := seedScore(rel, published, venue)

	dp := &dtypes.DiscoveredPaper{
		ID:               uuid.NewString(),
		ExternalIDs:      map[string]string{"doi": it.DOI, "url": it.URL},
		Title:            title,
		Authors:          authors,
		Venue:            venue,
		PublishedDate:    published,
		CitationCount:    it.IsReferencedByCount,
		ResearchTopics:   it.Subject,
		RelationshipType: rel,
		SeedScore:        seed,
		RelevanceScore:   seed,
		SourceOfRecord:   dtypes.SourceCrossref,
		DiscoverySources: map[dtypes.DiscoverySource]struct{}{dtypes.SourceCrossref: {}},
	}
	return dp
}

// seedScore implements §4.2.1: per-relationship base × freshness × venue quality.
func seedScore(rel dtypes.RelationshipType, published *time.Time, venue string) float64 {
	base := rel.Weight()
	freshness := freshnessFactor(published)
	venueQuality := venueQualityFactor(venue)
	score := base * freshness * venueQuality
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func freshnessFactor(published *time.Time) float64 {
	if published == nil {
		return 0.7
	}
	years := time.Since(*published).Hours() / (24 * 365)
	if years < 0 {
		years = 0
	}
	// Decays linearly from 1.0 to a floor of 0.5, reached at 5 years.
	f := 1.0 - math.Min(years/10, 0.5)
	return f
}

func venueQualityFactor(venue string) float64 {
	if venue == "" {
		return 0.8
	}
	return 1.0
}

// subfetchCapExported returns ceil(maxPerSource / n), the per-sub-fetch
// cap; it repeats the formula of the unexported workers.subfetchCap.
func subfetchCapExported(maxPerSource, n int) int {
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
