// Package types holds the shared data model for the Related-Paper
// Discovery Core: source papers, discovery configuration, discovered
// papers, and the results each layer passes to the next.
package types

import "time"

// DiscoveryMode selects defaults for a DiscoveryConfiguration.
type DiscoveryMode string

const (
	ModeQuick         DiscoveryMode = "QUICK"
	ModeComprehensive DiscoveryMode = "COMPREHENSIVE"
	ModeTargeted      DiscoveryMode = "TARGETED"
	ModeExperimental  DiscoveryMode = "EXPERIMENTAL"
)

// DiversityLevel governs how strongly the synthesis engine trades
// relevance for cross-dimension diversity during selection.
type DiversityLevel string

const (
	DiversityLow    DiversityLevel = "LOW"
	DiversityMedium DiversityLevel = "MEDIUM"
	DiversityHigh   DiversityLevel = "HIGH"
)

// DiscoverySource identifies which external collaborator produced a
// candidate paper, or the internal cache when the whole run was a hit.
type DiscoverySource string

const (
	SourceCrossref        DiscoverySource = "CROSSREF"
	SourceSemanticScholar DiscoverySource = "SEMANTIC_SCHOLAR"
	SourcePerplexity      DiscoverySource = "PERPLEXITY"
	SourceInternalCache   DiscoverySource = "INTERNAL_CACHE"
)

// RelationshipType classifies how a discovered paper relates to the
// source paper. The weight is used directly by the fusion formula.
type RelationshipType string

var relationshipWeights = map[RelationshipType]float64{
	RelationshipCites:              0.9,
	RelationshipCitedBy:            0.9,
	RelationshipSemanticSimilarity: 0.8,
	RelationshipAuthorNetwork:      0.6,
	RelationshipVenue:              0.4,
	RelationshipTopic:              0.5,
	RelationshipTrending:           0.5,
	RelationshipOpenAccessVariant:  0.3,
}

const (
	RelationshipCites              RelationshipType = "CITES"
	RelationshipCitedBy            RelationshipType = "CITED_BY"
	RelationshipSemanticSimilarity RelationshipType = "SEMANTIC_SIMILARITY"
	RelationshipAuthorNetwork      RelationshipType = "AUTHOR_NETWORK"
	RelationshipVenue              RelationshipType = "VENUE"
	RelationshipTopic              RelationshipType = "TOPIC"
	RelationshipTrending           RelationshipType = "TRENDING"
	RelationshipOpenAccessVariant  RelationshipType = "OPEN_ACCESS_VARIANT"
)

// Weight returns the importance weight used in cross-source fusion and
// as a §4.2 tie-break signal.
func (r RelationshipType) Weight() float64 {
	if w, ok := relationshipWeights[r]; ok {
		return w
	}
	return 0
}

// SourcePaper is the read-only input to the discovery core.
type SourcePaper struct {
	ID                 string
	Title              string
	Abstract           string
	Authors            []string
	DOI                string
	Journal            string
	PublishedDate      *time.Time
	PrimaryField       string
	Keywords           []string
	MainConcepts       map[string]interface{}
	MethodologyDetails map[string]interface{}
	KeyFindings        map[string]interface{}
}

// DiscoveryConfiguration is a value object: every field that can affect
// output must be covered by the cache's configuration fingerprint.
type DiscoveryConfiguration struct {
	Mode              DiscoveryMode
	SourcesEnabled    []DiscoverySource
	MaxPerSource      int
	MaxTotal          int
	MinRelevance      float64
	DiversityLevel    DiversityLevel
	Timeout           time.Duration
	Parallel          bool
	EnableAISynthesis bool
}

// HasSource reports whether a source is in SourcesEnabled.
func (c DiscoveryConfiguration) HasSource(s DiscoverySource) bool {
	for _, e := range c.SourcesEnabled {
		if e == s {
			return true
		}
	}
	return false
}

// Clamp enforces the invariant max_total ≤ max_per_source × |sources_enabled|
// and basic bounds, mutating in place and returning itself for chaining.
func (c *DiscoveryConfiguration) Clamp() *DiscoveryConfiguration {
	if c.MaxPerSource < 1 {
		c.MaxPerSource = 1
	}
	if c.MaxPerSource > 200 {
		c.MaxPerSource = 200
	}
	if c.MinRelevance < 0 {
		c.MinRelevance = 0
	}
	if c.MinRelevance > 1 {
		c.MinRelevance = 1
	}
	ceiling := c.MaxPerSource * len(c.SourcesEnabled)
	if c.MaxTotal > ceiling {
		c.MaxTotal = ceiling
	}
	if c.MaxTotal < 0 {
		c.MaxTotal = 0
	}
	return c
}

// DiscoveredPaper is one output unit of the discovery core.
type DiscoveredPaper struct {
	ID                        string
	ExternalIDs               map[string]string // doi, s2_id, arxiv, url
	Title                     string
	Abstract                  string
	Authors                   []string
	Venue                     string
	PublishedDate             *time.Time
	CitationCount             int
	InfluentialCitationCount  int
	ResearchTopics            []string
	RelevanceScore            float64
	SourceOfRecord            DiscoverySource
	DiscoverySources          map[DiscoverySource]struct{}
	RelationshipType          RelationshipType
	AdditionalMetadata        map[string]interface{}
	SeedScore                 float64 // per-worker seed, before fusion
	Confidence                float64 // worker-reported confidence (Perplexity)
	HitCount                  int
}

// DiscoverySet returns the discovery sources as a sorted-independent slice.
func (p *DiscoveredPaper) DiscoverySet() []DiscoverySource {
	out := make([]DiscoverySource, 0, len(p.DiscoverySources))
	for s := range p.DiscoverySources {
		out = append(out, s)
	}
	return out
}

// AddSource records that another source also produced this candidate.
func (p *DiscoveredPaper) AddSource(s DiscoverySource) {
	if p.DiscoverySources == nil {
		p.DiscoverySources = make(map[DiscoverySource]struct{})
	}
	p.DiscoverySources[s] = struct{}{}
}

// SourceDiscoveryResult is one worker's output for one discovery run.
type SourceDiscoveryResult struct {
	Source       DiscoverySource
	Papers       []*DiscoveredPaper
	Metadata     map[string]interface{}
	Duration     time.Duration
	Success      bool
	ErrorMessage string
}

// UnifiedDiscoveryResult is the Synthesis Engine's output.
type UnifiedDiscoveryResult struct {
	SourcePaperID     string
	Papers            []*DiscoveredPaper
	PerSourceResults  []SourceDiscoveryResult
	SynthesisMetadata SynthesisMetadata
	Configuration     DiscoveryConfiguration
}

// SynthesisMetadata records how a run's output was produced.
type SynthesisMetadata struct {
	RawCount         int
	ProcessedCount   int
	SuccessfulSources []DiscoverySource
	FailedSources    []DiscoverySource
	ProcessingTime   time.Duration
	OverallConfidence float64
	PartialResult    bool
	CacheHit         bool
	Warnings         []string
	Errors           []string
}

// TaskStatus is the AgentTask lifecycle state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskTimedOut   TaskStatus = "TIMED_OUT"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// IsTerminal reports whether the status cannot transition further.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskTimedOut, TaskCancelled:
		return true
	default:
		return false
	}
}

// AgentTask is the durable unit of work tracked by the task substrate.
type AgentTask struct {
	TaskID     string
	AgentID    string
	UserID     string
	Input      []byte
	Status     TaskStatus
	Result     []byte
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Attempts   int
}

// CachedDiscoveryResult wraps a UnifiedDiscoveryResult with cache bookkeeping.
type CachedDiscoveryResult struct {
	Result   UnifiedDiscoveryResult
	StoredAt time.Time
	TTL      time.Duration
	HitCount int
}

// Expired reports whether the entry is past its TTL as of now.
func (c CachedDiscoveryResult) Expired(now time.Time) bool {
	return now.After(c.StoredAt.Add(c.TTL))
}

// RateLimiterState is a read-only snapshot of a source's rate limiter.
type RateLimiterState struct {
	Source               DiscoverySource
	Capacity              float64
	Tokens                 float64
	RefillRatePerSecond    float64
	LastRefill             time.Time
	CircuitState           string
	ConsecutiveFailures    int
	OpenedAt               *time.Time
	TotalAcquired          int64
	TotalRejected          int64
}

// DiscoveryResponse is C7's single return type.
type DiscoveryResponse struct {
	TaskID        string
	UnifiedResult *UnifiedDiscoveryResult
	Error         string
	PartialResult bool
}
