package models

import (
	"time"

	"gorm.io/gorm"
)

// DiscoveredPaper is the persisted record of one candidate surfaced by
// a discovery run, independent of whether it is later imported as a
// full Paper.
type DiscoveredPaper struct {
	ID               string            `json:"id" gorm:"primaryKey;type:varchar(50)" validate:"required"`
	SourcePaperID    string            `json:"source_paper_id" gorm:"type:varchar(50);not null;index" validate:"required"`
	ExternalIDs      map[string]string `json:"external_ids" gorm:"serializer:json"`
	Title            string            `json:"title" gorm:"type:text;not null"`
	Abstract         *string           `json:"abstract,omitempty" gorm:"type:text"`
	Authors          []string          `json:"authors" gorm:"serializer:json"`
	Venue            *string           `json:"venue,omitempty" gorm:"type:varchar(500)"`
	PublishedAt      *time.Time        `json:"published_at,omitempty"`
	CitationCount    int               `json:"citation_count" gorm:"default:0"`
	ResearchTopics   []string          `json:"research_topics" gorm:"serializer:json"`
	RelevanceScore   float64           `json:"relevance_score" gorm:"index" validate:"min=0,max=1"`
	SourceOfRecord   string            `json:"source_of_record" gorm:"type:varchar(50)" validate:"oneof=CROSSREF SEMANTIC_SCHOLAR PERPLEXITY INTERNAL_CACHE"`
	DiscoverySources []string          `json:"discovery_sources" gorm:"serializer:json"`
	HitCount         int               `json:"hit_count" gorm:"default:1"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (DiscoveredPaper) TableName() string { return "discovered_papers" }

// PaperRelationship records one edge between a source paper and a
// discovered paper; unique on (source_paper_id, discovered_paper_id,
// relationship_type) since the same pair can be related multiple ways.
type PaperRelationship struct {
	ID                string  `json:"id" gorm:"primaryKey;type:varchar(50)"`
	SourcePaperID     string  `json:"source_paper_id" gorm:"type:varchar(50);not null;uniqueIndex:idx_relationship_unique"`
	DiscoveredPaperID string  `json:"discovered_paper_id" gorm:"type:varchar(50);not null;uniqueIndex:idx_relationship_unique"`
	RelationshipType  string  `json:"relationship_type" gorm:"type:varchar(50);not null;uniqueIndex:idx_relationship_unique"`
	Weight            float64 `json:"weight"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PaperRelationship) TableName() string { return "paper_relationships" }

// DiscoveryResult is a persisted summary row of one completed
// discovery run, retained for auditing/retrieval. Rows can be removed
// with DiscoveryRepository.PurgeResultsOlderThan; no automatic sweep runs.
type DiscoveryResult struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(50)"`
	TaskID            string    `json:"task_id" gorm:"type:varchar(50);index"`
	SourcePaperID     string    `json:"source_paper_id" gorm:"type:varchar(50);index"`
	UserID            *string   `json:"user_id,omitempty" gorm:"type:varchar(50);index"`
	RawCount          int       `json:"raw_count"`
	ProcessedCount    int       `json:"processed_count"`
	OverallConfidence float64   `json:"overall_confidence"`
	PartialResult     bool      `json:"partial_result"`
	CacheHit          bool      `json:"cache_hit"`
	Warnings          []string  `json:"warnings" gorm:"serializer:json"`
	Errors            []string  `json:"errors" gorm:"serializer:json"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

func (DiscoveryResult) TableName() string { return "discovery_results" }
