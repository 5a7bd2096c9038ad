package repository

import (
	"context"
	"log/slog"
	"time"

	"paperlink-discovery/internal/errors"
	"paperlink-discovery/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// discoveryRepository implements DiscoveryRepository.
type discoveryRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDiscoveryRepository creates a new discovery repository.
func NewDiscoveryRepository(db *gorm.DB, logger *slog.Logger) DiscoveryRepository {
	return &discoveryRepository{db: db, logger: logger}
}

// UpsertDiscoveredPaper inserts or updates by ID; the caller resolves
// the strongest external identifier before calling so repeated
// discovery hits converge onto one row.
func (r *discoveryRepository) UpsertDiscoveredPaper(ctx context.Context, paper *models.DiscoveredPaper) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(paper).Error
	if err != nil {
		return errors.NewDatabaseError("upsert_discovered_paper", err)
	}
	return nil
}

func (r *discoveryRepository) GetDiscoveredPaper(ctx context.Context, id string) (*models.DiscoveredPaper, error) {
	var p models.DiscoveredPaper
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("discovered paper not found", "discovered_paper")
		}
		return nil, errors.NewDatabaseError("get_discovered_paper", err)
	}
	return &p, nil
}

func (r *discoveryRepository) ListBySourcePaper(ctx context.Context, sourcePaperID string, limit int) ([]models.DiscoveredPaper, error) {
	var papers []models.DiscoveredPaper
	q := r.db.WithContext(ctx).Where("source_paper_id = ?", sourcePaperID).Order("relevance_score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&papers).Error; err != nil {
		return nil, errors.NewDatabaseError("list_discovered_papers", err)
	}
	return papers, nil
}

// UpsertRelationship relies on the unique index over
// (source_paper_id, discovered_paper_id, relationship_type) to make
// repeated discovery of the same edge a no-op update.
func (r *discoveryRepository) UpsertRelationship(ctx context.Context, rel *models.PaperRelationship) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_paper_id"}, {Name: "discovered_paper_id"}, {Name: "relationship_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight"}),
	}).Create(rel).Error
	if err != nil {
		return errors.NewDatabaseError("upsert_relationship", err)
	}
	return nil
}

func (r *discoveryRepository) ListRelationships(ctx context.Context, sourcePaperID string) ([]models.PaperRelationship, error) {
	var rels []models.PaperRelationship
	if err := r.db.WithContext(ctx).Where("source_paper_id = ?", sourcePaperID).Find(&rels).Error; err != nil {
		return nil, errors.NewDatabaseError("list_relationships", err)
	}
	return rels, nil
}

func (r *discoveryRepository) SaveResult(ctx context.Context, result *models.DiscoveryResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return errors.NewDatabaseError("save_discovery_result", err)
	}
	return nil
}

// PurgeResultsOlderThan deletes discovery results created before cutoff
// and returns how many rows were removed. No sweep in the service calls
// it, so results are not purged automatically.
func (r *discoveryRepository) PurgeResultsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.DiscoveryResult{})
	if res.Error != nil {
		return 0, errors.NewDatabaseError("purge_discovery_results", res.Error)
	}
	return res.RowsAffected, nil
}
