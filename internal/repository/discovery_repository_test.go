package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paperlink-discovery/internal/models"
)

func newDiscoveryTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DiscoveredPaper{}, &models.PaperRelationship{}, &models.DiscoveryResult{}))
	return db
}

func testRepoLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func samplePaper(id, sourcePaperID string, relevance float64) *models.DiscoveredPaper {
	return &models.DiscoveredPaper{
		ID:             id,
		SourcePaperID:  sourcePaperID,
		ExternalIDs:    map[string]string{"doi": "10.1/" + id},
		Title:          "Paper " + id,
		Authors:        []string{"Jane Doe"},
		RelevanceScore: relevance,
		SourceOfRecord: "CROSSREF",
	}
}

func TestDiscoveryRepository_UpsertDiscoveredPaperInsertsThenUpdates(t *testing.T) {
	repo := NewDiscoveryRepository(newDiscoveryTestDB(t), testRepoLogger())
	ctx := context.Background()

	p := samplePaper("dp_1", "seed", 0.5)
	require.NoError(t, repo.UpsertDiscoveredPaper(ctx, p))

	p.RelevanceScore = 0.9
	require.NoError(t, repo.UpsertDiscoveredPaper(ctx, p))

	got, err := repo.GetDiscoveredPaper(ctx, "dp_1")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.RelevanceScore, 0.001, "a repeated upsert on the same id must update, not duplicate")
}

func TestDiscoveryRepository_GetDiscoveredPaperNotFound(t *testing.T) {
	repo := NewDiscoveryRepository(newDiscoveryTestDB(t), testRepoLogger())
	_, err := repo.GetDiscoveredPaper(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDiscoveryRepository_ListBySourcePaperOrdersByRelevanceDescending(t *testing.T) {
	repo := NewDiscoveryRepository(newDiscoveryTestDB(t), testRepoLogger())
	ctx := context.Background()

	require.NoError(t, repo.UpsertDiscoveredPaper(ctx, samplePaper("dp_low", "seed", 0.2)))
	require.NoError(t, repo.UpsertDiscoveredPaper(ctx, samplePaper("dp_high", "seed", 0.9)))
	require.NoError(t, repo.UpsertDiscoveredPaper(ctx, samplePaper("dp_other_seed", "other", 0.99)))

	got, err := repo.ListBySourcePaper(ctx, "seed", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "dp_high", got[0].ID)
	assert.Equal(t, "dp_low", got[1].ID)
}

func TestDiscoveryRepository_ListBySourcePaperRespectsLimit(t *testing.T) {
	repo := NewDiscoveryRepository(newDiscoveryTestDB(t), testRepoLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.UpsertDiscoveredPaper(ctx, samplePaper(string(rune('a'+i)), "seed", float64(i)/10)))
	}

	got, err := repo.ListBySourcePaper(ctx, "seed", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDiscoveryRepository_UpsertRelationshipIsIdempotentOnSameEdge(t *testing.T) {
	repo := NewDiscoveryRepository(newDiscoveryTestDB(t), testRepoLogger())
	ctx := context.Background()

	rel := &models.PaperRelationship{ID: "rel_1", SourcePaperID: "seed", DiscoveredPaperID: "dp_1", RelationshipType: "CITES", Weight: 0.9}
	require.NoError(t, repo.UpsertRelationship(ctx, rel))

	rel2 := &models.PaperRelationship{ID: "rel_2", SourcePaperID: "seed", DiscoveredPaperID: "dp_1", RelationshipType: "CITES", Weight: 0.5}
	require.NoError(t, repo.UpsertRelationship(ctx, rel2))

	got, err := repo.ListRelationships(ctx, "seed")
	require.NoError(t, err)
	require.Len(t, got, 1, "the same source/discovered/type edge must collapse to one row")
	assert.InDelta(t, 0.5, got[0].Weight, 0.001, "a repeated upsert on the same edge must update the weight")
}

func TestDiscoveryRepository_SaveResultAndPurgeOlderThan(t *testing.T) {
	db := newDiscoveryTestDB(t)
	repo := NewDiscoveryRepository(db, testRepoLogger())
	ctx := context.Background()

	recent := &models.DiscoveryResult{ID: "res_recent", TaskID: "task_1", SourcePaperID: "seed"}
	require.NoError(t, repo.SaveResult(ctx, recent))

	old := &models.DiscoveryResult{ID: "res_old", TaskID: "task_2", SourcePaperID: "seed"}
	require.NoError(t, repo.SaveResult(ctx, old))
	require.NoError(t, db.Model(&models.DiscoveryResult{}).Where("id = ?", "res_old").
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	purged, err := repo.PurgeResultsOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.DiscoveryResult{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining, "only the aged-out result should have been purged")
}
