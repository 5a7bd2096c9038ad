package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperlink-discovery/internal/discovery/task"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeKVStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string][]byte)}
}

func (s *fakeKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeKVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeKVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeKVStore) ScanByStatus(ctx context.Context, status string) ([]string, error) {
	return nil, nil
}

func (s *fakeKVStore) ScanOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

type fakePaperStore struct {
	paper dtypes.SourcePaper
	err   error
}

func (f *fakePaperStore) GetSourcePaper(ctx context.Context, paperID string) (dtypes.SourcePaper, error) {
	return f.paper, f.err
}

type fakeCoordinator struct {
	result dtypes.UnifiedDiscoveryResult
}

func (f *fakeCoordinator) Run(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult {
	return f.result
}

type fakeRepo struct {
	mu             sync.Mutex
	upsertedPapers []*models.DiscoveredPaper
	savedResults   []*models.DiscoveryResult
}

func (f *fakeRepo) UpsertDiscoveredPaper(ctx context.Context, paper *models.DiscoveredPaper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertedPapers = append(f.upsertedPapers, paper)
	return nil
}

func (f *fakeRepo) GetDiscoveredPaper(ctx context.Context, id string) (*models.DiscoveredPaper, error) {
	return nil, nil
}

func (f *fakeRepo) ListBySourcePaper(ctx context.Context, sourcePaperID string, limit int) ([]models.DiscoveredPaper, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertRelationship(ctx context.Context, rel *models.PaperRelationship) error {
	return nil
}

func (f *fakeRepo) ListRelationships(ctx context.Context, sourcePaperID string) ([]models.PaperRelationship, error) {
	return nil, nil
}

func (f *fakeRepo) SaveResult(ctx context.Context, result *models.DiscoveryResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedResults = append(f.savedResults, result)
	return nil
}

func (f *fakeRepo) PurgeResultsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestAgent_DiscoverRejectsEmptyPaperID(t *testing.T) {
	a := New(&fakePaperStore{}, &fakeCoordinator{}, task.New(newFakeKVStore(), nil, testLogger()), nil, testLogger())
	_, err := a.Discover(context.Background(), "", "user-1", nil)
	assert.Error(t, err)
}

func TestAgent_DiscoverRejectsEmptyUserID(t *testing.T) {
	a := New(&fakePaperStore{}, &fakeCoordinator{}, task.New(newFakeKVStore(), nil, testLogger()), nil, testLogger())
	_, err := a.Discover(context.Background(), "paper-1", "", nil)
	assert.Error(t, err)
}

func TestAgent_DiscoverPropagatesPaperStoreError(t *testing.T) {
	a := New(&fakePaperStore{err: errors.New("paper not found")}, &fakeCoordinator{}, task.New(newFakeKVStore(), nil, testLogger()), nil, testLogger())
	_, err := a.Discover(context.Background(), "paper-1", "user-1", nil)
	assert.Error(t, err)
}

func TestAgent_DiscoverSucceedsAndPersists(t *testing.T) {
	unified := dtypes.UnifiedDiscoveryResult{
		SourcePaperID: "paper-1",
		Papers: []*dtypes.DiscoveredPaper{
			{ID: "dp-1", Title: "Related Paper", ExternalIDs: map[string]string{"doi": "10.1/x"}, RelationshipType: dtypes.RelationshipCites, DiscoverySources: map[dtypes.DiscoverySource]struct{}{dtypes.SourceCrossref: {}}},
		},
	}
	repo := &fakeRepo{}
	a := New(&fakePaperStore{paper: dtypes.SourcePaper{ID: "paper-1", Title: "Seed"}}, &fakeCoordinator{result: unified}, task.New(newFakeKVStore(), nil, testLogger()), repo, testLogger())

	resp, err := a.Discover(context.Background(), "paper-1", "user-1", nil)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.TaskID)
	require.NotNil(t, resp.UnifiedResult)
	assert.Len(t, repo.upsertedPapers, 1)
	assert.Len(t, repo.savedResults, 1)
}

func TestAgent_DiscoverSkipsPersistenceWhenRepoIsNil(t *testing.T) {
	unified := dtypes.UnifiedDiscoveryResult{SourcePaperID: "paper-1"}
	a := New(&fakePaperStore{paper: dtypes.SourcePaper{ID: "paper-1"}}, &fakeCoordinator{result: unified}, task.New(newFakeKVStore(), nil, testLogger()), nil, testLogger())

	resp, err := a.Discover(context.Background(), "paper-1", "user-1", nil)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.TaskID)
}

func TestAgent_StatusPassesThroughToSubstrate(t *testing.T) {
	a := New(&fakePaperStore{paper: dtypes.SourcePaper{ID: "paper-1"}}, &fakeCoordinator{result: dtypes.UnifiedDiscoveryResult{}}, task.New(newFakeKVStore(), nil, testLogger()), nil, testLogger())

	resp, err := a.Discover(context.Background(), "paper-1", "user-1", nil)
	require.NoError(t, err)

	status, err := a.Status(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, status)
}

func TestResolveConfig_DefaultsToComprehensiveWhenNil(t *testing.T) {
	resolved := resolveConfig(nil)
	assert.Equal(t, dtypes.ModeComprehensive, resolved.Mode)
	assert.Contains(t, resolved.SourcesEnabled, dtypes.SourceCrossref)
}

func TestResolveConfig_PresetOverridesAreHonored(t *testing.T) {
	cfg := &dtypes.DiscoveryConfiguration{Mode: dtypes.ModeQuick, MaxTotal: 5}
	resolved := resolveConfig(cfg)
	assert.Equal(t, dtypes.ModeQuick, resolved.Mode)
	assert.Equal(t, 5, resolved.MaxTotal)
}
