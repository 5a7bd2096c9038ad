package services

import (
	"context"
	"log/slog"
	"time"

	"paperlink-discovery/internal/messaging"
	"paperlink-discovery/internal/repository"
)

// AnalyticsService handles analytics-related business logic
type AnalyticsService struct {
	repo      repository.SearchRepository
	messaging *messaging.Client
	logger    *slog.Logger
}

// GetPopularQueries implements AnalyticsServiceInterface.
func (s *AnalyticsService) GetPopularQueries(ctx context.Context, limit int, from time.Time, to time.Time) ([]*PopularQuery, error) {
	panic("unimplemented")
}

// GetProviderPerformance implements AnalyticsServiceInterface.
func (s *AnalyticsService) GetProviderPerformance(ctx context.Context, from time.Time, to time.Time) (map[string]*ProviderMetrics, error) {
	panic("unimplemented")
}

// GetSearchMetrics implements AnalyticsServiceInterface.
func (s *AnalyticsService) GetSearchMetrics(ctx context.Context, from time.Time, to time.Time) (*SearchMetrics, error) {
	panic("unimplemented")
}

// GetUserActivity implements AnalyticsServiceInterface.
func (s *AnalyticsService) GetUserActivity(ctx context.Context, userID string, from time.Time, to time.Time) (*UserActivity, error) {
	panic("unimplemented")
}

// RecordEvent implements AnalyticsServiceInterface.
func (s *AnalyticsService) RecordEvent(ctx context.Context, event *AnalyticsEvent) error {
	panic("unimplemented")
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.SearchRepository, messaging *messaging.Client, logger *slog.Logger) AnalyticsServiceInterface {
	return &AnalyticsService{
		repo:      repo,
		messaging: messaging,
		logger:    logger,
	}
}

// Health checks the health of the analytics service
func (s *AnalyticsService) Health(ctx context.Context) error {
	// TODO: Implement health check logic
	return nil
}
