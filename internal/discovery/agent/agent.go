// Package agent implements the Discovery Agent (C7): the single
// entry point that validates a request, resolves configuration, wraps
// the run in the durable task substrate, invokes the coordinator, and
// persists results.
//
// Shape grounded on internal/services/search_service.go's
// SearchService (validate request -> execute -> enhance/persist ->
// publish event -> build response).
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	scifinderrors "paperlink-discovery/internal/errors"
	"paperlink-discovery/internal/models"
	"paperlink-discovery/internal/repository"

	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/task"
)

// PaperStore is the read side of the external paper catalog (outbound
// interface #1): the agent needs the source paper's content to drive
// discovery, not a full repository dependency.
type PaperStore interface {
	GetSourcePaper(ctx context.Context, paperID string) (dtypes.SourcePaper, error)
}

// Coordinator is the subset of coordinator.Coordinator the agent drives.
type Coordinator interface {
	Run(ctx context.Context, paper dtypes.SourcePaper, cfg dtypes.DiscoveryConfiguration) dtypes.UnifiedDiscoveryResult
}

// modePresets seeds a DiscoveryConfiguration's tunables from a mode
// name; explicit fields on the incoming request override these.
var modePresets = map[dtypes.DiscoveryMode]dtypes.DiscoveryConfiguration{
	dtypes.ModeQuick: {
		SourcesEnabled: []dtypes.DiscoverySource{dtypes.SourceSemanticScholar},
		MaxPerSource:   10,
		MaxTotal:       10,
		MinRelevance:   0.5,
		DiversityLevel: dtypes.DiversityLow,
		Timeout:        10 * time.Second,
	},
	dtypes.ModeComprehensive: {
		SourcesEnabled: []dtypes.DiscoverySource{dtypes.SourceCrossref, dtypes.SourceSemanticScholar, dtypes.SourcePerplexity},
		MaxPerSource:   50,
		MaxTotal:       100,
		MinRelevance:   0.3,
		DiversityLevel: dtypes.DiversityHigh,
		Timeout:        60 * time.Second,
	},
	dtypes.ModeTargeted: {
		SourcesEnabled: []dtypes.DiscoverySource{dtypes.SourceCrossref, dtypes.SourceSemanticScholar},
		MaxPerSource:   30,
		MaxTotal:       40,
		MinRelevance:   0.45,
		DiversityLevel: dtypes.DiversityMedium,
		Timeout:        30 * time.Second,
	},
	dtypes.ModeExperimental: {
		SourcesEnabled:    []dtypes.DiscoverySource{dtypes.SourceCrossref, dtypes.SourceSemanticScholar, dtypes.SourcePerplexity},
		MaxPerSource:      40,
		MaxTotal:          60,
		MinRelevance:      0.2,
		DiversityLevel:    dtypes.DiversityHigh,
		Timeout:           45 * time.Second,
		EnableAISynthesis: true,
	},
}

// Agent is the discovery core's sole public entry point.
type Agent struct {
	papers      PaperStore
	coordinator Coordinator
	tasks       *task.Substrate
	repo        repository.DiscoveryRepository
	logger      *slog.Logger
}

func New(papers PaperStore, coordinator Coordinator, tasks *task.Substrate, repo repository.DiscoveryRepository, logger *slog.Logger) *Agent {
	return &Agent{papers: papers, coordinator: coordinator, tasks: tasks, repo: repo, logger: logger}
}

// discoverInput is what gets persisted as the task's durable input.
type discoverInput struct {
	PaperID string                       `json:"paper_id"`
	UserID  string                       `json:"user_id"`
	Config  dtypes.DiscoveryConfiguration `json:"config"`
}

// Discover is the agent's single operation: discover(paper_id, user_id,
// config?). It validates input, resolves/clamps configuration, wraps
// the run in the task substrate (credit charge, retry, timeout), and
// on success persists discovered papers and relationships.
func (a *Agent) Discover(ctx context.Context, paperID, userID string, cfg *dtypes.DiscoveryConfiguration) (dtypes.DiscoveryResponse, error) {
	if paperID == "" {
		return dtypes.DiscoveryResponse{}, scifinderrors.NewInvalidInputError("paper_id is required", "paper_id")
	}
	if userID == "" {
		return dtypes.DiscoveryResponse{}, scifinderrors.NewInvalidInputError("user_id is required", "user_id")
	}

	resolved := resolveConfig(cfg)

	paper, err := a.papers.GetSourcePaper(ctx, paperID)
	if err != nil {
		return dtypes.DiscoveryResponse{}, err
	}

	input, err := json.Marshal(discoverInput{PaperID: paperID, UserID: userID, Config: resolved})
	if err != nil {
		return dtypes.DiscoveryResponse{}, scifinderrors.NewInvalidInputError(err.Error(), "config")
	}

	taskID, err := a.tasks.Create(ctx, "discovery_agent", userID, input)
	if err != nil {
		return dtypes.DiscoveryResponse{}, err
	}

	var unified dtypes.UnifiedDiscoveryResult
	runFn := func(runCtx context.Context) ([]byte, error) {
		unified = a.coordinator.Run(runCtx, paper, resolved)
		return json.Marshal(unified)
	}

	classify := func(err error) bool {
		return scifinderrors.IsTransientSourceError(scifinderrors.AsSciFindError(err))
	}

	status, _, err := a.tasks.Run(ctx, taskID, "discover_related_papers", resolved.Timeout, runFn, classify)
	if err != nil {
		return dtypes.DiscoveryResponse{TaskID: taskID, Error: err.Error()}, err
	}

	if status == task.StatusCompleted {
		a.persist(ctx, taskID, userID, paper, unified)
	}

	return dtypes.DiscoveryResponse{
		TaskID:        taskID,
		UnifiedResult: &unified,
		PartialResult: unified.SynthesisMetadata.PartialResult,
	}, nil
}

// Status reports a previously created task's current lifecycle state.
func (a *Agent) Status(ctx context.Context, taskID string) (task.Status, error) {
	return a.tasks.Status(ctx, taskID)
}

func resolveConfig(cfg *dtypes.DiscoveryConfiguration) dtypes.DiscoveryConfiguration {
	resolved := modePresets[dtypes.ModeComprehensive]
	if cfg == nil {
		resolved.Mode = dtypes.ModeComprehensive
		return *resolved.Clamp()
	}
	if preset, ok := modePresets[cfg.Mode]; ok {
		resolved = preset
	}
	if len(cfg.SourcesEnabled) > 0 {
		resolved.SourcesEnabled = cfg.SourcesEnabled
	}
	if cfg.MaxPerSource > 0 {
		resolved.MaxPerSource = cfg.MaxPerSource
	}
	if cfg.MaxTotal > 0 {
		resolved.MaxTotal = cfg.MaxTotal
	}
	if cfg.MinRelevance > 0 {
		resolved.MinRelevance = cfg.MinRelevance
	}
	if cfg.DiversityLevel != "" {
		resolved.DiversityLevel = cfg.DiversityLevel
	}
	if cfg.Timeout > 0 {
		resolved.Timeout = cfg.Timeout
	}
	resolved.Parallel = cfg.Parallel
	if cfg.EnableAISynthesis {
		resolved.EnableAISynthesis = true
	}
	resolved.Mode = cfg.Mode
	return *resolved.Clamp()
}

// persist upserts discovered papers by their strongest external
// identifier and records relationships plus a run summary. Persistence
// failures are logged, not propagated: the run already succeeded from
// the caller's point of view.
func (a *Agent) persist(ctx context.Context, taskID, userID string, paper dtypes.SourcePaper, unified dtypes.UnifiedDiscoveryResult) {
	if a.repo == nil {
		return
	}
	for _, dp := range unified.Papers {
		row := toModel(paper.ID, dp)
		if err := a.repo.UpsertDiscoveredPaper(ctx, row); err != nil {
			a.logger.Warn("failed to persist discovered paper", slog.String("error", err.Error()))
			continue
		}
		rel := &models.PaperRelationship{
			ID:                uuid.NewString(),
			SourcePaperID:     paper.ID,
			DiscoveredPaperID: row.ID,
			RelationshipType:  string(dp.RelationshipType),
			Weight:            dp.RelationshipType.Weight(),
		}
		if err := a.repo.UpsertRelationship(ctx, rel); err != nil {
			a.logger.Warn("failed to persist relationship", slog.String("error", err.Error()))
		}
	}

	u := userID
	result := &models.DiscoveryResult{
		ID:                uuid.NewString(),
		TaskID:            taskID,
		SourcePaperID:     paper.ID,
		UserID:            &u,
		RawCount:          unified.SynthesisMetadata.RawCount,
		ProcessedCount:    unified.SynthesisMetadata.ProcessedCount,
		OverallConfidence: unified.SynthesisMetadata.OverallConfidence,
		PartialResult:     unified.SynthesisMetadata.PartialResult,
		CacheHit:          unified.SynthesisMetadata.CacheHit,
		Warnings:          unified.SynthesisMetadata.Warnings,
		Errors:            unified.SynthesisMetadata.Errors,
	}
	if err := a.repo.SaveResult(ctx, result); err != nil {
		a.logger.Warn("failed to save discovery result", slog.String("error", err.Error()))
	}
}

// toModel derives a stable discovered-paper ID from the strongest
// available external identifier so repeated discovery converges onto
// one row instead of duplicating it every run.
func toModel(sourcePaperID string, dp *dtypes.DiscoveredPaper) *models.DiscoveredPaper {
	id := dp.ExternalIDs["doi"]
	if id == "" {
		id = dp.ExternalIDs["s2_id"]
	}
	if id == "" {
		id = dp.ExternalIDs["arxiv"]
	}
	if id == "" {
		id = dp.ID
	}
	stableID := fmt.Sprintf("dp_%s_%s", sourcePaperID, hashID(id))

	sources := make([]string, 0, len(dp.DiscoverySources))
	for s := range dp.DiscoverySources {
		sources = append(sources, string(s))
	}

	return &models.DiscoveredPaper{
		ID:               stableID,
		SourcePaperID:    sourcePaperID,
		ExternalIDs:      dp.ExternalIDs,
		Title:            dp.Title,
		Abstract:         nonEmpty(dp.Abstract),
		Authors:          dp.Authors,
		Venue:            nonEmpty(dp.Venue),
		PublishedAt:      dp.PublishedDate,
		CitationCount:    dp.CitationCount,
		ResearchTopics:   dp.ResearchTopics,
		RelevanceScore:   dp.RelevanceScore,
		SourceOfRecord:   string(dp.SourceOfRecord),
		DiscoverySources: sources,
		HitCount:         dp.HitCount,
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func hashID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	var h uint64 = 1469598103934665603
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("%x", h)
}
