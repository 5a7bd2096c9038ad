package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"log/slog"

	"paperlink-discovery/internal/discovery/agent"
	"paperlink-discovery/internal/discovery/cache"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/discovery/ratelimit"
	"paperlink-discovery/internal/errors"
)

// DiscoveryHandler handles the Related-Paper Discovery Core's HTTP
// surface: submit a discovery run, poll task status, and read
// operational cache/rate-limit snapshots.
type DiscoveryHandler struct {
	agent        *agent.Agent
	cache        *cache.Cache
	rateLimiters *ratelimit.Manager
	logger       *slog.Logger
}

func NewDiscoveryHandler(agent *agent.Agent, c *cache.Cache, rateLimiters *ratelimit.Manager, logger *slog.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{agent: agent, cache: c, rateLimiters: rateLimiters, logger: logger}
}

type discoverRequest struct {
	PaperID string                         `json:"paper_id" binding:"required"`
	UserID  string                         `json:"user_id" binding:"required"`
	Config  *dtypes.DiscoveryConfiguration `json:"config"`
}

// Discover starts a discovery run for a paper.
// @Summary Discover related papers
// @Description Find papers related to a given paper across Crossref, Semantic Scholar, and Perplexity
// @Tags discovery
// @Accept json
// @Produce json
// @Param request body discoverRequest true "Discovery request"
// @Success 200 {object} dtypes.DiscoveryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /discovery [post]
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request",
			Message:   err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}

	response, err := h.agent.Discover(c.Request.Context(), req.PaperID, req.UserID, req.Config)
	if err != nil {
		h.logger.Error("discovery failed", slog.String("paper_id", req.PaperID), slog.String("error", err.Error()))
		statusCode := http.StatusInternalServerError
		if errors.IsValidationError(err) {
			statusCode = http.StatusBadRequest
		} else if errors.IsTimeoutError(err) {
			statusCode = http.StatusRequestTimeout
		} else if errors.IsRateLimitError(err) {
			statusCode = http.StatusTooManyRequests
		}
		c.JSON(statusCode, ErrorResponse{
			Error:     "Discovery failed",
			Message:   err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// TaskStatus reports a discovery task's current lifecycle status.
// @Summary Get discovery task status
// @Tags discovery
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /discovery/tasks/{id} [get]
func (h *DiscoveryHandler) TaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	status, err := h.agent.Status(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "Task not found",
			Message:   err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  string(status),
	})
}

// CacheStats reports the Discovery Cache's tier-1 hit/miss/eviction
// counters.
// @Summary Get discovery cache statistics
// @Tags discovery
// @Produce json
// @Success 200 {object} cache.Stats
// @Router /discovery/cache/stats [get]
func (h *DiscoveryHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// RateLimits reports each source's current token bucket and circuit
// breaker state.
// @Summary Get per-source rate limiter state
// @Tags discovery
// @Produce json
// @Success 200 {object} map[string]ratelimit.RateLimiterSnapshot
// @Router /discovery/rate-limits [get]
func (h *DiscoveryHandler) RateLimits(c *gin.Context) {
	snapshots := make(map[string]ratelimit.RateLimiterSnapshot)
	for _, source := range h.rateLimiters.Sources() {
		snapshots[source] = h.rateLimiters.Stats(source)
	}
	c.JSON(http.StatusOK, snapshots)
}
