package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"paperlink-discovery/internal/discovery/agent"
	dtypes "paperlink-discovery/internal/discovery/types"
	"paperlink-discovery/internal/services"
)

// SimpleMCPServer is a minimal MCP implementation for SciFIND
type SimpleMCPServer struct {
	server         *server.MCPServer
	searchService  *services.SearchService
	paperService   *services.PaperService
	authorService  *services.AuthorService
	discoveryAgent *agent.Agent
	logger         *slog.Logger
}

// NewSimpleMCPServer creates a simple MCP server
func NewSimpleMCPServer(
	searchService *services.SearchService,
	paperService *services.PaperService,
	authorService *services.AuthorService,
	discoveryAgent *agent.Agent,
	logger *slog.Logger,
) *SimpleMCPServer {
	// Create basic MCP server
	mcpServer := server.NewMCPServer(
		"SciFIND Backend",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &SimpleMCPServer{
		server:         mcpServer,
		searchService:  searchService,
		paperService:   paperService,
		authorService:  authorService,
		discoveryAgent: discoveryAgent,
		logger:         logger,
	}

	// Register simple tools
	s.registerSimpleTools()
	return s
}

// registerSimpleTools adds basic MCP tools
func (s *SimpleMCPServer) registerSimpleTools() {
	// Simple search tool
	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search scientific papers"),
		mcp.WithString("query", mcp.Required()),
	)
	s.server.AddTool(searchTool, s.handleSearch)

	// Simple get paper tool
	getPaperTool := mcp.NewTool("get_paper",
		mcp.WithDescription("Get paper by ID"),
		mcp.WithString("id", mcp.Required()),
	)
	s.server.AddTool(getPaperTool, s.handleGetPaper)

	// Related-paper discovery tool
	discoverTool := mcp.NewTool("discover_related_papers",
		mcp.WithDescription("Discover papers related to a given paper across Crossref, Semantic Scholar, and Perplexity"),
		mcp.WithString("paper_id", mcp.Required()),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithString("mode", mcp.Description("QUICK, COMPREHENSIVE, TARGETED, or EXPERIMENTAL")),
	)
	s.server.AddTool(discoverTool, s.handleDiscoverRelatedPapers)

	// Discovery task status tool
	taskStatusTool := mcp.NewTool("get_discovery_task_status",
		mcp.WithDescription("Get the status of a discovery task"),
		mcp.WithString("task_id", mcp.Required()),
	)
	s.server.AddTool(taskStatusTool, s.handleGetDiscoveryTaskStatus)

	s.logger.Info("Registered 4 MCP tools: search, get_paper, discover_related_papers, get_discovery_task_status")
}

// handleSearch processes search requests
func (s *SimpleMCPServer) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract arguments safely
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	// Get query parameter
	query, ok := argsMap["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter required"), nil
	}

	// Create search request
	searchReq := &services.SearchRequest{
		Query:  query,
		Limit:  10, // Keep it simple
		Offset: 0,
	}

	// Execute search
	result, err := s.searchService.Search(ctx, searchReq)
	if err != nil {
		s.logger.Error("MCP search failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	s.logger.Info("MCP search completed", 
		slog.String("query", query),
		slog.Int("results", len(result.Papers)))

	// Return JSON result
	resultJSON, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// handleGetPaper processes get paper requests
func (s *SimpleMCPServer) handleGetPaper(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract arguments safely
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	// Get ID parameter
	paperID, ok := argsMap["id"].(string)
	if !ok || paperID == "" {
		return mcp.NewToolResultError("id parameter required"), nil
	}

	// Get paper
	paper, err := s.paperService.GetByID(ctx, paperID)
	if err != nil {
		s.logger.Error("MCP get paper failed", 
			slog.String("paper_id", paperID),
			slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("get paper failed: %v", err)), nil
	}

	s.logger.Info("MCP get paper completed", slog.String("paper_id", paperID))

	// Return JSON result
	resultJSON, _ := json.Marshal(paper)
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// handleDiscoverRelatedPapers processes discovery requests
func (s *SimpleMCPServer) handleDiscoverRelatedPapers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	paperID, ok := argsMap["paper_id"].(string)
	if !ok || paperID == "" {
		return mcp.NewToolResultError("paper_id parameter required"), nil
	}
	userID, ok := argsMap["user_id"].(string)
	if !ok || userID == "" {
		return mcp.NewToolResultError("user_id parameter required"), nil
	}

	var cfg *dtypes.DiscoveryConfiguration
	if mode, ok := argsMap["mode"].(string); ok && mode != "" {
		cfg = &dtypes.DiscoveryConfiguration{Mode: dtypes.DiscoveryMode(mode)}
	}

	result, err := s.discoveryAgent.Discover(ctx, paperID, userID, cfg)
	if err != nil {
		s.logger.Error("MCP discovery failed", slog.String("paper_id", paperID), slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("discovery failed: %v", err)), nil
	}

	s.logger.Info("MCP discovery completed", slog.String("paper_id", paperID), slog.String("task_id", result.TaskID))

	resultJSON, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// handleGetDiscoveryTaskStatus processes discovery task status requests
func (s *SimpleMCPServer) handleGetDiscoveryTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	taskID, ok := argsMap["task_id"].(string)
	if !ok || taskID == "" {
		return mcp.NewToolResultError("task_id parameter required"), nil
	}

	status, err := s.discoveryAgent.Status(ctx, taskID)
	if err != nil {
		s.logger.Error("MCP discovery task status failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("task status lookup failed: %v", err)), nil
	}

	resultJSON, _ := json.Marshal(map[string]string{"task_id": taskID, "status": string(status)})
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// ServeStdio starts the MCP server via stdio
func (s *SimpleMCPServer) ServeStdio() error {
	s.logger.Info("Starting simple MCP server via stdio")
	return server.ServeStdio(s.server)
}

// GetServer returns the underlying server
func (s *SimpleMCPServer) GetServer() *server.MCPServer {
	return s.server
}