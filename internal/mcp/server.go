package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knowmcp/knowmcp/internal/config"
	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
	"github.com/knowmcp/knowmcp/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "knowmcp"

// Validation bounds for tool parameters.
const (
	MaxResultsCeiling = 100

	// DefaultListLimit is the page size list_knowledge uses when the
	// caller does not ask for one.
	DefaultListLimit = 20
)

// Server is the MCP server for knowmcp. It bridges AI clients with the
// two-phase search engine and the knowledge store.
type Server struct {
	mcp    *mcp.Server
	engine *search.Engine
	store  store.Store
	config *config.Config
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server wired to the engine and store.
func NewServer(engine *search.Engine, st store.Store, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		store:  st,
		config: cfg,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search_knowledge",
			Description: "Search the knowledge base. Returns ranked items with the exact chunks that matched plus surrounding context, so you can quote the relevant passage without reading the whole item.",
		},
		{
			Name:        "suggest_search",
			Description: "Complete a partial query against known titles, categories, tags, and section headings. Use before search_knowledge when the user's phrasing is uncertain.",
		},
		{
			Name:        "add_knowledge",
			Description: "Store a new knowledge item. Content is chunked and indexed immediately, so it is searchable right away.",
		},
		{
			Name:        "update_knowledge",
			Description: "Modify an existing knowledge item. Changed content is rechunked and reindexed; omitted fields keep their current values.",
		},
		{
			Name:        "get_knowledge",
			Description: "Fetch a single knowledge item by id, optionally with its chunks.",
		},
		{
			Name:        "list_knowledge",
			Description: "List knowledge items newest first, optionally filtered by category or tag. Use to browse the knowledge base without a search query.",
		},
		{
			Name:        "delete_knowledge",
			Description: "Delete a knowledge item and all of its chunks and index entries.",
		},
		{
			Name:        "knowledge_stats",
			Description: "Report store and index statistics. Use to verify the knowledge base is populated and the indices are ready.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	infos := s.ListTools()
	byName := make(map[string]string, len(infos))
	for _, ti := range infos {
		byName[ti.Name] = ti.Description
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_knowledge",
		Description: byName["search_knowledge"],
	}, s.searchKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "suggest_search",
		Description: byName["suggest_search"],
	}, s.suggestSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_knowledge",
		Description: byName["add_knowledge"],
	}, s.addKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_knowledge",
		Description: byName["update_knowledge"],
	}, s.updateKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_knowledge",
		Description: byName["get_knowledge"],
	}, s.getKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_knowledge",
		Description: byName["list_knowledge"],
	}, s.listKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_knowledge",
		Description: byName["delete_knowledge"],
	}, s.deleteKnowledgeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "knowledge_stats",
		Description: byName["knowledge_stats"],
	}, s.knowledgeStatsHandler)

	s.logger.Info("mcp_tools_registered", slog.Int("count", len(infos)))
}

// searchKnowledgeHandler runs the two-phase search for AI clients.
func (s *Server) searchKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchKnowledgeInput) (
	*mcp.CallToolResult,
	SearchKnowledgeOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	opts, err := s.searchOptions(input)
	if err != nil {
		return nil, SearchKnowledgeOutput{}, err
	}

	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("max_results", opts.MaxResults))

	resp, err := s.engine.Search(ctx, input.Query, opts)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, SearchKnowledgeOutput{}, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", resp.Total))

	return nil, toSearchOutput(resp), nil
}

// searchOptions validates tool input and maps it onto engine options.
func (s *Server) searchOptions(input SearchKnowledgeInput) (search.Options, error) {
	if strings.TrimSpace(input.Query) == "" {
		return search.Options{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if input.MaxResults < 0 || input.MaxResults > MaxResultsCeiling {
		return search.Options{}, NewInvalidParamsError(
			fmt.Sprintf("max_results must be between 1 and %d", MaxResultsCeiling))
	}
	if input.MinRelevance < 0 || input.MinRelevance > 1 {
		return search.Options{}, NewInvalidParamsError("min_relevance must be between 0 and 1")
	}

	opts := search.Options{
		MaxResults:        input.MaxResults,
		MinRelevance:      input.MinRelevance,
		IncludeCategories: input.Categories,
		IncludeTags:       input.Tags,
		GroupByCategory:   input.GroupByCategory,
		IncludeHighlights: input.IncludeHighlights,
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = s.config.Search.MaxResults
	}
	if opts.MinRelevance == 0 {
		opts.MinRelevance = s.config.Search.MinRelevance
	}

	switch input.SortBy {
	case "":
		opts.SortBy = search.SortByRelevance
	case string(search.SortByRelevance), string(search.SortByDate), string(search.SortByTitle):
		opts.SortBy = search.SortBy(input.SortBy)
	default:
		return search.Options{}, NewInvalidParamsError("sort_by must be 'relevance', 'date', or 'title'")
	}

	for _, st := range input.SourceTypes {
		sourceType := store.SourceType(strings.ToLower(st))
		if !store.ValidSourceType(sourceType) {
			return search.Options{}, NewInvalidParamsError(
				fmt.Sprintf("unknown source_type %q", st))
		}
		opts.IncludeSourceTypes = append(opts.IncludeSourceTypes, sourceType)
	}

	return opts, nil
}

// suggestSearchHandler completes a partial query.
func (s *Server) suggestSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SuggestSearchInput) (
	*mcp.CallToolResult,
	SuggestSearchOutput,
	error,
) {
	if strings.TrimSpace(input.PartialQuery) == "" {
		return nil, SuggestSearchOutput{}, NewInvalidParamsError("partial_query parameter is required")
	}

	suggestions, err := s.engine.Suggest(ctx, input.PartialQuery)
	if err != nil {
		return nil, SuggestSearchOutput{}, MapError(err)
	}

	return nil, SuggestSearchOutput{Suggestions: suggestions}, nil
}

// addKnowledgeHandler stores and indexes a new item.
func (s *Server) addKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddKnowledgeInput) (
	*mcp.CallToolResult,
	AddKnowledgeOutput,
	error,
) {
	requestID := generateRequestID()

	if strings.TrimSpace(input.Content) == "" {
		return nil, AddKnowledgeOutput{}, NewInvalidParamsError("content parameter is required")
	}

	sourceType := store.SourceTypeDocument
	if input.SourceType != "" {
		sourceType = store.SourceType(strings.ToLower(input.SourceType))
		if !store.ValidSourceType(sourceType) {
			return nil, AddKnowledgeOutput{}, NewInvalidParamsError(
				fmt.Sprintf("unknown source_type %q", input.SourceType))
		}
	}

	item := &store.Item{
		Title:      input.Title,
		Content:    input.Content,
		SourceType: sourceType,
		Categories: input.Categories,
		Tags:       input.Tags,
	}

	chunks, err := s.engine.IngestItem(ctx, item)
	if err != nil {
		s.logger.Error("add_knowledge_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, AddKnowledgeOutput{}, MapError(err)
	}

	s.logger.Info("knowledge_added",
		slog.String("request_id", requestID),
		slog.String("item_id", item.ID),
		slog.Int("chunks", len(chunks)))

	return nil, AddKnowledgeOutput{ID: item.ID, Chunks: len(chunks)}, nil
}

// updateKnowledgeHandler applies partial changes to an existing item
// and reindexes it.
func (s *Server) updateKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input UpdateKnowledgeInput) (
	*mcp.CallToolResult,
	UpdateKnowledgeOutput,
	error,
) {
	requestID := generateRequestID()

	if strings.TrimSpace(input.ID) == "" {
		return nil, UpdateKnowledgeOutput{}, NewInvalidParamsError("id parameter is required")
	}
	if input.Title == "" && input.Content == "" && input.SourceType == "" &&
		input.Categories == nil && input.Tags == nil {
		return nil, UpdateKnowledgeOutput{}, NewInvalidParamsError("at least one field to update is required")
	}

	item, err := s.store.GetItem(ctx, input.ID)
	if err != nil {
		return nil, UpdateKnowledgeOutput{}, MapError(err)
	}
	if item == nil {
		return nil, UpdateKnowledgeOutput{}, NewItemNotFoundError(input.ID)
	}

	if input.Title != "" {
		item.Title = input.Title
	}
	if input.Content != "" {
		item.Content = input.Content
	}
	if input.SourceType != "" {
		sourceType := store.SourceType(strings.ToLower(input.SourceType))
		if !store.ValidSourceType(sourceType) {
			return nil, UpdateKnowledgeOutput{}, NewInvalidParamsError(
				fmt.Sprintf("unknown source_type %q", input.SourceType))
		}
		item.SourceType = sourceType
	}

	if input.Categories != nil {
		if err := replaceLinks(ctx, item.ID, item.Categories, input.Categories,
			s.store.RemoveCategory, s.store.AssignCategory); err != nil {
			return nil, UpdateKnowledgeOutput{}, MapError(err)
		}
		item.Categories = input.Categories
	}
	if input.Tags != nil {
		if err := replaceLinks(ctx, item.ID, item.Tags, input.Tags,
			s.store.RemoveTag, s.store.AssignTag); err != nil {
			return nil, UpdateKnowledgeOutput{}, MapError(err)
		}
		item.Tags = input.Tags
	}

	chunks, err := s.engine.IngestItem(ctx, item)
	if err != nil {
		s.logger.Error("update_knowledge_failed",
			slog.String("request_id", requestID),
			slog.String("item_id", input.ID),
			slog.String("error", err.Error()))
		return nil, UpdateKnowledgeOutput{}, MapError(err)
	}

	s.logger.Info("knowledge_updated",
		slog.String("request_id", requestID),
		slog.String("item_id", item.ID),
		slog.Int("chunks", len(chunks)))

	return nil, UpdateKnowledgeOutput{ID: item.ID, Chunks: len(chunks)}, nil
}

// replaceLinks swaps an item's category or tag set for a new one,
// touching only the names that actually change.
func replaceLinks(ctx context.Context, itemID string, current, desired []string,
	remove, assign func(context.Context, string, string) error,
) error {
	want := make(map[string]struct{}, len(desired))
	for _, name := range desired {
		want[name] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, name := range current {
		have[name] = struct{}{}
	}

	for _, name := range current {
		if _, keep := want[name]; !keep {
			if err := remove(ctx, itemID, name); err != nil {
				return err
			}
		}
	}
	for _, name := range desired {
		if _, has := have[name]; !has {
			if err := assign(ctx, itemID, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// getKnowledgeHandler fetches a single item by id.
func (s *Server) getKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetKnowledgeInput) (
	*mcp.CallToolResult,
	GetKnowledgeOutput,
	error,
) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, GetKnowledgeOutput{}, NewInvalidParamsError("id parameter is required")
	}

	item, err := s.store.GetItem(ctx, input.ID)
	if err != nil {
		return nil, GetKnowledgeOutput{}, MapError(err)
	}
	if item == nil {
		return nil, GetKnowledgeOutput{}, NewItemNotFoundError(input.ID)
	}

	output := GetKnowledgeOutput{
		ID:         item.ID,
		Title:      item.Title,
		Content:    item.Content,
		SourceType: string(item.SourceType),
		SourcePath: item.SourcePath,
		Categories: item.Categories,
		Tags:       item.Tags,
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
	}

	if input.IncludeChunks {
		chunks, err := s.store.GetChunksForItem(ctx, item.ID)
		if err != nil {
			return nil, GetKnowledgeOutput{}, MapError(err)
		}
		for _, c := range chunks {
			output.Chunks = append(output.Chunks, ChunkOutput{
				Heading:    c.Heading,
				ChunkIndex: c.ChunkIndex,
				Content:    c.Content,
			})
		}
	}

	return nil, output, nil
}

// listKnowledgeHandler pages through items without a search query.
func (s *Server) listKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListKnowledgeInput) (
	*mcp.CallToolResult,
	ListKnowledgeOutput,
	error,
) {
	if input.Limit < 0 || input.Limit > MaxResultsCeiling {
		return nil, ListKnowledgeOutput{}, NewInvalidParamsError(
			fmt.Sprintf("limit must be between 1 and %d", MaxResultsCeiling))
	}
	if input.Offset < 0 {
		return nil, ListKnowledgeOutput{}, NewInvalidParamsError("offset must be non-negative")
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	items, err := s.store.QueryItems(ctx, store.QueryOptions{
		Category: input.Category,
		Tag:      input.Tag,
		Limit:    limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, ListKnowledgeOutput{}, MapError(err)
	}

	output := ListKnowledgeOutput{
		Items: make([]ItemSummaryOutput, 0, len(items)),
		Count: len(items),
	}
	for _, item := range items {
		output.Items = append(output.Items, ItemSummaryOutput{
			ID:         item.ID,
			Title:      item.Title,
			SourceType: string(item.SourceType),
			SourcePath: item.SourcePath,
			UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
		})
	}

	return nil, output, nil
}

// deleteKnowledgeHandler removes an item and its projections.
func (s *Server) deleteKnowledgeHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteKnowledgeInput) (
	*mcp.CallToolResult,
	DeleteKnowledgeOutput,
	error,
) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, DeleteKnowledgeOutput{}, NewInvalidParamsError("id parameter is required")
	}

	deleted, err := s.engine.RemoveItem(ctx, input.ID)
	if err != nil {
		return nil, DeleteKnowledgeOutput{}, MapError(err)
	}

	if deleted {
		s.logger.Info("knowledge_deleted", slog.String("item_id", input.ID))
	}

	return nil, DeleteKnowledgeOutput{Deleted: deleted}, nil
}

// knowledgeStatsHandler reports store and index statistics.
func (s *Server) knowledgeStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ KnowledgeStatsInput) (
	*mcp.CallToolResult,
	KnowledgeStatsOutput,
	error,
) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, KnowledgeStatsOutput{}, MapError(err)
	}
	engineStats := s.engine.Stats()

	return nil, KnowledgeStatsOutput{
		Items:           stats.Items,
		Chunks:          stats.Chunks,
		Categories:      stats.Categories,
		Tags:            stats.Tags,
		Relationships:   stats.Relationships,
		IndexedChunks:   engineStats.IndexedChunks,
		VectorChunks:    engineStats.VectorChunks,
		ChunkIndexReady: engineStats.ChunkIndexReady,
	}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
