// Package mcp exposes the retrieval engine over the Model Context Protocol.
// It plays the orchestrator role: tool calls arrive with raw text, the
// configured embedding provider turns text into vectors, and the engine
// handles storage and ranking.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ragforge/kbengine/internal/config"
	"github.com/ragforge/kbengine/internal/embedder"
	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/internal/querycache"
	"github.com/ragforge/kbengine/internal/rank"
)

const (
	// ServerName is the MCP server name
	ServerName = "kbengine"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	engine   *engine.Engine
	provider embedder.Provider
}

// NewServer creates a new MCP server instance from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	provider, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedder.Provider,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.APIKey(),
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
		Timeout:   cfg.EmbedderTimeout(),
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	eng := engine.New(engine.Config{
		DataDir: cfg.DataDir,
		Rank: rank.Config{
			RRFConstant:         cfg.Search.RRFConstant,
			CandidateMultiplier: cfg.Search.CandidateMultiplier,
			MinCandidates:       cfg.Search.MinCandidates,
		},
		Cache: querycache.Config{
			Capacity:            cfg.Cache.Capacity,
			TTL:                 cfg.CacheTTL(),
			SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		},
		MMRLambda: &cfg.Search.MMRLambda,
	})

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		engine:   eng,
		provider: provider,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.engine.Close()
		_ = s.provider.Close()
	}()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(createContainerTool(), s.handleCreateContainer)
	s.mcp.AddTool(listContainersTool(), s.handleListContainers)
	s.mcp.AddTool(deleteContainerTool(), s.handleDeleteContainer)
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(queryContainerTool(), s.handleQueryContainer)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(containerStatusTool(), s.handleContainerStatus)
}
