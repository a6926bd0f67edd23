package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeContainerNotFound = -32001 // Unknown container
	ErrorCodeEmptyQuery        = -32002 // Query parameter is empty
	ErrorCodeEmbedderFailed    = -32003 // Embedding provider failure
)

// handleCreateContainer handles the create_container tool invocation
func (s *Server) handleCreateContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	backend := getStringDefault(args, "backend", string(types.BackendDurable))
	strict, _ := args["strict"].(bool)

	container := &types.KnowledgeContainer{
		Name:      name,
		Dimension: s.provider.Dimension(),
		Backend:   types.BackendKind(backend),
		Strict:    strict,
	}
	if err := s.engine.CreateContainer(ctx, container); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to create container", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"container_id": container.ID,
		"name":         container.Name,
		"dimension":    container.Dimension,
		"backend":      string(container.Backend),
		"strict":       container.Strict,
	})), nil
}

// handleListContainers handles the list_containers tool invocation
func (s *Server) handleListContainers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containers := s.engine.ListContainers()

	out := make([]map[string]interface{}, 0, len(containers))
	for _, c := range containers {
		count, err := s.engine.Count(ctx, c.ID)
		if err != nil {
			count = 0
		}
		out = append(out, map[string]interface{}{
			"container_id": c.ID,
			"name":         c.Name,
			"dimension":    c.Dimension,
			"backend":      string(c.Backend),
			"chunks":       count,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"containers": out,
	})), nil
}

// handleDeleteContainer handles the delete_container tool invocation
func (s *Server) handleDeleteContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containerID, mcpErr := requireContainerID(request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	if err := s.engine.DeleteContainer(ctx, containerID); err != nil {
		return nil, containerError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":      true,
		"container_id": containerID,
	})), nil
}

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	containerID, mcpErr := requireContainerID(request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	documentName, ok := args["document_name"].(string)
	if !ok || documentName == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_name parameter is required", map[string]interface{}{
			"param":  "document_name",
			"reason": "missing or empty",
		})
	}

	rawChunks, ok := args["chunks"].([]interface{})
	if !ok || len(rawChunks) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks parameter must be a non-empty array", map[string]interface{}{
			"param": "chunks",
		})
	}

	texts := make([]string, len(rawChunks))
	for i, raw := range rawChunks {
		text, ok := raw.(string)
		if !ok || text == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "chunks must be non-empty strings", map[string]interface{}{
				"param": "chunks",
				"index": i,
			})
		}
		texts[i] = text
	}

	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, newMCPError(ErrorCodeEmbedderFailed, "failed to embed chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	documentID := uuid.NewString()
	chunks := make([]*types.DocumentChunk, len(texts))
	for i, text := range texts {
		chunks[i] = &types.DocumentChunk{
			ID:           uuid.NewString(),
			DocumentID:   documentID,
			DocumentName: documentName,
			Ordinal:      i,
			Content:      text,
			Embedding:    vectors[i],
		}
	}

	if err := s.engine.Ingest(ctx, containerID, chunks); err != nil {
		return nil, containerError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"ingested":      true,
		"document_id":   documentID,
		"document_name": documentName,
		"chunks_stored": len(chunks),
	})), nil
}

// handleQueryContainer handles the query_container tool invocation
func (s *Server) handleQueryContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	containerID, mcpErr := requireContainerID(request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", engine.DefaultTopK)
	if topK < 1 || topK > engine.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	embedding, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, newMCPError(ErrorCodeEmbedderFailed, "failed to embed query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	resp, err := s.engine.Query(ctx, engine.QueryRequest{
		ContainerID: containerID,
		Text:        query,
		Embedding:   embedding,
		TopK:        topK,
	})
	if err != nil {
		return nil, containerError(err)
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"rank":          r.Rank,
			"score":         r.Score,
			"content":       r.Content,
			"document_id":   r.DocumentID,
			"document_name": r.DocumentName,
			"page":          r.Page,
			"section":       r.Section,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":     results,
		"total":       len(results),
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	})), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	containerID, mcpErr := requireContainerID(request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	documentID, ok := args["document_id"].(string)
	if !ok || documentID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}

	removed, err := s.engine.DeleteDocument(ctx, containerID, documentID)
	if err != nil {
		return nil, containerError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":        true,
		"document_id":    documentID,
		"chunks_removed": removed,
	})), nil
}

// handleContainerStatus handles the container_status tool invocation
func (s *Server) handleContainerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containerID, mcpErr := requireContainerID(request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	container, err := s.engine.GetContainer(containerID)
	if err != nil {
		return nil, containerError(err)
	}

	count, err := s.engine.Count(ctx, containerID)
	if err != nil {
		return nil, containerError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"container": map[string]interface{}{
			"container_id": container.ID,
			"name":         container.Name,
			"dimension":    container.Dimension,
			"backend":      string(container.Backend),
			"strict":       container.Strict,
		},
		"chunks": count,
		"embedder": map[string]interface{}{
			"provider":  s.provider.Name(),
			"available": s.provider.Available(ctx),
		},
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// containerError maps engine errors to MCP error codes
func containerError(err error) error {
	if errors.Is(err, types.ErrContainerNotFound) {
		return newMCPError(ErrorCodeContainerNotFound, err.Error(), nil)
	}
	return newMCPError(ErrorCodeInternalError, err.Error(), nil)
}

// requireContainerID extracts the mandatory container_id argument
func requireContainerID(request mcp.CallToolRequest) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	containerID, ok := args["container_id"].(string)
	if !ok || containerID == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "container_id parameter is required", map[string]interface{}{
			"param":  "container_id",
			"reason": "missing or empty",
		})
	}
	return containerID, nil
}

// getStringDefault extracts a string argument with a default value
func getStringDefault(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// getIntDefault extracts an integer argument with a default value
func getIntDefault(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// formatJSON renders a response map as indented JSON
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
