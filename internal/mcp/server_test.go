package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/kbengine/internal/config"
)

func newTestServer(t *testing.T) *Server {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Embedder.Provider = "local"

	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.engine.Close()
		_ = s.provider.Close()
	})
	return s
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result must be text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestToolRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	// create_container
	created, err := s.handleCreateContainer(ctx, toolRequest(map[string]interface{}{
		"name":    "project docs",
		"backend": "volatile",
	}))
	require.NoError(t, err)
	createdBody := resultJSON(t, created)
	containerID, _ := createdBody["container_id"].(string)
	require.NotEmpty(t, containerID)
	assert.Equal(t, "volatile", createdBody["backend"])

	// ingest_document
	ingested, err := s.handleIngestDocument(ctx, toolRequest(map[string]interface{}{
		"container_id":  containerID,
		"document_name": "guide.md",
		"chunks": []interface{}{
			"installing the service",
			"configuring retrieval parameters",
			"troubleshooting startup failures",
		},
	}))
	require.NoError(t, err)
	ingestedBody := resultJSON(t, ingested)
	documentID, _ := ingestedBody["document_id"].(string)
	require.NotEmpty(t, documentID)
	assert.Equal(t, float64(3), ingestedBody["chunks_stored"])

	// query_container
	queried, err := s.handleQueryContainer(ctx, toolRequest(map[string]interface{}{
		"container_id": containerID,
		"query":        "configuring retrieval parameters",
		"top_k":        2,
	}))
	require.NoError(t, err)
	queriedBody := resultJSON(t, queried)
	results, _ := queriedBody["results"].([]interface{})
	require.NotEmpty(t, results)
	first, _ := results[0].(map[string]interface{})
	assert.Equal(t, "configuring retrieval parameters", first["content"])
	assert.Equal(t, "guide.md", first["document_name"])

	// container_status
	status, err := s.handleContainerStatus(ctx, toolRequest(map[string]interface{}{
		"container_id": containerID,
	}))
	require.NoError(t, err)
	statusBody := resultJSON(t, status)
	assert.Equal(t, float64(3), statusBody["chunks"])

	// delete_document
	deleted, err := s.handleDeleteDocument(ctx, toolRequest(map[string]interface{}{
		"container_id": containerID,
		"document_id":  documentID,
	}))
	require.NoError(t, err)
	deletedBody := resultJSON(t, deleted)
	assert.Equal(t, float64(3), deletedBody["chunks_removed"])

	// delete_container
	_, err = s.handleDeleteContainer(ctx, toolRequest(map[string]interface{}{
		"container_id": containerID,
	}))
	require.NoError(t, err)

	listed, err := s.handleListContainers(ctx, toolRequest(nil))
	require.NoError(t, err)
	listedBody := resultJSON(t, listed)
	containers, _ := listedBody["containers"].([]interface{})
	assert.Empty(t, containers)
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("create without name", func(t *testing.T) {
		_, err := s.handleCreateContainer(ctx, toolRequest(map[string]interface{}{}))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("query unknown container", func(t *testing.T) {
		_, err := s.handleQueryContainer(ctx, toolRequest(map[string]interface{}{
			"container_id": "missing",
			"query":        "anything",
		}))
		requireMCPCode(t, err, ErrorCodeContainerNotFound)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := s.handleQueryContainer(ctx, toolRequest(map[string]interface{}{
			"container_id": "whatever",
			"query":        "",
		}))
		requireMCPCode(t, err, ErrorCodeEmptyQuery)
	})

	t.Run("top_k out of range", func(t *testing.T) {
		_, err := s.handleQueryContainer(ctx, toolRequest(map[string]interface{}{
			"container_id": "whatever",
			"query":        "anything",
			"top_k":        500,
		}))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("delete unknown container", func(t *testing.T) {
		_, err := s.handleDeleteContainer(ctx, toolRequest(map[string]interface{}{
			"container_id": "missing",
		}))
		requireMCPCode(t, err, ErrorCodeContainerNotFound)
	})

	t.Run("ingest without chunks", func(t *testing.T) {
		_, err := s.handleIngestDocument(ctx, toolRequest(map[string]interface{}{
			"container_id":  "whatever",
			"document_name": "d.md",
			"chunks":        []interface{}{},
		}))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
