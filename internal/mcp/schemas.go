package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createContainerTool returns the tool definition for create_container
func createContainerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_container",
		Description: "Create an isolated knowledge container for documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Human-readable container name",
				},
				"backend": map[string]interface{}{
					"type":        "string",
					"description": "Storage backend for the container",
					"enum":        []string{"durable", "volatile"},
					"default":     "durable",
				},
				"strict": map[string]interface{}{
					"type":        "boolean",
					"description": "Enable strict confidence gating downstream",
					"default":     false,
				},
			},
			Required: []string{"name"},
		},
	}
}

// listContainersTool returns the tool definition for list_containers
func listContainersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_containers",
		Description: "List all knowledge containers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// deleteContainerTool returns the tool definition for delete_container
func deleteContainerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_container",
		Description: "Delete a knowledge container and all of its chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"container_id": map[string]interface{}{
					"type":        "string",
					"description": "Container identifier",
				},
			},
			Required: []string{"container_id"},
		},
	}
}

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Embed and store pre-chunked document text in a container",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"container_id": map[string]interface{}{
					"type":        "string",
					"description": "Container identifier",
				},
				"document_name": map[string]interface{}{
					"type":        "string",
					"description": "Source document name used for citation",
				},
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Ordered chunk texts for the document",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"container_id", "document_name", "chunks"},
		},
	}
}

// queryContainerTool returns the tool definition for query_container
func queryContainerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_container",
		Description: "Hybrid search over a container: vector + keyword with diversified results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"container_id": map[string]interface{}{
					"type":        "string",
					"description": "Container identifier",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"container_id", "query"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Remove all chunks of a document from a container",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"container_id": map[string]interface{}{
					"type":        "string",
					"description": "Container identifier",
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier returned by ingest_document",
				},
			},
			Required: []string{"container_id", "document_id"},
		},
	}
}

// containerStatusTool returns the tool definition for container_status
func containerStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "container_status",
		Description: "Report a container's configuration, chunk count, and embedder health",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"container_id": map[string]interface{}{
					"type":        "string",
					"description": "Container identifier",
				},
			},
			Required: []string{"container_id"},
		},
	}
}
