package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	strategyEnum   = []string{"keyword", "semantic", "graph", "structural", "hybrid"}
	entityTypeEnum = []string{
		"function", "method", "class", "struct", "interface", "type", "variable", "constant",
		"field", "file", "package", "module", "document", "section", "concept", "conversation", "message",
	}
	formatEnum    = []string{"structured", "xml", "plain"}
	directionEnum = []string{"out", "in", "both"}
)

// searchProperties are shared by search and assemble_context
func searchProperties() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query; mention identifiers or file paths to pull in their graph neighborhood",
		},
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of results to return (1-100)",
			"default":     10,
			"minimum":     1,
			"maximum":     100,
		},
		"strategies": map[string]interface{}{
			"type":        "array",
			"description": "Strategies to run; default keyword and semantic, hybrid adds graph",
			"items": map[string]interface{}{
				"type": "string",
				"enum": strategyEnum,
			},
		},
		"entity_types": map[string]interface{}{
			"type":        "array",
			"description": "Only return entities of these types",
			"items": map[string]interface{}{
				"type": "string",
				"enum": entityTypeEnum,
			},
		},
		"weights": map[string]interface{}{
			"type":                 "object",
			"description":          "Fixed per-strategy fusion weights, e.g. {\"keyword\": 2.0}",
			"additionalProperties": map[string]interface{}{"type": "number"},
		},
		"min_score": map[string]interface{}{
			"type":        "number",
			"description": "Drop results whose fused score is below this value",
			"minimum":     0.0,
		},
		"graph_depth": map[string]interface{}{
			"type":        "integer",
			"description": "Hops expanded around mentioned entities (1-5)",
			"default":     1,
			"minimum":     1,
			"maximum":     5,
		},
		"rerank": map[string]interface{}{
			"type":        "boolean",
			"description": "Apply the configured reranker to fused results",
			"default":     true,
		},
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index the served project: Go sources and markdown docs become searchable entities and graph relationships. Unchanged files are skipped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Project root; defaults to the served root and must match it when given",
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index *_test.go files",
					"default":     true,
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ directory",
					"default":     false,
				},
				"include_docs": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index markdown files",
					"default":     true,
				},
				"skip_embedding": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, do not generate embeddings for new entities",
					"default":     false,
				},
			},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search the knowledge base with keyword, semantic, graph and structural strategies fused by reciprocal rank",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProperties(),
			Required:   []string{"query"},
		},
	}
}

// assembleContextTool returns the tool definition for assemble_context
func assembleContextTool() mcp.Tool {
	props := searchProperties()
	props["max_tokens"] = map[string]interface{}{
		"type":        "integer",
		"description": "Token budget of the assembled context",
		"default":     4000,
		"minimum":     1,
	}
	props["format"] = map[string]interface{}{
		"type":        "string",
		"description": "Output format",
		"enum":        formatEnum,
		"default":     "structured",
	}
	props["group_by_category"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Group entities into code, documentation, conversation and other sections",
		"default":     false,
	}
	props["include_sources"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Append a sources list",
		"default":     true,
	}

	return mcp.Tool{
		Name:        "assemble_context",
		Description: "Search and pack the best results into a token-budgeted context ready to paste into a prompt",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query"},
		},
	}
}

// graphNeighborhoodTool returns the tool definition for graph_neighborhood
func graphNeighborhoodTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_neighborhood",
		Description: "List the entities within a few hops of an entity in the relationship graph",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entity": map[string]interface{}{
					"type":        "string",
					"description": "Entity id, qualified name or name",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum hops (1-5)",
					"default":     1,
					"minimum":     1,
					"maximum":     5,
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Edge direction to follow",
					"enum":        directionEnum,
					"default":     "both",
				},
				"relationship_types": map[string]interface{}{
					"type":        "array",
					"description": "Only follow these relationship types, e.g. CALLS, CONTAINS",
					"items":       map[string]interface{}{"type": "string"},
				},
				"min_weight": map[string]interface{}{
					"type":        "number",
					"description": "Ignore edges lighter than this weight",
					"minimum":     0.0,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum entities returned (0 for all)",
					"default":     50,
					"minimum":     0,
				},
			},
			Required: []string{"entity"},
		},
	}
}

// graphPathsTool returns the tool definition for graph_paths
func graphPathsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_paths",
		Description: "Find directed paths between two entities, shortest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Start entity id, qualified name or name",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "End entity id, qualified name or name",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum hops (1-10)",
					"default":     6,
					"minimum":     1,
					"maximum":     10,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum paths returned (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"relationship_types": map[string]interface{}{
					"type":        "array",
					"description": "Only follow these relationship types",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"from", "to"},
		},
	}
}

// graphStatsTool returns the tool definition for graph_stats
func graphStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_stats",
		Description: "Summarize the relationship graph: entity and edge counts, average degree, components and edge types",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for the served project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Project root; defaults to the served root",
				},
			},
		},
	}
}
