// Package mcp exposes a ctxgraph engine over the Model Context Protocol.
//
// The server speaks JSON-RPC 2.0 on stdio and serves one project root.
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tools
//
//   - index_codebase: incrementally index Go sources and markdown docs
//   - search: multi-strategy search fused with reciprocal rank fusion
//   - assemble_context: search and pack results into a token budget
//   - graph_neighborhood: entities within a few hops of an entity
//   - graph_paths: directed paths between two entities
//   - graph_stats: counts, average degree and connected components
//   - get_status: index statistics and health
//
// Entities are referenced by id ("internal/auth/session.go#SessionStore"),
// qualified name ("example.com/app/internal/auth.SessionStore") or plain
// name ("SessionStore").
//
// # Example
//
//	Request:
//	{
//	  "name": "assemble_context",
//	  "arguments": {
//	    "query": "how does SessionStore validate tokens",
//	    "max_tokens": 2000,
//	    "format": "xml"
//	  }
//	}
//
//	Response:
//	{
//	  "context": "<entity id=\"session.go#SessionStore\" ...>...",
//	  "token_count": 1840,
//	  "truncated": false,
//	  "sources": [{"id": "session.go#SessionStore", "score": 0.0327}]
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "ctxgraph": {
//	      "command": "/usr/local/bin/ctxgraph",
//	      "args": ["serve", "--root", "/path/to/project", "--watch"],
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Tool failures are returned as *MCPError values carrying JSON-RPC style codes:
//   - -32602: invalid params
//   - -32603: internal error
//   - -32002: indexing in progress
//   - -32003: project not indexed
//   - -32004: empty query
//   - -32005: entity not found
package mcp
