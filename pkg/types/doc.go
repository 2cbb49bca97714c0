// Package types provides shared type definitions for ctxgraph.
//
// The types in this package are plain data passed between the query parser,
// the search pipeline, the graph engine and the context assembler. None of
// them carry behavior beyond small helpers and validation.
//
// # Entities and Relationships
//
// An Entity is any addressable knowledge-base item (function, struct, file,
// document section, ...). Entities are identified by stable string ids that
// both the entity store and the graph store understand:
//
//	fn := &types.Entity{
//	    ID:            "github.com/acme/app/auth/login.go#AuthenticateUser",
//	    Type:          types.EntityFunction,
//	    Name:          "AuthenticateUser",
//	    QualifiedName: "github.com/acme/app/auth.AuthenticateUser",
//	}
//
// A Relationship is a directed, typed, weighted edge between two entity ids.
// Lower weights mean closer entities; the default weight is 1.0.
//
// # Queries and Results
//
// ParsedQuery is produced by the query parser. RawResult is a strategy-local
// hit; SearchResult is a hydrated entity with its fused score and the first
// strategy that found it.
//
// # Context
//
// AssembledContext is the final artifact handed to a language model: text,
// attributed sources, an estimated token count and a truncation flag.
package types
