// Package graph stores and traverses typed, weighted, directed relationships
// between entity ids.
//
// Store wraps any RelationshipStore (the SQLite storage or MemoryStore) and
// answers neighborhood, path, reachability, degree and statistics queries.
// All traversals are iterative breadth-first searches: neighborhoods expand
// level by level, and path searches carry a visited set inside every queued
// partial path so only simple paths are produced.
//
//	g := graph.New(store, graph.WithLogger(logger))
//	rel, err := g.CreateRelationship(ctx, callerID, calleeID, types.RelCalls, 1.0, nil)
//
//	hood, err := g.GetNeighborhood(ctx, calleeID, graph.NeighborhoodOptions{
//	    MaxDepth:  2,
//	    Direction: types.DirectionIn,
//	})
//
//	paths, err := g.FindPaths(ctx, fromID, toID, graph.PathOptions{MaxDepth: 4})
//
// Unknown entity ids are not errors: they yield empty neighborhoods and no paths.
// Path searches stop after WithMaxExpansions queue expansions (default 10000)
// or when the context is cancelled, returning what was found so far.
//
// Spans and metrics are emitted through the global OpenTelemetry providers.
package graph
