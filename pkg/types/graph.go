package types

import "time"

// Common relationship types produced by the indexers
const (
	RelContains  = "CONTAINS"
	RelCalls     = "CALLS"
	RelImports   = "IMPORTS"
	RelRelatesTo = "RELATES_TO"
)

// DefaultRelationshipWeight is used when a relationship is created without a weight
const DefaultRelationshipWeight = 1.0

// Direction selects which edges a traversal follows
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Relationship is a directed, typed, weighted edge between two entity ids.
// Lower weights mean closer entities.
type Relationship struct {
	ID        string
	SourceID  string
	TargetID  string
	Type      string
	Weight    float64
	Metadata  []byte // Opaque payload
	CreatedAt time.Time
}

// Other returns the endpoint opposite to id
func (r *Relationship) Other(id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// RelationshipFilter selects relationships. Zero values mean "any".
type RelationshipFilter struct {
	SourceID  string
	TargetID  string
	EntityID  string // Matches either endpoint
	Types     []string
	MinWeight float64
	MaxWeight *float64
	Limit     int
}

// Matches reports whether r satisfies the filter (Limit is ignored)
func (f RelationshipFilter) Matches(r *Relationship) bool {
	if f.SourceID != "" && r.SourceID != f.SourceID {
		return false
	}
	if f.TargetID != "" && r.TargetID != f.TargetID {
		return false
	}
	if f.EntityID != "" && r.SourceID != f.EntityID && r.TargetID != f.EntityID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == r.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinWeight > 0 && r.Weight < f.MinWeight {
		return false
	}
	if f.MaxWeight != nil && r.Weight > *f.MaxWeight {
		return false
	}
	return true
}

// Neighborhood is the set of entities reachable from a center entity within
// a bounded depth, with the edges traversed to reach them.
type Neighborhood struct {
	CenterID      string
	EntityIDs     []string // Ordered by depth, then id
	Depths        map[string]int
	Relationships []*Relationship
}

// Path is an ordered, cycle-free sequence of entity ids
type Path struct {
	EntityIDs     []string
	Relationships []*Relationship
	Length        int // Edge count
	TotalWeight   float64
}

// GraphStats summarizes the relationship graph
type GraphStats struct {
	EntityCount         int
	RelationshipCount   int
	AverageDegree       float64
	ConnectedComponents int
	RelationshipTypes   map[string]int
}
