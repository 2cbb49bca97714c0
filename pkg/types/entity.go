package types

import (
	"errors"
	"strings"
)

// EntityType classifies an addressable knowledge-base item
type EntityType string

const (
	EntityFunction     EntityType = "function"
	EntityMethod       EntityType = "method"
	EntityClass        EntityType = "class"
	EntityStruct       EntityType = "struct"
	EntityInterface    EntityType = "interface"
	EntityTypeDef      EntityType = "type"
	EntityVariable     EntityType = "variable"
	EntityConstant     EntityType = "constant"
	EntityField        EntityType = "field"
	EntityFile         EntityType = "file"
	EntityPackage      EntityType = "package"
	EntityModule       EntityType = "module"
	EntityDocument     EntityType = "document"
	EntitySection      EntityType = "section"
	EntityConcept      EntityType = "concept"
	EntityConversation EntityType = "conversation"
	EntityMessage      EntityType = "message"
)

// Entity is an addressable item of the knowledge base: a code symbol, a file,
// a document section or any other unit the indexers produce.
type Entity struct {
	ID            string
	Type          EntityType
	Name          string
	QualifiedName string

	// Location (optional)
	FilePath  string
	StartLine int
	EndLine   int
	Language  string

	// Content
	Signature string
	Summary   string // Doc comment or abstract
	Content   string

	Metadata map[string]string
}

// IsClassLike reports whether the type carries members (fields, methods)
func (t EntityType) IsClassLike() bool {
	switch t {
	case EntityClass, EntityStruct, EntityInterface, EntityTypeDef:
		return true
	}
	return false
}

// IsFunctionLike reports whether the type is a callable
func (t EntityType) IsFunctionLike() bool {
	return t == EntityFunction || t == EntityMethod
}

// ParseEntityType converts a user supplied string to an EntityType.
// Unknown values are returned as-is so callers can filter on custom types.
func ParseEntityType(s string) EntityType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "func":
		return EntityFunction
	case "const":
		return EntityConstant
	case "var":
		return EntityVariable
	case "doc":
		return EntityDocument
	}
	return EntityType(s)
}

// Validate checks the minimum fields every stored entity needs
func (e *Entity) Validate() error {
	if e.ID == "" {
		return errors.New("entity id is required")
	}
	if e.Type == "" {
		return errors.New("entity type is required")
	}
	if e.Name == "" {
		return errors.New("entity name is required")
	}
	if e.StartLine < 0 || e.EndLine < 0 {
		return errors.New("invalid position: line numbers must not be negative")
	}
	if e.EndLine > 0 && e.StartLine > e.EndLine {
		return errors.New("invalid position: start line must be before or equal to end line")
	}
	return nil
}

// Clone returns a deep copy of the entity
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
