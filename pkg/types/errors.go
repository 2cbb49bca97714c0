package types

import "errors"

// Domain errors shared across packages
var (
	ErrEmptyQuery          = errors.New("query cannot be empty")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrInvalidRelationship = errors.New("invalid relationship")
)
