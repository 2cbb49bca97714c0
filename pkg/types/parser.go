package types

// ParseResult represents the output of parsing a source file
type ParseResult struct {
	// Extracted data
	Entities      []Entity
	Relationships []Relationship    // Edges between entities of this file
	References    []RelationshipRef // Edges whose target lives elsewhere
	Imports       []Import
	PackageName   string

	// Errors encountered during parsing
	Errors []ParseError
}

// RelationshipRef is an edge whose target is only known by qualified name
// until every file of the project has been stored.
type RelationshipRef struct {
	SourceID            string
	TargetQualifiedName string
	Type                string
	Inverse             bool // Edge runs from the resolved target to SourceID
}

// Import represents an import statement in a Go file
type Import struct {
	Path  string // Import path (e.g., "github.com/pkg/errors")
	Alias string // Import alias if present (e.g., ".")
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}
