// Package parser turns source files into knowledge-base entities and
// relationships.
//
// Go files are parsed with go/ast. Each file yields its package and file
// entities plus one entity per function, method, struct, interface, named
// type, constant, variable and struct field, with source content, doc
// summary and signature. Markdown files yield a document entity and one
// section entity per heading.
//
// # Identifiers
//
//	pkg:<import path>        package
//	<rel path>               file or document
//	<rel path>#<Type.Name>   symbol or section
//
// Qualified names are "<import path>.<Name>" or "<import path>.<Type>.<Name>".
//
// # Relationships
//
// Edges between entities of the same file are returned in
// ParseResult.Relationships. Edges whose other end is only known by
// qualified name (calls, imports, methods on types declared in another
// file, links between documents) are returned as References and resolved
// by the indexer once every file is stored.
//
// # Naming patterns
//
// Type names are tagged with design-pattern hints (repository, service,
// handler, command, query, entity, value object, aggregate root) under the
// "patterns" metadata key.
//
// # Error Handling
//
// Syntax errors do not fail a parse: they are recorded in
// ParseResult.Errors and the partial AST is still extracted.
package parser
