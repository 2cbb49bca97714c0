package parser

import (
	"path"
	"regexp"
	"strings"
)

// Entity ids are stable across re-indexing: files are keyed by their project
// relative path, symbols by path and local name, packages by import path.

// FileID returns the id of a file entity
func FileID(relPath string) string {
	return relPath
}

// PackageID returns the id of a package entity
func PackageID(importPath string) string {
	return "pkg:" + importPath
}

// SymbolID returns the id of a symbol declared in a file
func SymbolID(relPath, local string) string {
	return relPath + "#" + local
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// DefaultImportName guesses the package name an import path binds when it
// has no alias: the last element, skipping a major version suffix and
// dropping ".vN" and "go-" decorations.
func DefaultImportName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	return strings.ReplaceAll(name, "-", "")
}

// ImportPathFor joins a module path with a file's directory
func ImportPathFor(modulePath, relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." || dir == "" {
		return modulePath
	}
	if modulePath == "" {
		return dir
	}
	return modulePath + "/" + dir
}
