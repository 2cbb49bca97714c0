package main

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	name    = color.New(color.FgGreen)
	dim     = color.New(color.FgHiBlack)
	warning = color.New(color.FgYellow)
)

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
