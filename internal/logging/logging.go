// Package logging builds the slog loggers used across ctxgraph. Output goes
// to stderr by default because stdout carries the MCP protocol.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Formats accepted by New
const (
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

// Options selects the level, format and destination of a logger
type Options struct {
	Level     string
	Format    string
	AddSource bool
	Output    io.Writer // Default os.Stderr
}

// ParseLevel maps debug, info, warn and error to slog levels.
// Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. An unknown format is an error.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatPretty:
		return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{SlogOpts: handlerOpts})), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(out, &handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(out, &handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

// PrettyHandlerOptions configures a PrettyHandler
type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// PrettyHandler writes one line per record: time, colored level, message and
// the attributes as a JSON object
type PrettyHandler struct {
	slog.Handler
	l      *log.Logger
	attrs  []groupedAttr
	groups []string
}

// groupedAttr is an attribute added with WithAttrs under the groups open at the time
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewPrettyHandler creates a PrettyHandler writing to out
func NewPrettyHandler(out io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	return &PrettyHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch {
	case r.Level >= slog.LevelError:
		level = color.RedString(level)
	case r.Level >= slog.LevelWarn:
		level = color.YellowString(level)
	case r.Level >= slog.LevelInfo:
		level = color.BlueString(level)
	default:
		level = color.MagentaString(level)
	}

	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, ga := range h.attrs {
		addAttr(subMap(fields, ga.groups), ga.attr)
	}
	target := subMap(fields, h.groups)
	r.Attrs(func(a slog.Attr) bool {
		addAttr(target, a)
		return true
	})

	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.l.Println(
		r.Time.Format("[15:04:05.000]"),
		level,
		color.CyanString(r.Message),
		color.WhiteString(string(b)),
	)
	return nil
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		attrs:   withGrouped(h.attrs, h.groups, attrs),
		groups:  h.groups,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		l:       h.l,
		attrs:   h.attrs,
		groups:  append(append([]string{}, h.groups...), name),
	}
}

func withGrouped(existing []groupedAttr, groups []string, attrs []slog.Attr) []groupedAttr {
	out := append([]groupedAttr{}, existing...)
	for _, a := range attrs {
		out = append(out, groupedAttr{groups: groups, attr: a})
	}
	return out
}

// subMap returns the nested map for a group path, creating it as needed
func subMap(fields map[string]any, groups []string) map[string]any {
	target := fields
	for _, g := range groups {
		next, ok := target[g].(map[string]any)
		if !ok {
			next = make(map[string]any)
			target[g] = next
		}
		target = next
	}
	return target
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := make(map[string]any)
		for _, ga := range a.Value.Group() {
			addAttr(group, ga)
		}
		if a.Key == "" {
			for k, v := range group {
				m[k] = v
			}
			return
		}
		m[a.Key] = group
		return
	}
	switch v := a.Value.Any().(type) {
	case error:
		m[a.Key] = v.Error()
	case fmt.Stringer:
		m[a.Key] = v.String()
	default:
		m[a.Key] = v
	}
}
