// Package diag collects generator diagnostics.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Class groups diagnostics by cause.
type Class string

const (
	ClassModel  Class = "model"  // model misuse
	ClassConfig Class = "config" // configuration error
)

// Diagnostic is one report about the input.
type Diagnostic struct {
	Severity Severity
	Class    Class
	Item     string // canonical path of the offending item
	Location string // source location
	Message  string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Location != "" {
		b.WriteString(d.Location)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s[%s]", d.Severity, d.Class)
	if d.Item != "" {
		fmt.Fprintf(&b, " %s", d.Item)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Sink receives diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is a Sink that keeps every diagnostic and optionally mirrors it to a logger.
type Collector struct {
	Logger *slog.Logger
	diags  []Diagnostic
}

// NewCollector creates a collector that logs through l (may be nil).
func NewCollector(l *slog.Logger) *Collector {
	return &Collector{Logger: l}
}

// Report records d.
func (c *Collector) Report(d Diagnostic) {
	c.diags = append(c.diags, d)
	if c.Logger == nil {
		return
	}
	level := slog.LevelWarn
	if d.Severity == SeverityError {
		level = slog.LevelError
	}
	c.Logger.Log(context.Background(), level, d.Message,
		slog.String("class", string(d.Class)),
		slog.String("item", d.Item),
		slog.String("location", d.Location))
}

// All returns every diagnostic in report order.
func (c *Collector) All() []Diagnostic {
	return c.diags
}

// Errors returns the error-severity diagnostics.
func (c *Collector) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}

// SkippedItems returns the sorted, deduplicated paths of items with errors.
func (c *Collector) SkippedItems() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range c.Errors() {
		if d.Item != "" && !seen[d.Item] {
			seen[d.Item] = true
			out = append(out, d.Item)
		}
	}
	sort.Strings(out)
	return out
}

// Error joins the error-severity diagnostics, one per line.
func (c *Collector) Error() string {
	var msgs []string
	for _, d := range c.Errors() {
		msgs = append(msgs, d.String())
	}
	return strings.Join(msgs, "\n")
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}
