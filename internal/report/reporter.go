// Package report provides formatters for dump output.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DumpReport is the result of enumerating a target through dbmsfacade:
// identity fields plus every table recovered, each with its sampled rows.
type DumpReport struct {
	TargetURL    string
	Dialect      string
	Version      string
	User         string
	Database     string
	Tables       []TableDump
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int64
	Errors       []error
}

// TableDump is one recovered table: its columns, row count, and whatever
// rows were actually sampled (which may be fewer than RowCount when the
// dump was bounded).
type TableDump struct {
	Name     string
	Fields   []string
	RowCount int
	Rows     [][]string
}

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the formatted dump report to w.
	Generate(ctx context.Context, report *DumpReport, w io.Writer) error
}

// New creates a reporter by format name ("text" or "json").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}
