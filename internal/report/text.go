package report

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	doubleLine = "═" // ═
	singleLine = "─" // ─
	lineWidth  = 50
)

// TextReporter outputs plain terminal text.
type TextReporter struct {
	// Verbose controls detail level: 0=tables only, 1=+row samples.
	Verbose int
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes a formatted dump report to w.
func (r *TextReporter) Generate(ctx context.Context, report *DumpReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := &strings.Builder{}

	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "sqleech - SQL Injection Extraction Results")
	fmt.Fprintln(b, doubleBar)

	fmt.Fprintf(b, "Target: %s\n", report.TargetURL)
	if report.Dialect != "" {
		dbmsInfo := report.Dialect
		if report.Version != "" {
			dbmsInfo += " " + report.Version
		}
		fmt.Fprintf(b, "DBMS:   %s\n", dbmsInfo)
	}
	if report.User != "" {
		fmt.Fprintf(b, "User:   %s\n", report.User)
	}
	if report.Database != "" {
		fmt.Fprintf(b, "DB:     %s\n", report.Database)
	}

	duration := report.EndTime.Sub(report.StartTime)
	fmt.Fprintf(b, "Duration: %.1fs\n", duration.Seconds())
	fmt.Fprintf(b, "Requests: %d\n", report.RequestCount)

	if len(report.Tables) == 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "No tables recovered.")
	} else {
		for _, tbl := range report.Tables {
			fmt.Fprintln(b, singleBar)
			fmt.Fprintf(b, "Table: %s (%d row(s), %d field(s))\n", tbl.Name, tbl.RowCount, len(tbl.Fields))
			fmt.Fprintf(b, "  %s\n", strings.Join(tbl.Fields, " | "))
			if r.Verbose > 0 {
				for _, row := range tbl.Rows {
					fmt.Fprintf(b, "  %s\n", strings.Join(row, " | "))
				}
			}
		}
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "Errors:")
		for _, e := range report.Errors {
			fmt.Fprintf(b, "  - %s\n", e.Error())
		}
	}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d table(s) recovered\n", len(report.Tables))
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}
