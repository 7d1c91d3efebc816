package report

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// jsonOutput is the top-level JSON structure.
type jsonOutput struct {
	SchemaVersion string      `json:"schema_version"`
	Tool          string      `json:"tool"`
	Target        jsonTarget  `json:"target"`
	DBMS          *jsonDBMS   `json:"dbms,omitempty"`
	Run           jsonRun     `json:"run"`
	Tables        []jsonTable `json:"tables"`
	Summary       jsonSummary `json:"summary"`
	Errors        []string    `json:"errors,omitempty"`
}

// jsonTarget represents the dump target in JSON.
type jsonTarget struct {
	URL string `json:"url"`
}

// jsonDBMS represents the detected DBMS in JSON.
type jsonDBMS struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	User    string `json:"user,omitempty"`
}

// jsonRun represents dump-run metadata in JSON.
type jsonRun struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalRequests   int64     `json:"total_requests"`
}

// jsonTable represents one recovered table in JSON.
type jsonTable struct {
	Name     string     `json:"name"`
	Fields   []string   `json:"fields"`
	RowCount int        `json:"row_count"`
	Rows     [][]string `json:"rows,omitempty"`
}

// jsonSummary represents the summary in JSON.
type jsonSummary struct {
	TotalTables int `json:"total_tables"`
	TotalRows   int `json:"total_rows"`
}

// Generate writes JSON-formatted dump results to w.
func (r *JSONReporter) Generate(ctx context.Context, report *DumpReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	duration := report.EndTime.Sub(report.StartTime)

	output := jsonOutput{
		SchemaVersion: "1.0",
		Tool:          "sqleech",
		Target:        jsonTarget{URL: report.TargetURL},
		Run: jsonRun{
			StartTime:       report.StartTime,
			EndTime:         report.EndTime,
			DurationSeconds: duration.Seconds(),
			TotalRequests:   report.RequestCount,
		},
		Tables: make([]jsonTable, 0, len(report.Tables)),
	}

	if report.Dialect != "" {
		output.DBMS = &jsonDBMS{Name: report.Dialect, Version: report.Version, User: report.User}
	}

	totalRows := 0
	for _, tbl := range report.Tables {
		output.Tables = append(output.Tables, jsonTable{
			Name:     tbl.Name,
			Fields:   tbl.Fields,
			RowCount: tbl.RowCount,
			Rows:     tbl.Rows,
		})
		totalRows += tbl.RowCount
	}
	output.Summary = jsonSummary{TotalTables: len(report.Tables), TotalRows: totalRows}

	if len(report.Errors) > 0 {
		output.Errors = make([]string, len(report.Errors))
		for i, e := range report.Errors {
			output.Errors[i] = e.Error()
		}
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(output)
}
