package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestJSONReporterFormat(t *testing.T) {
	r := &JSONReporter{}
	if got := r.Format(); got != "json" {
		t.Errorf("Format() = %q, want %q", got, "json")
	}
}

func TestJSONReporterGenerateValid(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var raw json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Errorf("output is not valid JSON: %v\noutput:\n%s", err, buf.String())
	}
}

func TestJSONReporterGenerateSchemaVersion(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if version := output["schema_version"]; version != "1.0" {
		t.Errorf("schema_version = %v, want %q", version, "1.0")
	}
	if tool := output["tool"]; tool != "sqleech" {
		t.Errorf("tool = %v, want %q", tool, "sqleech")
	}
}

func TestJSONReporterGenerateTables(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if len(output.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(output.Tables))
	}

	tbl := output.Tables[0]
	if tbl.Name != "users" {
		t.Errorf("tables[0].name = %q, want %q", tbl.Name, "users")
	}
	if len(tbl.Fields) != 3 {
		t.Errorf("tables[0].fields length = %d, want 3", len(tbl.Fields))
	}
	if tbl.RowCount != 2 {
		t.Errorf("tables[0].row_count = %d, want 2", tbl.RowCount)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[0][1] != "alice" {
		t.Errorf("tables[0].rows = %+v, want sampled rows including alice", tbl.Rows)
	}
}

func TestJSONReporterGenerateNoTables(t *testing.T) {
	r := &JSONReporter{}
	report := newEmptyDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.Tables == nil {
		t.Fatal("tables should be empty array, not null")
	}
	if len(output.Tables) != 0 {
		t.Errorf("got %d tables, want 0", len(output.Tables))
	}
}

func TestJSONReporterGenerateSummary(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.Summary.TotalTables != 1 {
		t.Errorf("summary.total_tables = %d, want 1", output.Summary.TotalTables)
	}
	if output.Summary.TotalRows != 2 {
		t.Errorf("summary.total_rows = %d, want 2", output.Summary.TotalRows)
	}
}

func TestJSONReporterGenerateTarget(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.Target.URL != "http://example.com/page?id=1" {
		t.Errorf("target.url = %q, want %q", output.Target.URL, "http://example.com/page?id=1")
	}
}

func TestJSONReporterGenerateDBMS(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.DBMS == nil {
		t.Fatal("dbms should not be nil when a dialect is set")
	}
	if output.DBMS.Name != "MySQL" {
		t.Errorf("dbms.name = %q, want %q", output.DBMS.Name, "MySQL")
	}
	if output.DBMS.Version != "8.0.32" {
		t.Errorf("dbms.version = %q, want %q", output.DBMS.Version, "8.0.32")
	}
	if output.DBMS.User != "root@localhost" {
		t.Errorf("dbms.user = %q, want %q", output.DBMS.User, "root@localhost")
	}
}

func TestJSONReporterGenerateDBMSOmitted(t *testing.T) {
	r := &JSONReporter{}
	report := newEmptyDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if _, ok := raw["dbms"]; ok {
		t.Error("dbms field should be omitted when no dialect is set")
	}
}

func TestJSONReporterGenerateRun(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.Run.TotalRequests != 147 {
		t.Errorf("run.total_requests = %d, want 147", output.Run.TotalRequests)
	}
	if output.Run.DurationSeconds < 12.0 || output.Run.DurationSeconds > 13.0 {
		t.Errorf("run.duration_seconds = %v, want ~12.3", output.Run.DurationSeconds)
	}
}

func TestJSONReporterGeneratePrettyPrint(t *testing.T) {
	r := &JSONReporter{Compact: false}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !containsNewlineAndIndent(buf.String()) {
		t.Error("pretty-printed JSON should contain newlines and indentation")
	}
}

func TestJSONReporterGenerateCompact(t *testing.T) {
	r := &JSONReporter{Compact: true}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	lines := splitLines(buf.String())
	if len(lines) > 2 {
		t.Errorf("compact JSON should be minimal lines, got %d lines", len(lines))
	}
}

func TestJSONReporterGenerateContextCancelled(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := r.Generate(ctx, report, &buf); err == nil {
		t.Error("Generate() should return error when context is cancelled")
	}
}

func TestJSONReporterGenerateErrors(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()
	report.Errors = []error{context.DeadlineExceeded}

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if len(output.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(output.Errors))
	}
	if output.Errors[0] != "context deadline exceeded" {
		t.Errorf("errors[0] = %q, want %q", output.Errors[0], "context deadline exceeded")
	}
}

func TestJSONReporterGenerateMultipleTables(t *testing.T) {
	r := &JSONReporter{}
	report := newTestDumpReport()
	report.Tables = append(report.Tables, TableDump{
		Name:     "sessions",
		Fields:   []string{"token"},
		RowCount: 5,
	})

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var output jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if output.Summary.TotalTables != 2 {
		t.Errorf("summary.total_tables = %d, want 2", output.Summary.TotalTables)
	}
	if output.Summary.TotalRows != 7 {
		t.Errorf("summary.total_rows = %d, want 7", output.Summary.TotalRows)
	}
}

// containsNewlineAndIndent checks if the string has indentation.
func containsNewlineAndIndent(s string) bool {
	lines := splitLines(s)
	for _, line := range lines {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			return true
		}
	}
	return false
}

// splitLines splits a string into lines, removing empty trailing lines.
func splitLines(s string) []string {
	var lines []string
	for _, line := range bytes.Split([]byte(s), []byte("\n")) {
		trimmed := bytes.TrimRight(line, "\r")
		lines = append(lines, string(trimmed))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
