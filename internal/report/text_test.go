package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// newTestDumpReport creates a realistic DumpReport for testing.
func newTestDumpReport() *DumpReport {
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	end := start.Add(12*time.Second + 300*time.Millisecond)
	return &DumpReport{
		TargetURL: "http://example.com/page?id=1",
		Dialect:   "MySQL",
		Version:   "8.0.32",
		User:      "root@localhost",
		Database:  "app",
		Tables: []TableDump{
			{
				Name:     "users",
				Fields:   []string{"id", "name", "password_hash"},
				RowCount: 2,
				Rows: [][]string{
					{"1", "alice", "5f4dcc3b5aa765d61d8327deb882cf99"},
					{"2", "bob", "e10adc3949ba59abbe56e057f20f883e"},
				},
			},
		},
		StartTime:    start,
		EndTime:      end,
		RequestCount: 147,
	}
}

// newEmptyDumpReport creates a DumpReport with no recovered tables.
func newEmptyDumpReport() *DumpReport {
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Second)
	return &DumpReport{
		TargetURL:    "http://example.com/safe?name=test",
		StartTime:    start,
		EndTime:      end,
		RequestCount: 42,
	}
}

func TestTextReporterFormat(t *testing.T) {
	r := &TextReporter{}
	if got := r.Format(); got != "text" {
		t.Errorf("Format() = %q, want %q", got, "text")
	}
}

func TestTextReporterGenerateWithTables(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "sqleech") {
		t.Error("output should contain tool name 'sqleech'")
	}
	if !strings.Contains(output, "http://example.com/page?id=1") {
		t.Error("output should contain target URL")
	}
	if !strings.Contains(output, "MySQL 8.0.32") {
		t.Error("output should contain DBMS name and version")
	}
	if !strings.Contains(output, "root@localhost") {
		t.Error("output should contain user")
	}
	if !strings.Contains(output, "users") {
		t.Error("output should contain table name")
	}
	if !strings.Contains(output, "id | name | password_hash") {
		t.Error("output should contain the field header row")
	}
}

func TestTextReporterGenerateVerboseIncludesRows(t *testing.T) {
	r := &TextReporter{Verbose: 1}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "alice") {
		t.Error("verbose output should contain sampled row values")
	}
}

func TestTextReporterGenerateQuietOmitsRows(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if strings.Contains(buf.String(), "alice") {
		t.Error("non-verbose output should not contain row samples")
	}
}

func TestTextReporterGenerateNoTables(t *testing.T) {
	r := &TextReporter{}
	report := newEmptyDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.Contains(buf.String(), "No tables recovered") {
		t.Error("output should indicate no tables were recovered")
	}
}

func TestTextReporterGenerateSummary(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.Contains(buf.String(), "1 table(s) recovered") {
		t.Errorf("output should contain table count, got:\n%s", buf.String())
	}
}

func TestTextReporterGenerateDuration(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "12.3s") {
		t.Errorf("output should contain duration '12.3s', got:\n%s", output)
	}
	if !strings.Contains(output, "147") {
		t.Errorf("output should contain request count '147', got:\n%s", output)
	}
}

func TestTextReporterGenerateBoxDrawing(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "═") {
		t.Error("output should contain double-line box-drawing character (═)")
	}
	if !strings.Contains(output, "─") {
		t.Error("output should contain single-line box-drawing character (─)")
	}
}

func TestTextReporterGenerateContextCancelled(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := r.Generate(ctx, report, &buf); err == nil {
		t.Error("Generate() should return error when context is cancelled")
	}
}

func TestTextReporterGenerateErrors(t *testing.T) {
	r := &TextReporter{}
	report := newTestDumpReport()
	report.Errors = []error{context.DeadlineExceeded}

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Errors") || !strings.Contains(output, "context deadline exceeded") {
		t.Errorf("output should contain errors section, got:\n%s", output)
	}
}
