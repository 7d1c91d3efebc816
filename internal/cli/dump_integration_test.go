package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0x6d61/sqleech/internal/testutil"
)

// runDumpArgs executes the dump command against args and returns whatever
// runDump wrote to stdout, by redirecting os.Stdout for the duration of
// the call -- runDump writes its report directly to os.Stdout when
// --output isn't given.
func runDumpArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w

	rootCmd.SetArgs(append([]string{"dump"}, args...))
	execErr := rootCmd.Execute()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r) //nolint:errcheck

	return buf.String(), execErr
}

func TestDumpIntegration_EndToEndAgainstVulnServer(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	out, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--format", "text",
	)
	if err != nil {
		t.Fatalf("dump failed: %v\noutput:\n%s", err, out)
	}

	for _, want := range []string{"8.0.32", "root@localhost", "testdb", "users", "admin", "guest"} {
		if !strings.Contains(out, want) {
			t.Errorf("report should contain %q, got:\n%s", want, out)
		}
	}
}

func TestDumpIntegration_TableScopedAndRowLimited(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	out, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--table", "users",
		"--rows", "1",
	)
	if err != nil {
		t.Fatalf("dump failed: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, "users") {
		t.Errorf("report should mention the requested table, got:\n%s", out)
	}
	if strings.Contains(out, "guest") {
		t.Errorf("row-limited dump should not have sampled the second row, got:\n%s", out)
	}
}

func TestDumpIntegration_WritesToOutputFile(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "report.txt")

	_, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--output", outPath,
	)
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}

	contents, readErr := os.ReadFile(outPath)
	if readErr != nil {
		t.Fatalf("reading output file: %v", readErr)
	}
	if !strings.Contains(string(contents), "8.0.32") {
		t.Errorf("output file should contain the extracted version, got:\n%s", contents)
	}
}

func TestDumpIntegration_JSONFormat(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	out, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("dump failed: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, "8.0.32") {
		t.Errorf("json report should contain the extracted version, got:\n%s", out)
	}
}

func TestDumpIntegration_WithTamperChain(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	out, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--tamper", "space2comment,uppercase",
	)
	if err != nil {
		t.Fatalf("dump with tamper chain failed: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, "8.0.32") {
		t.Errorf("report should still contain the extracted version under a tamper chain, got:\n%s", out)
	}
}

func TestDumpIntegration_WithSQLiteCache(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "cache.db")

	out1, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--cache", cachePath,
	)
	if err != nil {
		t.Fatalf("first cached dump failed: %v\noutput:\n%s", err, out1)
	}

	out2, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "mysql",
		"--cache", cachePath,
	)
	if err != nil {
		t.Fatalf("second cached dump failed: %v\noutput:\n%s", err, out2)
	}
	if !strings.Contains(out2, "8.0.32") {
		t.Errorf("second cached run should still report the version, got:\n%s", out2)
	}
}

func TestDumpIntegration_UnknownDBMSHint(t *testing.T) {
	srv := testutil.NewVulnServer(testutil.DefaultSchema())
	defer srv.Close()

	_, err := runDumpArgs(t,
		"--url", srv.URL+"/vuln/mysql?id=1",
		"--param", "id",
		"--dbms", "nosuchdb",
	)
	if err == nil {
		t.Fatal("expected an error for an unsupported --dbms value")
	}
}
