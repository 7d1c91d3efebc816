// Package testutil provides a mock vulnerable web server for integration
// testing of the sqleech extraction engine.
//
// SECURITY NOTE: This package is for testing only. The mock server
// intentionally simulates SQL-injectable endpoints. All user-derived
// values embedded in responses are HTML-escaped via html/template.
package testutil

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
)

// Schema is the toy database instance the mock server answers bisection
// probes against: one current database holding one table with a handful
// of columns and rows, enough to exercise every dbmsfacade enumeration
// level (Version/User/Database/Databases/Tables/Fields/CountTableRecords/
// GetRecordFieldValue) over real HTTP round trips instead of an in-process
// injector.Injector.
type Schema struct {
	Version   string
	User      string
	Database  string
	Databases []string
	Tables    []string
	Fields    []string
	RowCount  int
	// Rows holds one string per row for the probed column; the payload's
	// "LIMIT i,1" offset selects which row a probe is answered against.
	Rows []string
}

// DefaultSchema returns the schema NewVulnServer uses by default: a
// MySQL 8.0.32 instance with one database "testdb" holding a "users"
// table.
func DefaultSchema() *Schema {
	return &Schema{
		Version:   "8.0.32",
		User:      "root@localhost",
		Database:  "testdb",
		Databases: []string{"testdb", "information_schema"},
		Tables:    []string{"users"},
		Fields:    []string{"id", "username", "password"},
		RowCount:  2,
		Rows:      []string{"admin", "guest"},
	}
}

var (
	numRe = regexp.MustCompile(`\)\s*<\s*(\d+)`)
	posRe = regexp.MustCompile(`,(\d+),1\)`)
	limRe = regexp.MustCompile(`LIMIT (\d+),1`)
	eqRe  = regexp.MustCompile(`IF\((\d+)=(\d+),`)
)

// Evaluate answers a bisection probe the way a real MySQL server bound to
// s would: it pattern-matches the metadata-query shape forge.MySQL emits
// (information_schema.*, @@version, CURRENT_USER(), DATABASE(), and the
// target table's qualified name) rather than parsing SQL, grounded on the
// same substring-marker strategy dbmsfacade's mock oracle test uses. A
// payload with no "(...) < N" comparison but a literal IF(a=b, ...)
// condition is answered by comparing a and b.
func (s *Schema) Evaluate(payload string) bool {
	nm := numRe.FindStringSubmatch(payload)
	if nm == nil {
		if em := eqRe.FindStringSubmatch(payload); em != nil {
			return em[1] == em[2]
		}
		return false
	}
	n, _ := strconv.Atoi(nm[1])

	switch {
	case strings.Contains(payload, "ASCII(SUBSTRING("):
		pm := posRe.FindStringSubmatch(payload)
		if pm == nil {
			return false
		}
		pos, _ := strconv.Atoi(pm[1])
		value := s.resolveString(payload)
		if pos < 1 || pos > len(value) {
			return false
		}
		return int(value[pos-1]) < n
	case strings.Contains(payload, "LENGTH("):
		return len(s.resolveString(payload)) < n
	default:
		return s.resolveCount(payload) < n
	}
}

func limitOffset(payload string) int {
	m := limRe.FindStringSubmatch(payload)
	if m == nil {
		return 0
	}
	i, _ := strconv.Atoi(m[1])
	return i
}

func (s *Schema) resolveString(payload string) string {
	switch {
	case strings.Contains(payload, "@@version"):
		return s.Version
	case strings.Contains(payload, "CURRENT_USER()"):
		return s.User
	case strings.Contains(payload, "information_schema.columns"):
		return indexOrEmpty(s.Fields, limitOffset(payload))
	case strings.Contains(payload, "information_schema.tables"):
		return indexOrEmpty(s.Tables, limitOffset(payload))
	case strings.Contains(payload, "information_schema.schemata"):
		return indexOrEmpty(s.Databases, limitOffset(payload))
	case strings.Contains(payload, "FROM "+s.Database+".users"):
		return indexOrEmpty(s.Rows, limitOffset(payload))
	case strings.Contains(payload, "DATABASE()"):
		return s.Database
	}
	return ""
}

func (s *Schema) resolveCount(payload string) int {
	switch {
	case strings.Contains(payload, "information_schema.columns"):
		return len(s.Fields)
	case strings.Contains(payload, "information_schema.tables"):
		return len(s.Tables)
	case strings.Contains(payload, "information_schema.schemata"):
		return len(s.Databases)
	case strings.Contains(payload, "FROM "+s.Database+".users"):
		return s.RowCount
	}
	return 0
}

func indexOrEmpty(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

// Response templates using html/template for safe HTML rendering.
var tmplMap = template.Must(template.New("").Parse(`
{{define "normal"}}<html><body><h1>Products</h1><p>Product: Widget (ID: 1)</p></body></html>{{end}}
{{define "subquery-error"}}<html><body><h1>Error</h1><p>Subquery returns more than 1 row</p></body></html>{{end}}
{{define "syntax-error"}}<html><body><h1>Error</h1><p>You have an error in your SQL syntax near '{{.}}'</p></body></html>{{end}}
{{define "login-normal"}}<html><body><h1>Login</h1><p>Welcome back, admin!</p></body></html>{{end}}
{{define "login-error"}}<html><body><h1>Error</h1><p>Subquery returns more than 1 row</p></body></html>{{end}}
{{define "safe"}}<html><body><h1>Product</h1><p>Product details for item 42</p></body></html>{{end}}
`))

func execTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	tmplMap.ExecuteTemplate(w, name, data) //nolint:errcheck
}

// NewVulnServer creates a mock HTTP server simulating a MySQL-backed web
// application vulnerable to boolean-blind injection through forge's
// WrapBisec framing: a true condition renders the normal page; a false
// condition triggers MySQL's "Subquery returns more than 1 row" error,
// exactly as MySQL.WrapBisec's two-row UNION branch would in a real
// database. The returned *httptest.Server should be closed after use.
func NewVulnServer(schema *Schema) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/vuln/mysql", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if strings.Contains(id, "'") && !strings.Contains(id, "SELECT IF(") {
			execTemplate(w, "syntax-error", id)
			return
		}
		if schema.Evaluate(id) {
			execTemplate(w, "normal", nil)
		} else {
			execTemplate(w, "subquery-error", nil)
		}
	})

	mux.HandleFunc("/vuln/mysql/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		username := r.FormValue("username")
		if schema.Evaluate(username) {
			execTemplate(w, "login-normal", nil)
		} else {
			execTemplate(w, "login-error", nil)
		}
	})

	mux.HandleFunc("/vuln/safe", func(w http.ResponseWriter, _ *http.Request) {
		execTemplate(w, "safe", nil)
	})

	return httptest.NewServer(mux)
}
