// Package dbmsfacade exposes a high-level, dialect-aware view over a SQL
// injection: version/user/database identity, and lazy enumeration of
// databases, tables, and fields, all driven by extract.Engine bisection
// calls. Capabilities gate which enumeration operations a given dialect
// actually supports.
package dbmsfacade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/0x6d61/sqleech/internal/cache"
	"github.com/0x6d61/sqleech/internal/extract"
	"github.com/0x6d61/sqleech/internal/forge"
	"github.com/0x6d61/sqleech/internal/injector"
	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// Capabilities is a bitset describing which enumeration operations a
// dialect supports. A missing bit short-circuits the corresponding
// facade method with ErrUnavailable, without issuing any oracle probe.
type Capabilities uint8

const (
	DBSEnum Capabilities = 1 << iota
	TablesEnum
	ColsEnum
	FieldsEnum
	Str
	Comment
)

// Has reports whether every bit in flag is set in c.
func (c Capabilities) Has(flag Capabilities) bool { return c&flag == flag }

// ErrUnavailable is returned when a facade method is called against a
// dialect whose Capabilities doesn't include the required bit.
var errUnavailableText = "dbmsfacade: capability not supported by this dialect"

type unavailableError struct{}

func (unavailableError) Error() string { return errUnavailableText }

var ErrUnavailable error = unavailableError{}

// DBMSFacade is a dialect-bound view over a single injection target.
type DBMSFacade struct {
	Engine *extract.Engine
	Caps   Capabilities
	// Name is the dialect's human-readable display name (e.g. "MySQL").
	Name string

	// Cache, if set, persists every resolved identity/enumeration value
	// keyed on (Name, CacheTag, key) so a repeated run against the same
	// target skips the bisection round-trip entirely.
	Cache    cache.Store
	CacheTag string

	mu        sync.Mutex
	databases []*DatabaseWrapper
}

// WithCache attaches a persistent cache.Store to d, scoped to tag (the
// caller typically derives tag from the target URL and parameter so
// distinct injection points don't collide in the same store).
func (d *DBMSFacade) WithCache(store cache.Store, tag string) *DBMSFacade {
	d.Cache = store
	d.CacheTag = tag
	return d
}

// cachedStr resolves key through the attached cache, falling back to
// resolve and persisting the result when the cache is unset, unreadable,
// or missing the entry.
func (d *DBMSFacade) cachedStr(ctx context.Context, key string, resolve func() (string, error)) (string, error) {
	if d.Cache == nil {
		return resolve()
	}
	if entry, err := d.Cache.Load(ctx, d.Name, d.CacheTag, key); err == nil && entry != nil {
		var v string
		if err := json.Unmarshal([]byte(entry.ValueJSON), &v); err == nil {
			return v, nil
		}
	}
	v, err := resolve()
	if err != nil {
		return "", err
	}
	if entry, err := cache.JSONEntry(d.Name, d.CacheTag, key, v); err == nil {
		_ = d.Cache.Save(ctx, entry)
	}
	return v, nil
}

// cachedInt is cachedStr's counterpart for integer results (row/entity
// counts).
func (d *DBMSFacade) cachedInt(ctx context.Context, key string, resolve func() (int, error)) (int, error) {
	if d.Cache == nil {
		return resolve()
	}
	if entry, err := d.Cache.Load(ctx, d.Name, d.CacheTag, key); err == nil && entry != nil {
		var v int
		if err := json.Unmarshal([]byte(entry.ValueJSON), &v); err == nil {
			return v, nil
		}
	}
	v, err := resolve()
	if err != nil {
		return 0, err
	}
	if entry, err := cache.JSONEntry(d.Name, d.CacheTag, key, v); err == nil {
		_ = d.Cache.Save(ctx, entry)
	}
	return v, nil
}

// Version returns the DBMS version string.
func (d *DBMSFacade) Version(ctx context.Context) (string, error) {
	return d.cachedStr(ctx, "version", func() (string, error) {
		return d.Engine.GetBlindStr(ctx, d.Engine.Forge.GetVersion())
	})
}

// User returns the current connected user.
func (d *DBMSFacade) User(ctx context.Context) (string, error) {
	return d.cachedStr(ctx, "user", func() (string, error) {
		return d.Engine.GetBlindStr(ctx, d.Engine.Forge.GetUser())
	})
}

// Database resolves a single DatabaseWrapper: the current database if
// name is omitted, or the named one without validating it exists.
func (d *DBMSFacade) Database(ctx context.Context, name ...string) (*DatabaseWrapper, error) {
	if len(name) > 0 {
		return &DatabaseWrapper{facade: d, Name: name[0]}, nil
	}
	cur, err := d.cachedStr(ctx, "current_database", func() (string, error) {
		return d.Engine.GetBlindStr(ctx, d.Engine.Forge.GetCurrentDatabase())
	})
	if err != nil {
		return nil, err
	}
	return &DatabaseWrapper{facade: d, Name: cur}, nil
}

// Databases enumerates every database on the instance, caching the
// result on first call.
func (d *DBMSFacade) Databases(ctx context.Context) ([]*DatabaseWrapper, error) {
	if !d.Caps.Has(DBSEnum) {
		return nil, ErrUnavailable
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.databases != nil {
		return d.databases, nil
	}

	countQ, err := d.Engine.Forge.CountDatabases()
	if err != nil {
		return nil, err
	}
	count, err := d.cachedInt(ctx, "database_count", func() (int, error) {
		return d.Engine.GetBlindInt(ctx, countQ)
	})
	if err != nil {
		return nil, err
	}

	dbs := make([]*DatabaseWrapper, 0, count)
	for i := 0; i < count; i++ {
		i := i
		takeQ, err := d.Engine.Forge.TakeDatabase(i)
		if err != nil {
			return nil, err
		}
		name, err := d.cachedStr(ctx, fmt.Sprintf("database[%d]", i), func() (string, error) {
			return d.Engine.GetBlindStr(ctx, takeQ)
		})
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, &DatabaseWrapper{facade: d, Name: name})
	}
	d.databases = dbs
	return dbs, nil
}

// Tables enumerates the tables of the current database (or a named one)
// without requiring a DatabaseWrapper round-trip.
func (d *DBMSFacade) Tables(ctx context.Context, db ...string) ([]*TableWrapper, error) {
	target, err := d.Database(ctx, db...)
	if err != nil {
		return nil, err
	}
	return target.Tables(ctx)
}

// Fields enumerates the columns of table in the current database (or a
// named one) without requiring a TableWrapper round-trip.
func (d *DBMSFacade) Fields(ctx context.Context, table string, db ...string) ([]*FieldWrapper, error) {
	target, err := d.Database(ctx, db...)
	if err != nil {
		return nil, err
	}
	tw := &TableWrapper{db: target, Name: table}
	return tw.Fields(ctx)
}

// CountTableRecords returns the row count of table in the current
// database (or a named one).
func (d *DBMSFacade) CountTableRecords(ctx context.Context, table string, db ...string) (int, error) {
	sel := d.Engine.Forge.SelectAll(table, firstOrEmpty(db))
	key := fmt.Sprintf("record_count[%s]", qualify(table, firstOrEmpty(db)))
	return d.cachedInt(ctx, key, func() (int, error) {
		return d.Engine.GetBlindInt(ctx, d.Engine.Forge.Count(sel))
	})
}

// GetRecordFieldValue returns the value of field in the pos-th row (0
// based) of table in the current database (or a named one).
func (d *DBMSFacade) GetRecordFieldValue(ctx context.Context, field, table string, pos int, db ...string) (string, error) {
	sel := fmt.Sprintf("SELECT %s FROM %s", field, qualify(table, firstOrEmpty(db)))
	key := fmt.Sprintf("record[%s][%s][%d]", qualify(table, firstOrEmpty(db)), field, pos)
	return d.cachedStr(ctx, key, func() (string, error) {
		return d.Engine.GetBlindStr(ctx, d.Engine.Forge.Take(sel, pos))
	})
}

func firstOrEmpty(db []string) string {
	if len(db) > 0 {
		return db[0]
	}
	return ""
}

func qualify(table, db string) string {
	if db == "" {
		return table
	}
	return db + "." + table
}

// DatabaseWrapper is a lazily-populated view over one database's tables.
type DatabaseWrapper struct {
	facade *DBMSFacade
	Name   string

	mu     sync.Mutex
	tables []*TableWrapper
}

// Tables enumerates this database's tables, caching the result on first
// call.
func (db *DatabaseWrapper) Tables(ctx context.Context) ([]*TableWrapper, error) {
	if !db.facade.Caps.Has(TablesEnum) {
		return nil, ErrUnavailable
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.tables != nil {
		return db.tables, nil
	}

	countQ, err := db.facade.Engine.Forge.CountTables(db.Name)
	if err != nil {
		return nil, err
	}
	count, err := db.facade.cachedInt(ctx, fmt.Sprintf("table_count[%s]", db.Name), func() (int, error) {
		return db.facade.Engine.GetBlindInt(ctx, countQ)
	})
	if err != nil {
		return nil, err
	}

	tables := make([]*TableWrapper, 0, count)
	for i := 0; i < count; i++ {
		i := i
		takeQ, err := db.facade.Engine.Forge.TakeTable(db.Name, i)
		if err != nil {
			return nil, err
		}
		name, err := db.facade.cachedStr(ctx, fmt.Sprintf("table[%s][%d]", db.Name, i), func() (string, error) {
			return db.facade.Engine.GetBlindStr(ctx, takeQ)
		})
		if err != nil {
			return nil, err
		}
		tables = append(tables, &TableWrapper{db: db, Name: name})
	}
	db.tables = tables
	return tables, nil
}

// Table resolves a single TableWrapper by name without validating it
// exists, the table-level counterpart to Database's name-bypass form.
func (db *DatabaseWrapper) Table(name string) *TableWrapper {
	return &TableWrapper{db: db, Name: name}
}

// Invalidate clears the cached table list, forcing the next Tables call
// to re-enumerate from the target.
func (db *DatabaseWrapper) Invalidate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = nil
}

// TableWrapper is a lazily-populated view over one table's fields.
type TableWrapper struct {
	db   *DatabaseWrapper
	Name string

	mu     sync.Mutex
	fields []*FieldWrapper
}

// Fields enumerates this table's columns, caching the result on first
// call.
func (tw *TableWrapper) Fields(ctx context.Context) ([]*FieldWrapper, error) {
	if !tw.db.facade.Caps.Has(ColsEnum | FieldsEnum) {
		return nil, ErrUnavailable
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.fields != nil {
		return tw.fields, nil
	}

	countQ, err := tw.db.facade.Engine.Forge.CountFields(tw.Name, tw.db.Name)
	if err != nil {
		return nil, err
	}
	countKey := fmt.Sprintf("field_count[%s][%s]", tw.db.Name, tw.Name)
	count, err := tw.db.facade.cachedInt(ctx, countKey, func() (int, error) {
		return tw.db.facade.Engine.GetBlindInt(ctx, countQ)
	})
	if err != nil {
		return nil, err
	}

	fields := make([]*FieldWrapper, 0, count)
	for i := 0; i < count; i++ {
		i := i
		takeQ, err := tw.db.facade.Engine.Forge.TakeField(tw.Name, tw.db.Name, i)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("field[%s][%s][%d]", tw.db.Name, tw.Name, i)
		name, err := tw.db.facade.cachedStr(ctx, key, func() (string, error) {
			return tw.db.facade.Engine.GetBlindStr(ctx, takeQ)
		})
		if err != nil {
			return nil, err
		}
		fields = append(fields, &FieldWrapper{table: tw, Name: name})
	}
	tw.fields = fields
	return fields, nil
}

// Invalidate clears the cached field list, forcing the next Fields call
// to re-enumerate from the target.
func (tw *TableWrapper) Invalidate() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.fields = nil
}

// CountRecords returns this table's row count.
func (tw *TableWrapper) CountRecords(ctx context.Context) (int, error) {
	return tw.db.facade.CountTableRecords(ctx, tw.Name, tw.db.Name)
}

// FieldWrapper names one column of a TableWrapper.
type FieldWrapper struct {
	table *TableWrapper
	Name  string
}

// Value returns this field's value in the pos-th row (0 based).
func (f *FieldWrapper) Value(ctx context.Context, pos int) (string, error) {
	return f.table.db.facade.GetRecordFieldValue(ctx, f.Name, f.table.Name, pos, f.table.db.Name)
}

// registryEntry pairs a dialect's Forge constructor with its
// capabilities and display name.
type registryEntry struct {
	newForge func(*sqlictx.Context) forge.Forge
	caps     Capabilities
	display  string
}

var registry = map[string]registryEntry{}

// Register adds (or replaces) a dialect under name (case-insensitive).
func Register(name string, newForge func(*sqlictx.Context) forge.Forge, caps Capabilities, display string) {
	registry[strings.ToLower(name)] = registryEntry{newForge: newForge, caps: caps, display: display}
}

// New builds a DBMSFacade for the named dialect, bound to inj's
// injection context. name may be a registered name or a display name
// (as returned by Sniff), matched case-insensitively.
func New(name string, inj injector.Injector) (*DBMSFacade, error) {
	entry, ok := registry[strings.ToLower(name)]
	if !ok {
		for _, e := range registry {
			if strings.EqualFold(e.display, name) {
				entry, ok = e, true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("dbmsfacade: unknown dialect %q", name)
	}
	f := entry.newForge(inj.Context())
	eng := extract.New(f, inj)
	return &DBMSFacade{Engine: eng, Caps: entry.caps, Name: entry.display}, nil
}

// allEnum is the capability set shared by every dialect this package
// registers by default: each can enumerate databases, tables, and
// fields, and supports both string extraction and trailing comments.
const allEnum = DBSEnum | TablesEnum | ColsEnum | FieldsEnum | Str | Comment

func init() {
	Register("mysql", func(ctx *sqlictx.Context) forge.Forge { return forge.NewMySQL(ctx) }, allEnum, "MySQL")
	Register("postgresql", func(ctx *sqlictx.Context) forge.Forge { return forge.NewPostgreSQL(ctx) }, allEnum, "PostgreSQL")
	Register("mssql", func(ctx *sqlictx.Context) forge.Forge { return forge.NewMSSQL(ctx) }, allEnum, "Microsoft SQL Server")
	Register("oracle", func(ctx *sqlictx.Context) forge.Forge { return forge.NewOracle(ctx) }, allEnum, "Oracle")
}
