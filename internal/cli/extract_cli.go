package cli

import (
	"context"
	"fmt"

	"github.com/0x6d61/sqleech/internal/dbmsfacade"
	"github.com/0x6d61/sqleech/internal/report"
)

// runExtraction drives a DBMSFacade through identity, schema, and data
// recovery, assembling the result into a DumpReport. Individual failures
// (a field or table that doesn't resolve) are recorded in dump.Errors
// rather than aborting the whole run, so a partial dump still reports
// whatever it did recover.
func runExtraction(ctx context.Context, facade *dbmsfacade.DBMSFacade, targetURL, dbName, tableName string, maxRows, verbose int) (*report.DumpReport, error) {
	dump := &report.DumpReport{TargetURL: targetURL, Dialect: facade.Name}

	if version, err := facade.Version(ctx); err != nil {
		dump.Errors = append(dump.Errors, fmt.Errorf("version: %w", err))
	} else {
		dump.Version = version
	}

	if user, err := facade.User(ctx); err != nil {
		dump.Errors = append(dump.Errors, fmt.Errorf("user: %w", err))
	} else {
		dump.User = user
	}

	var db *dbmsfacade.DatabaseWrapper
	var err error
	if dbName != "" {
		db, err = facade.Database(ctx, dbName)
	} else {
		db, err = facade.Database(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("current database: %w", err)
	}
	dump.Database = db.Name

	tables, err := resolveTables(ctx, db, tableName, verbose)
	if err != nil {
		return nil, err
	}

	for _, tbl := range tables {
		tableDump, err := dumpTable(ctx, tbl, maxRows)
		if err != nil {
			dump.Errors = append(dump.Errors, fmt.Errorf("table %s: %w", tbl.Name, err))
			continue
		}
		if verbose > 0 {
			fmt.Printf("[*] %s.%s: %d rows (%d sampled)\n", db.Name, tbl.Name, tableDump.RowCount, len(tableDump.Rows))
		}
		dump.Tables = append(dump.Tables, *tableDump)
	}

	return dump, nil
}

// resolveTables returns just tableName's TableWrapper when one was
// requested, or the full enumerated table list otherwise.
func resolveTables(ctx context.Context, db *dbmsfacade.DatabaseWrapper, tableName string, verbose int) ([]*dbmsfacade.TableWrapper, error) {
	if tableName != "" {
		return []*dbmsfacade.TableWrapper{db.Table(tableName)}, nil
	}
	tables, err := db.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating tables: %w", err)
	}
	if verbose > 0 {
		fmt.Printf("[*] %s: %d tables\n", db.Name, len(tables))
	}
	return tables, nil
}

// dumpTable recovers one table's fields, row count, and up to maxRows
// sampled rows (every row when maxRows is 0).
func dumpTable(ctx context.Context, tbl *dbmsfacade.TableWrapper, maxRows int) (*report.TableDump, error) {
	fields, err := tbl.Fields(ctx)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	count, err := tbl.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("row count: %w", err)
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	sample := count
	if maxRows > 0 && sample > maxRows {
		sample = maxRows
	}

	rows := make([][]string, 0, sample)
	for pos := 0; pos < sample; pos++ {
		row := make([]string, len(fields))
		for i, f := range fields {
			v, err := f.Value(ctx, pos)
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", pos, f.Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return &report.TableDump{Name: tbl.Name, Fields: names, RowCount: count, Rows: rows}, nil
}
