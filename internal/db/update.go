package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig defines the target of a bulk single-column update.
type UpdateConfig struct {
	Table     string // target table (e.g., "public.companies")
	KeyColumn string // column compared against each row key; "id" when empty
	Column    string // column being set
}

// BulkUpdate sets one column on many rows in a single statement:
//  1. Creates a temp (key, value) table dropped on commit
//  2. COPY rows into the temp table
//  3. UPDATE target FROM temp, matching the key column as text
//
// Each row is {key, value}. It returns the number of target rows updated.
func BulkUpdate(ctx context.Context, pool Pool, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	keyCol := cfg.KeyColumn
	if keyCol == "" {
		keyCol = "id"
	}
	for _, ident := range []string{cfg.Table, keyCol, cfg.Column} {
		if !ValidIdentifier(ident) {
			return 0, eris.Errorf("db: update: invalid identifier %q", ident)
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: update: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := TempTableName(cfg.Table, cfg.Column)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (key TEXT NOT NULL, value TEXT) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: create temp table for %s.%s", cfg.Table, cfg.Column)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, []string{"key", "value"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: update: COPY into temp table for %s.%s", cfg.Table, cfg.Column)
	}

	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s = s.value FROM %s AS s WHERE t.%s::text = s.key",
		SanitizeTable(cfg.Table),
		pgx.Identifier{cfg.Column}.Sanitize(),
		pgx.Identifier{tempTable}.Sanitize(),
		pgx.Identifier{keyCol}.Sanitize(),
	)
	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update: UPDATE FROM for %s.%s", cfg.Table, cfg.Column)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: update: commit tx")
	}
	return tag.RowsAffected(), nil
}

// TempTableName is the temp table BulkUpdate stages rows in.
func TempTableName(table, column string) string {
	return fmt.Sprintf("_tmp_update_%s_%s", strings.ReplaceAll(table, ".", "_"), column)
}

// SanitizeTable quotes a table name, handling schema-qualified names like
// "public.companies".
func SanitizeTable(table string) string {
	return pgx.Identifier(splitQualified(table)).Sanitize()
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func splitQualified(name string) []string {
	return strings.SplitN(name, ".", 2)
}
