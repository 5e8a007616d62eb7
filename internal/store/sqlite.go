package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadmatch/internal/db"
	"github.com/sells-group/leadmatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn, table: table}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	city         TEXT,
	state        TEXT,
	phone        TEXT,
	place_id     TEXT,
	slug         TEXT,
	reviews_link TEXT
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (LOWER(slug));

CREATE TABLE IF NOT EXISTS match_decisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	source_name TEXT NOT NULL,
	match_key   TEXT,
	match_name  TEXT,
	tier        TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	decided_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_match_decisions_run_id ON match_decisions(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migrationSQL(sqliteMigration, s.table))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.BusinessRecord, error) {
	query, args, err := listQuery(s.table, filter, func(int) string { return "?" })
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.BusinessRecord
	for rows.Next() {
		r, err := scanRecord(rows, filter.Columns)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records")
}

// ApplyUpdates writes every update in one transaction.
func (s *SQLiteStore) ApplyUpdates(ctx context.Context, updates []model.FieldUpdate) (int64, error) {
	fields, byField, err := groupUpdates(updates)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, field := range fields {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			"UPDATE %s SET %s = ? WHERE CAST(id AS TEXT) = ?",
			db.SanitizeTable(s.table), pgx.Identifier{field}.Sanitize(),
		))
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: prepare %s update", field)
		}
		for _, u := range byField[field] {
			res, err := stmt.ExecContext(ctx, u.Value, u.ID)
			if err != nil {
				stmt.Close() //nolint:errcheck
				return 0, eris.Wrapf(err, "sqlite: update %s of %s", field, u.ID)
			}
			n, err := res.RowsAffected()
			if err != nil {
				stmt.Close() //nolint:errcheck
				return 0, eris.Wrap(err, "sqlite: rows affected")
			}
			total += n
		}
		stmt.Close() //nolint:errcheck
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit updates")
	}
	return total, nil
}

func (s *SQLiteStore) SaveDecisions(ctx context.Context, runID string, decisions []model.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_decisions (`+db.QuoteAndJoin(decisionColumns)+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare decision insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range decisionRows(runID, decisions, time.Now().UTC()) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert decision for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit decisions")
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source_id, source_name, COALESCE(match_key, ''), COALESCE(match_name, ''), tier, confidence, decided_at
		 FROM match_decisions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		var tier string
		if err := rows.Scan(&d.RunID, &d.SourceID, &d.SourceName, &d.MatchKey, &d.MatchName, &tier, &d.Confidence, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		d.Tier = model.MatchTier(tier)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions")
}

// InsertRecords adds canonical records, replacing rows with the same id.
// Used to seed local databases from an export.
func (s *SQLiteStore) InsertRecords(ctx context.Context, records []model.BusinessRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		db.SanitizeTable(s.table), db.QuoteAndJoin(append(append([]string{}, model.CoreFields...), "reviews_link")),
	))
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		if r.ID == "" {
			return eris.Errorf("sqlite: record %q has no id", r.Name)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.City, r.State, r.Phone, r.ExternalKey, r.Slug, r.Get("reviews_link")); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit records")
}
