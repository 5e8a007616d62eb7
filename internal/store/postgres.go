package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/db"
	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool  db.Pool
	table string
	retry resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
	// Retry applies to the initial ping and to every bulk write.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// NewPostgres creates a PostgresStore over table with a connection pool.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *PoolConfig) (*PostgresStore, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	retry := resilience.DefaultRetryConfig()
	if poolCfg != nil {
		retry = poolCfg.Retry
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	retry.OnRetry = resilience.RetryLogger("postgres ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, table: table, retry: retry}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool, table string) (*PostgresStore, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, table: table, retry: resilience.DefaultRetryConfig()}, nil
}

// WithRetry replaces the retry policy used for bulk writes.
func (s *PostgresStore) WithRetry(cfg resilience.RetryConfig) *PostgresStore {
	s.retry = cfg
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	source_name TEXT NOT NULL,
	match_key   TEXT,
	match_name  TEXT,
	tier        TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	decided_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_match_decisions_run_id ON match_decisions(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL(postgresMigration, s.table))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity to the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.BusinessRecord, error) {
	query, args, err := listQuery(s.table, filter, func(n int) string { return fmt.Sprintf("$%d", n) })
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		r, err := scanRecord(rows, filter.Columns)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records")
}

// ApplyUpdates writes updates one column at a time through db.BulkUpdate.
func (s *PostgresStore) ApplyUpdates(ctx context.Context, updates []model.FieldUpdate) (int64, error) {
	fields, byField, err := groupUpdates(updates)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, field := range fields {
		batch := byField[field]
		rows := make([][]any, len(batch))
		for i, u := range batch {
			rows[i] = []any{u.ID, u.Value}
		}
		retry := s.retry
		retry.OnRetry = resilience.RetryLogger("postgres update " + field)
		n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
			return db.BulkUpdate(ctx, s.pool, db.UpdateConfig{Table: s.table, Column: field}, rows)
		})
		if err != nil {
			return total, eris.Wrapf(err, "postgres: apply %s updates", field)
		}
		zap.L().Debug("postgres: applied updates",
			zap.String("field", field),
			zap.Int("requested", len(batch)),
			zap.Int64("updated", n),
		)
		total += n
	}
	return total, nil
}

func (s *PostgresStore) SaveDecisions(ctx context.Context, runID string, decisions []model.Decision) error {
	rows := decisionRows(runID, decisions, time.Now().UTC())
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("postgres save decisions")
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		_, err := db.CopyFrom(ctx, s.pool, DecisionsTable, decisionColumns, rows)
		return err
	})
	return eris.Wrapf(err, "postgres: save decisions for run %s", runID)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, runID string) ([]DecisionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, source_id, source_name, COALESCE(match_key, ''), COALESCE(match_name, ''), tier, confidence, decided_at
		 FROM match_decisions WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list decisions for run %s", runID)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		var tier string
		if err := rows.Scan(&d.RunID, &d.SourceID, &d.SourceName, &d.MatchKey, &d.MatchName, &tier, &d.Confidence, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		d.Tier = model.MatchTier(tier)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list decisions")
}

// migrationSQL fills the table name and its slug index name into tmpl.
func migrationSQL(tmpl, table string) string {
	index := "idx_" + strings.ReplaceAll(table, ".", "_") + "_slug"
	return fmt.Sprintf(tmpl, db.SanitizeTable(table), pgx.Identifier{index}.Sanitize())
}
