// Package store persists canonical business records and the match audit
// trail behind a driver-neutral interface.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmatch/internal/db"
	"github.com/sells-group/leadmatch/internal/model"
)

// DecisionsTable holds one row per match decision, keyed by run id.
const DecisionsTable = "match_decisions"

// RecordFilter specifies criteria for listing canonical records.
type RecordFilter struct {
	State string `json:"state,omitempty"`
	// Columns lists extra columns loaded into BusinessRecord.Extra.
	Columns []string `json:"columns,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// DecisionRecord is one persisted row of the match audit trail.
type DecisionRecord struct {
	RunID      string          `json:"run_id"`
	SourceID   string          `json:"source_id"`
	SourceName string          `json:"source_name"`
	MatchKey   string          `json:"match_key,omitempty"`
	MatchName  string          `json:"match_name,omitempty"`
	Tier       model.MatchTier `json:"tier"`
	Confidence float64         `json:"confidence"`
	DecidedAt  time.Time       `json:"decided_at"`
}

// Store defines the persistence interface for canonical records.
type Store interface {
	// Records
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.BusinessRecord, error)
	ApplyUpdates(ctx context.Context, updates []model.FieldUpdate) (int64, error)

	// Audit
	SaveDecisions(ctx context.Context, runID string, decisions []model.Decision) error
	ListDecisions(ctx context.Context, runID string) ([]DecisionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var decisionColumns = []string{
	"run_id", "source_id", "source_name", "match_key", "match_name", "tier", "confidence", "decided_at",
}

func decisionRows(runID string, decisions []model.Decision, now time.Time) [][]any {
	rows := make([][]any, 0, len(decisions))
	for _, d := range decisions {
		var key, name string
		if d.Match != nil {
			key = d.Match.ExternalKey
			name = d.Match.Name
		}
		rows = append(rows, []any{
			runID, d.Source.ID, d.Source.Name, key, name, string(d.Tier), d.Confidence, now,
		})
	}
	return rows
}

// checkTable rejects table names that are not plain identifiers.
func checkTable(table string) error {
	if !db.ValidIdentifier(table) {
		return eris.Errorf("store: invalid table name %q", table)
	}
	return nil
}

// groupUpdates buckets updates by column in sorted column order. Every
// column must be a plain identifier and every update must carry an id.
func groupUpdates(updates []model.FieldUpdate) ([]string, map[string][]model.FieldUpdate, error) {
	byField := make(map[string][]model.FieldUpdate)
	for _, u := range updates {
		if u.ID == "" {
			return nil, nil, eris.Errorf("store: update of %q has no record id", u.Field)
		}
		field := strings.ToLower(u.Field)
		if field == model.FieldID || !db.ValidIdentifier(field) || strings.Contains(field, ".") {
			return nil, nil, eris.Errorf("store: invalid update field %q", u.Field)
		}
		byField[field] = append(byField[field], u)
	}
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, byField, nil
}

// listQuery builds the SELECT for ListRecords. placeholder renders the
// n-th bind parameter for the driver.
func listQuery(table string, filter RecordFilter, placeholder func(int) string) (string, []any, error) {
	cols := make([]string, 0, len(model.CoreFields)+len(filter.Columns))
	for _, c := range model.CoreFields {
		cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '')", pgx.Identifier{c}.Sanitize()))
	}
	for _, c := range filter.Columns {
		if !db.ValidIdentifier(c) || strings.Contains(c, ".") || model.IsCoreField(c) {
			return "", nil, eris.Errorf("store: invalid extra column %q", c)
		}
		cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '')", pgx.Identifier{c}.Sanitize()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), db.SanitizeTable(table))

	var args []any
	if filter.State != "" {
		args = append(args, filter.State)
		fmt.Fprintf(&b, " WHERE UPPER(state) = UPPER(%s)", placeholder(len(args)))
	}
	b.WriteString(" ORDER BY id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT %s", placeholder(len(args)))
	}
	return b.String(), args, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable, extra []string) (model.BusinessRecord, error) {
	vals := make([]string, len(model.CoreFields)+len(extra))
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		return model.BusinessRecord{}, err
	}

	var r model.BusinessRecord
	for i, f := range model.CoreFields {
		r.Set(f, vals[i])
	}
	for i, c := range extra {
		if v := vals[len(model.CoreFields)+i]; v != "" {
			r.Set(c, v)
		}
	}
	return r, nil
}
