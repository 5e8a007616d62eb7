//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/store"
)

func newTestStore(t *testing.T, records ...model.BusinessRecord) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leadmatch.db"), "companies")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	if len(records) > 0 {
		require.NoError(t, st.InsertRecords(context.Background(), records))
	}
	return st
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// stubStore is a Store with canned results for error paths.
type stubStore struct {
	records   []model.BusinessRecord
	listErr   error
	updateErr error
	saveErr   error
	updates   []model.FieldUpdate
	saved     int
}

func (s *stubStore) ListRecords(context.Context, store.RecordFilter) ([]model.BusinessRecord, error) {
	return s.records, s.listErr
}

func (s *stubStore) ApplyUpdates(_ context.Context, updates []model.FieldUpdate) (int64, error) {
	s.updates = append(s.updates, updates...)
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	return int64(len(updates)), nil
}

func (s *stubStore) SaveDecisions(_ context.Context, _ string, decisions []model.Decision) error {
	s.saved += len(decisions)
	return s.saveErr
}

func (s *stubStore) ListDecisions(context.Context, string) ([]store.DecisionRecord, error) {
	return nil, nil
}

func (s *stubStore) Migrate(context.Context) error { return nil }

func (s *stubStore) Close() error { return nil }
