//go:build !integration

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/resolve"
	"github.com/sells-group/leadmatch/internal/store"
)

const poolCSV = `name,city,phone,place_id,reviews_link
Joes Heating and Air,Selma,205-555-1234,p1,https://g.page/joe
Beta Different Name,Mobile,,p2,https://g.page/beta
Gamma Plumbing,Little Rock,,p3,https://g.page/gamma
`

func canonicalRecords() []model.BusinessRecord {
	return []model.BusinessRecord{
		{ID: "1", Name: "Joe's Heating & Air LLC", City: "Selma", State: "AL", Phone: "(205) 555-1234"},
		{ID: "2", Name: "Beta Air Conditioning", City: "Mobile", State: "AL", ExternalKey: "p2"},
		{ID: "3", Name: "Gamma Plumbing", City: "Little Rock", State: "AR"},
	}
}

func testMatchOptions(file string) matchOptions {
	return matchOptions{
		File:  file,
		State: "AL",
		Match: resolve.DefaultConfig(),
		Merge: resolve.MergeOptions{
			Carry:               []string{"reviews_link"},
			OverwriteConfidence: 1.0,
			BackfillKey:         true,
		},
	}
}

func TestRunMatch(t *testing.T) {
	st := newTestStore(t, canonicalRecords()...)
	ctx := context.Background()

	report, err := runMatch(ctx, st, testMatchOptions(writeFile(t, "pool.csv", poolCSV)))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Sources)
	assert.Equal(t, 3, report.Pool)
	assert.Equal(t, model.TierCounts{Key: 1, Fuzzy: 1}, report.Counts)
	assert.Equal(t, 3, report.Planned)
	assert.Equal(t, int64(3), report.Applied)
	assert.True(t, report.Exclusive)

	records, err := st.ListRecords(ctx, store.RecordFilter{Columns: []string{"reviews_link"}})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "p1", records[0].ExternalKey)
	assert.Equal(t, "https://g.page/joe", records[0].Extra["reviews_link"])
	assert.Equal(t, "https://g.page/beta", records[1].Extra["reviews_link"])
	assert.Nil(t, records[2].Extra, "out-of-state record is untouched")

	decisions, err := st.ListDecisions(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, model.TierFuzzy, decisions[0].Tier)
	assert.Equal(t, model.TierKey, decisions[1].Tier)
}

func TestRunMatch_DryRun(t *testing.T) {
	st := newTestStore(t, canonicalRecords()...)
	ctx := context.Background()

	opts := testMatchOptions(writeFile(t, "pool.csv", poolCSV))
	opts.DryRun = true
	report, err := runMatch(ctx, st, opts)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Planned)
	assert.Equal(t, int64(0), report.Applied)

	records, err := st.ListRecords(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, "", records[0].ExternalKey)

	decisions, err := st.ListDecisions(ctx, report.RunID)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestRunMatch_Parallel(t *testing.T) {
	st := newTestStore(t, canonicalRecords()...)

	opts := testMatchOptions(writeFile(t, "pool.csv", poolCSV))
	opts.State = ""
	opts.DryRun = true
	opts.Match.Workers = 4
	report, err := runMatch(context.Background(), st, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sources)
	assert.False(t, report.Exclusive)
	require.Len(t, report.Decisions, 3)
	assert.Equal(t, model.TierExactName, report.Decisions[2].Tier)
	assert.Equal(t, model.TierCounts{Key: 1, ExactName: 1, Fuzzy: 1}, report.Counts)
}

func TestRunMatch_RequiresFile(t *testing.T) {
	_, err := runMatch(context.Background(), &stubStore{}, matchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file is required")
}

func TestRunMatch_MissingFile(t *testing.T) {
	_, err := runMatch(context.Background(), &stubStore{}, matchOptions{File: "/nonexistent/pool.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match: read")
}

func TestRunMatch_ListError(t *testing.T) {
	st := &stubStore{listErr: errors.New("connection refused")}
	_, err := runMatch(context.Background(), st, matchOptions{File: "pool.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load canonical records")
}

func TestRunMatch_ApplyError(t *testing.T) {
	st := &stubStore{
		records:   canonicalRecords()[:1],
		updateErr: errors.New("deadlock"),
	}
	opts := testMatchOptions(writeFile(t, "pool.csv", poolCSV))
	_, err := runMatch(context.Background(), st, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply updates")
	assert.Zero(t, st.saved)
}

func TestRunMatch_SaveDecisionsError(t *testing.T) {
	st := &stubStore{
		records: canonicalRecords()[:1],
		saveErr: errors.New("disk full"),
	}
	opts := testMatchOptions(writeFile(t, "pool.csv", poolCSV))
	_, err := runMatch(context.Background(), st, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save decisions")
	assert.Len(t, st.updates, 2)
}

func TestExtraColumns(t *testing.T) {
	assert.Equal(t, []string{"reviews_link", "website"}, extraColumns([]string{" Reviews_Link", "phone", "", "website", "place_id"}))
	assert.Nil(t, extraColumns(nil))
}
