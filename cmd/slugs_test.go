//go:build !integration

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/slug"
	"github.com/sells-group/leadmatch/internal/store"
)

func TestRunSlugs_StateReservesOtherSlugs(t *testing.T) {
	st := newTestStore(t,
		model.BusinessRecord{ID: "1", Name: "Acme", State: "AL"},
		model.BusinessRecord{ID: "2", Name: "Acme", State: "AL"},
		model.BusinessRecord{ID: "3", Name: "Acme", State: "AR", Slug: "acme"},
	)
	ctx := context.Background()

	report, err := runSlugs(ctx, st, slugsOptions{State: "al", Slug: slug.DefaultConfig()})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Len(t, report.Changes, 2)
	assert.Equal(t, int64(2), report.Applied)
	assert.Equal(t, 0, report.Duplicates)

	records, err := st.ListRecords(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, "acme-al", records[0].Slug)
	assert.Equal(t, "acme-al-1", records[1].Slug)
	assert.Equal(t, "acme", records[2].Slug)
}

func TestRunSlugs_DryRun(t *testing.T) {
	st := newTestStore(t, model.BusinessRecord{ID: "1", Name: "Beta Air"})
	ctx := context.Background()

	report, err := runSlugs(ctx, st, slugsOptions{DryRun: true, Slug: slug.DefaultConfig()})
	require.NoError(t, err)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, "beta-air-1", report.Changes[0].To)

	records, err := st.ListRecords(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, "", records[0].Slug)
}

func TestRunSlugs_NothingToChange(t *testing.T) {
	st := &stubStore{records: []model.BusinessRecord{{ID: "1", Name: "Acme", Slug: "acme"}}}

	report, err := runSlugs(context.Background(), st, slugsOptions{Slug: slug.DefaultConfig()})
	require.NoError(t, err)
	assert.Empty(t, report.Changes)
	assert.Empty(t, st.updates)
}

func TestRunSlugs_Exhausted(t *testing.T) {
	st := &stubStore{records: []model.BusinessRecord{
		{ID: "1", Name: "Acme", Slug: "acme"},
		{ID: "2", Name: "Acme", Slug: "acme-1"},
		{ID: "3", Name: "Acme", Slug: "acme"},
	}}

	_, err := runSlugs(context.Background(), st, slugsOptions{Slug: slug.Config{MaxAttempts: 1}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, slug.ErrSlugCollisionExhausted))
	assert.Contains(t, err.Error(), "slugs: assign")
}

func TestRunSlugs_WriteError(t *testing.T) {
	st := &stubStore{
		records:   []model.BusinessRecord{{ID: "1", Name: "Acme"}},
		updateErr: errors.New("read-only"),
	}

	_, err := runSlugs(context.Background(), st, slugsOptions{Slug: slug.DefaultConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slugs: write slugs")
	assert.Equal(t, []model.FieldUpdate{{ID: "1", Field: "slug", Value: "acme-1"}}, st.updates)
}
