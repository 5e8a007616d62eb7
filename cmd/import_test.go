//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmatch/internal/store"
)

func TestRunImport(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	path := writeFile(t, "companies.csv", "id,name,city,state\n10,Acme,Selma,AL\n,Beta Air,Mobile,AL\n")
	n, err := runImport(ctx, st, path, ",", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := st.ListRecords(ctx, store.RecordFilter{State: "AL"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, "10")
	for _, id := range ids {
		assert.NotEmpty(t, id)
	}
}

func TestRunImport_UnsupportedStore(t *testing.T) {
	_, err := runImport(context.Background(), &stubStore{}, "x.csv", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support seeding")
}

func TestRunImport_BadFile(t *testing.T) {
	_, err := runImport(context.Background(), newTestStore(t), "companies.parquet", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
