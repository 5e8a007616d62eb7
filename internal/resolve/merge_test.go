package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmatch/internal/model"
)

func decision(tier model.MatchTier, conf float64, src model.BusinessRecord, match model.BusinessRecord) model.Decision {
	return model.Decision{Source: src, Match: &match, PoolIndex: 0, Tier: tier, Confidence: conf}
}

func TestPlanMerge_FillsEmptyAndBackfillsKey(t *testing.T) {
	d := decision(model.TierFuzzy, 0.9,
		model.BusinessRecord{ID: "1", Name: "Joe HVAC"},
		model.BusinessRecord{Name: "Joe's HVAC LLC", ExternalKey: "p9", Extra: map[string]string{"reviews_link": "https://g.page/joe"}},
	)

	updates := PlanMerge([]model.Decision{d}, MergeOptions{
		Carry:               []string{"reviews_link"},
		OverwriteConfidence: 1.0,
		BackfillKey:         true,
	})

	require.Len(t, updates, 2)
	assert.Equal(t, model.FieldUpdate{ID: "1", Field: "reviews_link", Value: "https://g.page/joe"}, updates[0])
	assert.Equal(t, model.FieldUpdate{ID: "1", Field: "place_id", Value: "p9"}, updates[1])
}

func TestPlanMerge_OverwriteGatedByConfidence(t *testing.T) {
	src := model.BusinessRecord{ID: "1", Extra: map[string]string{"reviews_link": "old"}}
	match := model.BusinessRecord{Extra: map[string]string{"reviews_link": "new"}}
	opts := MergeOptions{Carry: []string{"reviews_link"}, OverwriteConfidence: 1.0}

	assert.Empty(t, PlanMerge([]model.Decision{decision(model.TierFuzzy, 0.95, src, match)}, opts))

	updates := PlanMerge([]model.Decision{decision(model.TierExactName, 1.0, src, match)}, opts)
	require.Len(t, updates, 1)
	assert.Equal(t, "new", updates[0].Value)
}

func TestPlanMerge_FuzzyNeverOverwrites(t *testing.T) {
	src := model.BusinessRecord{ID: "1", Name: "Joe HVAC Heating and Air", City: "Selma",
		Extra: map[string]string{"reviews_link": "https://old"}}
	pool := NewPool([]model.BusinessRecord{
		{Name: "Joe's HVAC LLC", City: "Selma", Extra: map[string]string{"reviews_link": "https://new"}},
	})

	d := NewMatcher(DefaultConfig()).Match(src, pool)
	require.Equal(t, model.TierFuzzy, d.Tier)
	require.Greater(t, d.Confidence, 1.0)

	opts := MergeOptions{Carry: []string{"reviews_link"}, OverwriteConfidence: 1.0}
	assert.Empty(t, PlanMerge([]model.Decision{d}, opts))

	src.Extra = nil
	d = NewMatcher(DefaultConfig()).Match(src, pool)
	updates := PlanMerge([]model.Decision{d}, opts)
	require.Len(t, updates, 1)
	assert.Equal(t, "https://new", updates[0].Value)
}

func TestPlanMerge_OverwriteTiersConfigurable(t *testing.T) {
	src := model.BusinessRecord{ID: "1", Extra: map[string]string{"reviews_link": "old"}}
	match := model.BusinessRecord{Extra: map[string]string{"reviews_link": "new"}}

	keyOnly := MergeOptions{Carry: []string{"reviews_link"}, OverwriteTiers: []model.MatchTier{model.TierKey}}
	assert.Empty(t, PlanMerge([]model.Decision{decision(model.TierExactName, 1.0, src, match)}, keyOnly))
	assert.Len(t, PlanMerge([]model.Decision{decision(model.TierKey, 1.0, src, match)}, keyOnly), 1)

	withFuzzy := MergeOptions{
		Carry:               []string{"reviews_link"},
		OverwriteTiers:      []model.MatchTier{model.TierFuzzy},
		OverwriteConfidence: 1.0,
	}
	assert.Len(t, PlanMerge([]model.Decision{decision(model.TierFuzzy, 1.2, src, match)}, withFuzzy), 1)
	assert.Empty(t, PlanMerge([]model.Decision{decision(model.TierFuzzy, 0.9, src, match)}, withFuzzy))
}

func TestPlanMerge_SkipsUnchangedAndUnmatched(t *testing.T) {
	same := decision(model.TierKey, 1.0,
		model.BusinessRecord{ID: "1", City: "Selma"},
		model.BusinessRecord{City: "Selma"},
	)
	noID := decision(model.TierKey, 1.0,
		model.BusinessRecord{Name: "x"},
		model.BusinessRecord{City: "Selma"},
	)
	none := model.NoMatch(model.BusinessRecord{ID: "3"})
	emptyValue := decision(model.TierKey, 1.0,
		model.BusinessRecord{ID: "4", City: "Selma"},
		model.BusinessRecord{},
	)

	updates := PlanMerge([]model.Decision{same, noID, none, emptyValue}, MergeOptions{
		Carry:       []string{"city"},
		BackfillKey: true,
	})
	assert.Empty(t, updates)
}

func TestApplyUpdates(t *testing.T) {
	records := []model.BusinessRecord{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	n := ApplyUpdates(records, []model.FieldUpdate{
		{ID: "1", Field: "slug", Value: "a"},
		{ID: "2", Field: "reviews_link", Value: "https://x"},
		{ID: "9", Field: "slug", Value: "ghost"},
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, "a", records[0].Slug)
	assert.Equal(t, "https://x", records[1].Extra["reviews_link"])
}
