package resolve

import (
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
)

// MergeOptions controls which fields a merge copies from matched pool
// records onto their source records.
type MergeOptions struct {
	// Carry lists the pool columns copied onto the source (e.g. reviews_link).
	Carry []string `yaml:"carry" mapstructure:"carry"`
	// OverwriteTiers lists the tiers allowed to replace a non-empty source
	// value. Nil means DefaultOverwriteTiers. Empty values are always filled.
	OverwriteTiers []model.MatchTier `yaml:"overwrite_tiers" mapstructure:"overwrite_tiers"`
	// OverwriteConfidence is the minimum decision confidence allowed to
	// replace a non-empty source value, on top of the tier gate.
	OverwriteConfidence float64 `yaml:"overwrite_confidence" mapstructure:"overwrite_confidence"`
	// BackfillKey copies the pool's external key onto sources lacking one.
	BackfillKey bool `yaml:"backfill_key" mapstructure:"backfill_key"`
}

// DefaultOverwriteTiers are the tiers trusted to replace existing values.
// Fuzzy confidence includes bonuses and can exceed 1.0, so fuzzy matches
// only fill empty fields.
var DefaultOverwriteTiers = []model.MatchTier{model.TierKey, model.TierExactName}

// PlanMerge turns decisions into field updates keyed by the source record
// id. Sources without an id and unmatched decisions produce nothing. A
// field is only written when the pool value is non-empty and differs from
// the current source value.
func PlanMerge(decisions []model.Decision, opts MergeOptions) []model.FieldUpdate {
	overwriteTiers := opts.OverwriteTiers
	if overwriteTiers == nil {
		overwriteTiers = DefaultOverwriteTiers
	}
	var updates []model.FieldUpdate
	for _, d := range decisions {
		if !d.Matched() || d.Source.ID == "" {
			continue
		}
		for _, field := range opts.Carry {
			if u, ok := planField(d, field, overwriteTiers, opts.OverwriteConfidence); ok {
				updates = append(updates, u)
			}
		}
		if opts.BackfillKey && d.Source.ExternalKey == "" && d.Match.ExternalKey != "" {
			updates = append(updates, model.FieldUpdate{
				ID:    d.Source.ID,
				Field: model.FieldExternalKey,
				Value: d.Match.ExternalKey,
			})
		}
	}
	return updates
}

func planField(d model.Decision, field string, overwriteTiers []model.MatchTier, overwriteConfidence float64) (model.FieldUpdate, bool) {
	value := d.Match.Get(field)
	if value == "" {
		return model.FieldUpdate{}, false
	}
	current := d.Source.Get(field)
	if current == value {
		return model.FieldUpdate{}, false
	}
	if current != "" && (!slices.Contains(overwriteTiers, d.Tier) || d.Confidence < overwriteConfidence) {
		zap.L().Debug("merge: keeping existing value",
			zap.String("id", d.Source.ID),
			zap.String("field", field),
			zap.String("tier", string(d.Tier)),
			zap.Float64("confidence", d.Confidence),
		)
		return model.FieldUpdate{}, false
	}
	return model.FieldUpdate{ID: d.Source.ID, Field: field, Value: value}, true
}

// ApplyUpdates writes updates into records in memory, matching on id.
// It returns the number of updates applied.
func ApplyUpdates(records []model.BusinessRecord, updates []model.FieldUpdate) int {
	byID := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID != "" {
			byID[r.ID] = i
		}
	}
	applied := 0
	for _, u := range updates {
		i, ok := byID[u.ID]
		if !ok {
			continue
		}
		records[i].Set(u.Field, u.Value)
		applied++
	}
	return applied
}
