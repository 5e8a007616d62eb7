package model

// MatchTier names the cascade strategy that produced a decision.
type MatchTier string

// Match tiers in decreasing order of trust.
const (
	TierKey       MatchTier = "key"
	TierExactName MatchTier = "exact_name"
	TierFuzzy     MatchTier = "fuzzy"
	TierNone      MatchTier = "none"
)

// Tiers lists every tier in cascade order, ending with TierNone.
var Tiers = []MatchTier{TierKey, TierExactName, TierFuzzy, TierNone}

// Decision is the read-only outcome of matching one source record against
// a candidate pool.
type Decision struct {
	Source     BusinessRecord  `json:"source" yaml:"source"`
	Match      *BusinessRecord `json:"match,omitempty" yaml:"match,omitempty"`
	PoolIndex  int             `json:"pool_index" yaml:"pool_index"`
	Tier       MatchTier       `json:"tier" yaml:"tier"`
	Confidence float64         `json:"confidence" yaml:"confidence"`
}

// Matched reports whether the decision carries a match.
func (d Decision) Matched() bool {
	return d.Tier != TierNone && d.Match != nil
}

// NoMatch returns the decision for a source record with no acceptable
// candidate.
func NoMatch(src BusinessRecord) Decision {
	return Decision{Source: src, PoolIndex: -1, Tier: TierNone}
}

// TierCounts is the per-tier diagnostic summary of a batch.
type TierCounts struct {
	Key       int `json:"key" yaml:"key"`
	ExactName int `json:"exact_name" yaml:"exact_name"`
	Fuzzy     int `json:"fuzzy" yaml:"fuzzy"`
	None      int `json:"none" yaml:"none"`
}

// Add counts one decision.
func (c *TierCounts) Add(d Decision) {
	switch d.Tier {
	case TierKey:
		c.Key++
	case TierExactName:
		c.ExactName++
	case TierFuzzy:
		c.Fuzzy++
	default:
		c.None++
	}
}

// Matched returns the number of decisions with a match.
func (c TierCounts) Matched() int {
	return c.Key + c.ExactName + c.Fuzzy
}

// Total returns the number of decisions counted.
func (c TierCounts) Total() int {
	return c.Matched() + c.None
}

// CountTiers summarizes decisions.
func CountTiers(decisions []Decision) TierCounts {
	var c TierCounts
	for _, d := range decisions {
		c.Add(d)
	}
	return c
}
