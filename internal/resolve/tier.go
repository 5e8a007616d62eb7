package resolve

import (
	"strings"

	"github.com/sells-group/leadmatch/internal/model"
)

// Tier is one strategy of the matching cascade. Match returns the index of
// the accepted pool candidate and its confidence, or ok=false to fall
// through to the next tier.
type Tier interface {
	Name() model.MatchTier
	Match(src *Candidate, pool *Pool) (idx int, confidence float64, ok bool)
}

// KeyTier accepts the first pool record sharing the source's non-empty
// external key. Consumption is ignored: a shared key is authoritative.
type KeyTier struct{}

// Name implements Tier.
func (KeyTier) Name() model.MatchTier { return model.TierKey }

// Match implements Tier.
func (KeyTier) Match(src *Candidate, pool *Pool) (int, float64, bool) {
	if src.Key == "" {
		return -1, 0, false
	}
	for i := 0; i < pool.Len(); i++ {
		if pool.At(i).Key == src.Key {
			return i, 1.0, true
		}
	}
	return -1, 0, false
}

// ExactNameTier accepts the first unconsumed pool record whose raw name
// equals the source name case-insensitively.
type ExactNameTier struct{}

// Name implements Tier.
func (ExactNameTier) Name() model.MatchTier { return model.TierExactName }

// Match implements Tier.
func (ExactNameTier) Match(src *Candidate, pool *Pool) (int, float64, bool) {
	name := src.Record.Name
	if name == "" {
		return -1, 0, false
	}
	for i := 0; i < pool.Len(); i++ {
		if pool.Consumed(i) {
			continue
		}
		if strings.EqualFold(pool.At(i).Record.Name, name) {
			return i, 1.0, true
		}
	}
	return -1, 0, false
}

// FuzzyTier scores every unconsumed pool record by normalized-name
// similarity plus city and phone bonuses and accepts the best one when its
// score exceeds Threshold. Ties keep the earliest candidate.
type FuzzyTier struct {
	Threshold  float64
	CityBonus  float64
	PhoneBonus float64
}

// Name implements Tier.
func (FuzzyTier) Name() model.MatchTier { return model.TierFuzzy }

// Score returns the composite score of cand against src.
func (t FuzzyTier) Score(src, cand *Candidate) float64 {
	score := Similarity(src.NormalizedName, cand.NormalizedName)
	if src.City != "" && src.City == cand.City {
		score += t.CityBonus
	}
	if src.PhoneTail != "" && src.PhoneTail == cand.PhoneTail {
		score += t.PhoneBonus
	}
	return score
}

// Match implements Tier.
func (t FuzzyTier) Match(src *Candidate, pool *Pool) (int, float64, bool) {
	if src.NormalizedName == "" {
		return -1, 0, false
	}
	best, bestScore := -1, 0.0
	for i := 0; i < pool.Len(); i++ {
		if pool.Consumed(i) {
			continue
		}
		cand := pool.At(i)
		if cand.NormalizedName == "" {
			continue
		}
		if score := t.Score(src, cand); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore <= t.Threshold {
		return -1, 0, false
	}
	return best, bestScore, true
}
