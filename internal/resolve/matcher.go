package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadmatch/internal/model"
)

// Config tunes the fuzzy tier and batch behavior.
type Config struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	CityBonus      float64 `yaml:"city_bonus" mapstructure:"city_bonus"`
	PhoneBonus     float64 `yaml:"phone_bonus" mapstructure:"phone_bonus"`
	Exclusive      bool    `yaml:"exclusive" mapstructure:"exclusive"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the calibration used by the review-link backfills.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold: 0.8,
		CityBonus:      0.2,
		PhoneBonus:     0.3,
		Exclusive:      true,
		Workers:        1,
	}
}

// Matcher runs an ordered tier cascade. It never mutates the pool except
// through Resolve's consumption marks.
type Matcher struct {
	tiers []Tier
	cfg   Config
}

// NewMatcher builds the standard key → exact_name → fuzzy cascade.
func NewMatcher(cfg Config) *Matcher {
	return NewMatcherWithTiers(cfg,
		KeyTier{},
		ExactNameTier{},
		FuzzyTier{
			Threshold:  cfg.FuzzyThreshold,
			CityBonus:  cfg.CityBonus,
			PhoneBonus: cfg.PhoneBonus,
		},
	)
}

// NewMatcherWithTiers builds a matcher over a custom tier order.
func NewMatcherWithTiers(cfg Config, tiers ...Tier) *Matcher {
	return &Matcher{tiers: tiers, cfg: cfg}
}

// Tiers returns the cascade in evaluation order.
func (m *Matcher) Tiers() []Tier { return m.tiers }

// Match resolves src against pool. The first tier that accepts wins; when
// none does the decision has tier none.
func (m *Matcher) Match(src model.BusinessRecord, pool *Pool) model.Decision {
	c := NewCandidate(src)
	return m.match(&c, pool)
}

func (m *Matcher) match(src *Candidate, pool *Pool) model.Decision {
	for _, t := range m.tiers {
		idx, conf, ok := t.Match(src, pool)
		if !ok {
			continue
		}
		matched := pool.At(idx).Record
		return model.Decision{
			Source:     src.Record,
			Match:      &matched,
			PoolIndex:  idx,
			Tier:       t.Name(),
			Confidence: conf,
		}
	}
	return model.NoMatch(src.Record)
}

// Resolve matches sources in order. With Exclusive set, each accepted pool
// record is consumed so later sources cannot take it through a name tier.
func (m *Matcher) Resolve(sources []model.BusinessRecord, pool *Pool) ([]model.Decision, model.TierCounts) {
	decisions := make([]model.Decision, len(sources))
	var counts model.TierCounts
	for i, src := range sources {
		d := m.Match(src, pool)
		if m.cfg.Exclusive && d.Matched() {
			pool.Consume(d.PoolIndex)
		}
		decisions[i] = d
		counts.Add(d)
	}

	zap.L().Info("resolve: batch complete",
		zap.Int("sources", len(sources)),
		zap.Int("pool", pool.Len()),
		zap.Int("key", counts.Key),
		zap.Int("exact_name", counts.ExactName),
		zap.Int("fuzzy", counts.Fuzzy),
		zap.Int("none", counts.None),
	)
	return decisions, counts
}

// MatchParallel matches sources concurrently against a read-only pool.
// Nothing is consumed, so two sources may resolve to the same pool record.
// Decisions come back in source order.
func (m *Matcher) MatchParallel(ctx context.Context, sources []model.BusinessRecord, pool *Pool, workers int) ([]model.Decision, error) {
	if workers < 1 {
		workers = 1
	}
	decisions := make([]model.Decision, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "resolve: match cancelled")
			}
			decisions[i] = m.Match(src, pool)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}
