// Package slug assigns unique, URL-safe slugs to business records.
//
// Uniqueness is case-insensitive: "Acme" and "acme" collide. Records are
// processed in the order given and the first record holding a slug keeps it;
// which record keeps a contested slug depends only on iteration order.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadmatch/internal/model"
)

// ErrSlugCollisionExhausted is returned when no free slug is found within
// the configured number of suffix attempts.
var ErrSlugCollisionExhausted = eris.New("slug: collision suffixes exhausted")

// Config configures slug assignment.
type Config struct {
	PlaceholderBase string `yaml:"placeholder_base" mapstructure:"placeholder_base"`
	MaxAttempts     int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// DefaultConfig returns the default placeholder and attempt cap.
func DefaultConfig() Config {
	return Config{PlaceholderBase: "business", MaxAttempts: 10000}
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a URL-safe slug from a display name: lower-cased, accents
// folded, non-word characters other than spaces and hyphens removed,
// whitespace runs turned into single hyphens.
func Slugify(name string) string {
	s, _, err := transform.String(foldAccents, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		s = strings.ToLower(strings.TrimSpace(name))
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) || r == '_':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	return b.String()
}

// Seen is the set of slugs already taken, keyed case-insensitively.
type Seen map[string]struct{}

// NewSeen builds a seen-set from existing slugs, e.g. those committed by an
// earlier batch.
func NewSeen(slugs ...string) Seen {
	s := make(Seen, len(slugs))
	for _, v := range slugs {
		s.Add(v)
	}
	return s
}

// Has reports whether slug is taken.
func (s Seen) Has(slug string) bool {
	_, ok := s[fold(slug)]
	return ok
}

// Add marks slug as taken. Empty slugs are ignored.
func (s Seen) Add(slug string) {
	if slug == "" {
		return
	}
	s[fold(slug)] = struct{}{}
}

func fold(slug string) string { return strings.ToLower(slug) }

// Change records a slug assigned to a record.
type Change struct {
	Index int    `json:"index" yaml:"index"`
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
}

// Assigner assigns unique slugs.
type Assigner struct {
	cfg Config
}

// NewAssigner creates an Assigner, filling zero config values with defaults.
func NewAssigner(cfg Config) *Assigner {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.PlaceholderBase) == "" {
		cfg.PlaceholderBase = def.PlaceholderBase
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Assigner{cfg: cfg}
}

// Assign walks records in order and rewrites the slug of every record whose
// slug is empty or already taken. seen is updated in place; pass nil to
// start empty. Records that keep their slug are not reported as changes.
//
// Every existing slug is reserved for its first holder before any slug is
// generated, so a generated candidate never takes a slug a later record
// already holds uniquely.
//
// For a record needing a slug the candidates are, in order: base-<state or
// city>, then numeric suffixes on that candidate (on the base itself when
// the record has no state or city). The base is the record's slugified
// slug, else its slugified name, else the placeholder.
func (a *Assigner) Assign(records []model.BusinessRecord, seen Seen) ([]Change, error) {
	if seen == nil {
		seen = NewSeen()
	}

	owner := make(map[string]int, len(records))
	for i, r := range records {
		if r.Slug == "" {
			continue
		}
		if _, ok := owner[fold(r.Slug)]; !ok {
			owner[fold(r.Slug)] = i
		}
	}
	taken := func(candidate string) bool {
		if seen.Has(candidate) {
			return true
		}
		_, reserved := owner[fold(candidate)]
		return reserved
	}

	var changes []Change
	for i := range records {
		r := &records[i]
		if r.Slug != "" && owner[fold(r.Slug)] == i && !seen.Has(r.Slug) {
			seen.Add(r.Slug)
			continue
		}

		next, err := a.pick(*r, taken)
		if err != nil {
			return changes, eris.Wrapf(err, "slug: record %d (id=%q)", i, r.ID)
		}
		seen.Add(next)
		changes = append(changes, Change{Index: i, ID: r.ID, From: r.Slug, To: next})
		r.Slug = next
	}
	return changes, nil
}

func (a *Assigner) pick(r model.BusinessRecord, taken func(string) bool) (string, error) {
	base := Slugify(r.Slug)
	if base == "" {
		base = r.Slug
	}
	if base == "" {
		base = Slugify(r.Name)
	}
	if base == "" {
		base = a.cfg.PlaceholderBase
	}

	attempts := 0
	free := func(candidate string) bool {
		attempts++
		return !taken(candidate)
	}

	stem := base
	if loc := locality(r); loc != "" {
		stem = base + "-" + loc
		if free(stem) {
			return stem, nil
		}
	}

	for n := 1; attempts < a.cfg.MaxAttempts; n++ {
		candidate := stem + "-" + strconv.Itoa(n)
		if free(candidate) {
			return candidate, nil
		}
	}
	return "", eris.Wrapf(ErrSlugCollisionExhausted, "base %q after %d attempts", base, attempts)
}

// locality returns the slugified state, falling back to the city.
func locality(r model.BusinessRecord) string {
	if s := Slugify(r.State); s != "" {
		return s
	}
	return Slugify(r.City)
}

// AssignUniqueSlugs runs a default Assigner over records with an empty
// seen-set.
func AssignUniqueSlugs(records []model.BusinessRecord) ([]Change, error) {
	return NewAssigner(DefaultConfig()).Assign(records, nil)
}

// Duplicates returns the number of records whose slug (case-insensitive)
// was already used by an earlier record, plus records with no slug.
func Duplicates(records []model.BusinessRecord) int {
	seen := NewSeen()
	dups := 0
	for _, r := range records {
		if r.Slug == "" || seen.Has(r.Slug) {
			dups++
			continue
		}
		seen.Add(r.Slug)
	}
	return dups
}
