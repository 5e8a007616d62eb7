package resolve

import (
	"strings"

	"github.com/sells-group/leadmatch/internal/model"
)

// Candidate is a record with its comparison keys computed once.
type Candidate struct {
	Record         model.BusinessRecord
	Key            string
	NormalizedName string
	City           string
	PhoneTail      string
}

// NewCandidate normalizes r.
func NewCandidate(r model.BusinessRecord) Candidate {
	return Candidate{
		Record:         r,
		Key:            strings.TrimSpace(r.ExternalKey),
		NormalizedName: NormalizeName(r.Name),
		City:           NormalizeCity(r.City),
		PhoneTail:      phoneTail(NormalizePhone(r.Phone)),
	}
}

// Pool is the normalized candidate pool a batch is matched against.
// Records accepted by an exclusive batch are marked consumed and skipped by
// the name tiers; the key tier always sees the whole pool.
type Pool struct {
	candidates []Candidate
	consumed   []bool
}

// NewPool normalizes records into a pool, preserving their order.
func NewPool(records []model.BusinessRecord) *Pool {
	p := &Pool{
		candidates: make([]Candidate, len(records)),
		consumed:   make([]bool, len(records)),
	}
	for i, r := range records {
		p.candidates[i] = NewCandidate(r)
	}
	return p
}

// Len returns the number of candidates.
func (p *Pool) Len() int { return len(p.candidates) }

// At returns the candidate at index i.
func (p *Pool) At(i int) *Candidate { return &p.candidates[i] }

// Consumed reports whether candidate i was taken by an earlier decision.
func (p *Pool) Consumed(i int) bool { return p.consumed[i] }

// Consume marks candidate i as taken.
func (p *Pool) Consume(i int) {
	if i >= 0 && i < len(p.consumed) {
		p.consumed[i] = true
	}
}

// Reset clears all consumption marks.
func (p *Pool) Reset() {
	for i := range p.consumed {
		p.consumed[i] = false
	}
}

// Records returns the pool's records in order.
func (p *Pool) Records() []model.BusinessRecord {
	out := make([]model.BusinessRecord, len(p.candidates))
	for i := range p.candidates {
		out[i] = p.candidates[i].Record
	}
	return out
}
