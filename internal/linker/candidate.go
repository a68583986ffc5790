package linker

import (
	"time"

	"github.com/quakelink/seisdetect/internal/correlate"
)

// Pick is the projected absolute arrival time a TemplateResult carries.
type Pick struct {
	Time time.Time
}

// TemplateResult is one processor's contribution to a candidate: an
// arrival projected to absolute time, plus a back-reference to the
// LocalMax (by index, not iterator) and the MatchResult that produced it.
// Holding the MatchResult by pointer keeps it alive for as long as any
// candidate references it (shared immutable ownership).
type TemplateResult struct {
	ProcessorID string
	Pick        Pick
	LocalMaxIdx int
	Match       *correlate.MatchResult
}

// Coefficient returns the coefficient of the referenced LocalMax.
func (tr *TemplateResult) Coefficient() float64 {
	return tr.Match.LocalMaxes[tr.LocalMaxIdx].Coefficient
}

// Candidate is one in-progress association: a growing set of
// per-processor TemplateResults, a running score, and a fixed expiry.
type Candidate struct {
	results   map[string]*TemplateResult
	score     float64
	expiresAt time.Time
}

// newCandidate seeds a candidate with a single contributing result.
func newCandidate(processorID string, result *TemplateResult, expiresAt time.Time) *Candidate {
	c := &Candidate{
		results:   map[string]*TemplateResult{processorID: result},
		expiresAt: expiresAt,
	}
	c.recomputeScore()
	return c
}

// Len returns the number of processors contributing to this candidate.
func (c *Candidate) Len() int {
	return len(c.results)
}

// Score returns the candidate's current mean coefficient.
func (c *Candidate) Score() float64 {
	return c.score
}

// ExpiresAt returns the candidate's fixed expiry instant.
func (c *Candidate) ExpiresAt() time.Time {
	return c.expiresAt
}

// Results returns a snapshot copy of the candidate's processor -> result
// mapping, safe for callers to retain.
func (c *Candidate) Results() map[string]*TemplateResult {
	out := make(map[string]*TemplateResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// processorIDs returns the candidate's current member processor ids, in no
// particular order.
func (c *Candidate) processorIDs() []string {
	ids := make([]string, 0, len(c.results))
	for id := range c.results {
		ids = append(ids, id)
	}
	return ids
}

// observedPickTimes returns processor id -> observed pick time (seconds
// since Unix epoch) for POT validation.
func (c *Candidate) observedPickTimes() map[string]float64 {
	out := make(map[string]float64, len(c.results))
	for id, r := range c.results {
		out[id] = float64(r.Pick.Time.UnixNano()) / 1e9
	}
	return out
}

// accepts reports whether the new result would strictly improve on any
// existing entry for its processor (absent-or-strictly-greater, per the
// tie-break rule that keeps the earlier-inserted value on equality).
func (c *Candidate) accepts(processorID string, result *TemplateResult) bool {
	existing, ok := c.results[processorID]
	if !ok {
		return true
	}
	return result.Coefficient() > existing.Coefficient()
}

// merge inserts or replaces processorID's entry and recomputes the score.
// Callers must have already validated the merge (POT, merging predicate).
func (c *Candidate) merge(processorID string, result *TemplateResult) {
	c.results[processorID] = result
	c.recomputeScore()
}

func (c *Candidate) recomputeScore() {
	if len(c.results) == 0 {
		c.score = 0
		return
	}
	var sum float64
	for _, r := range c.results {
		sum += r.Coefficient()
	}
	c.score = sum / float64(len(c.results))
}

// queue is the ordered (FIFO insertion-order) set of in-flight candidates.
type queue struct {
	items []*Candidate
}

func (q *queue) append(c *Candidate) {
	q.items = append(q.items, c)
}

func (q *queue) removeAt(i int) {
	q.items = append(q.items[:i], q.items[i+1:]...)
}

func (q *queue) len() int {
	return len(q.items)
}

func (q *queue) reset() {
	q.items = nil
}
