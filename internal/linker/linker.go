// Package linker fuses per-channel correlation match results into
// multi-channel event candidates, gated by pick-offset consistency, and
// emits Associations as candidates complete or expire.
package linker

import (
	"math"
	"time"

	"github.com/quakelink/seisdetect/internal/correlate"
	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/metrics"
	"github.com/quakelink/seisdetect/internal/pot"
)

// Association is one emitted, consistent multi-channel match.
type Association struct {
	Score   float64
	Results map[string]*TemplateResult
}

// Config holds the Linker's scalar thresholds.
type Config struct {
	OnHold                 time.Duration
	ArrivalOffsetThreshold float64 // seconds; only meaningful if POTEnabled
	POTEnabled             bool
	AssociationThreshold   float64 // only meaningful if AssociationThresholdOK
	AssociationThresholdOK bool
	MinArrivals            int // <= 0 means "processorCount"
	Strategy               MergingStrategy
	Metrics                *metrics.DetectorMetrics
}

// registration is one processor's entry in the Linker's roster.
type registration struct {
	arrivalPickTime time.Time // template.PickTime for this processor
	templateStart   time.Time
}

// Linker is the multi-channel fusion state machine: it consumes per-
// channel match results, gates them for pick-offset consistency, and
// emits Associations as candidates complete or expire. It is not safe
// for concurrent use; callers serialise per-detector calls.
type Linker struct {
	cfg   Config
	clock Clock

	registrations map[string]registration
	potValid      bool
	pot           *pot.Table

	queue  queue
	onEmit func(Association)
}

// New creates a Linker. onEmit is invoked synchronously for every
// Association produced by feed/flush, in queue FIFO order.
func New(cfg Config, clock Clock, onEmit func(Association)) (*Linker, error) {
	if !cfg.POTEnabled {
		// null disables the check entirely; no floor applies.
	} else if cfg.ArrivalOffsetThreshold < 2e-6 {
		return nil, errors.Newf("arrivalOffsetThreshold %v below floor 2e-6", cfg.ArrivalOffsetThreshold).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryLinker).
			Build()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Linker{
		cfg:           cfg,
		clock:         clock,
		registrations: make(map[string]registration),
		onEmit:        onEmit,
	}, nil
}

// Add registers a processor. A no-op if processorID is already
// registered. Invalidates the POT.
func (l *Linker) Add(processorID string, templatePickTime, templateStart time.Time) {
	if _, ok := l.registrations[processorID]; ok {
		return
	}
	l.registrations[processorID] = registration{
		arrivalPickTime: templatePickTime,
		templateStart:   templateStart,
	}
	l.potValid = false
}

// Remove deregisters a processor. Invalidates the POT; leaves the
// candidate queue untouched (existing candidates may still reference it).
func (l *Linker) Remove(processorID string) {
	if _, ok := l.registrations[processorID]; !ok {
		return
	}
	delete(l.registrations, processorID)
	l.potValid = false
}

// ProcessorCount returns the number of currently registered processors.
func (l *Linker) ProcessorCount() int {
	return len(l.registrations)
}

// Feed converts each LocalMax in matchResult to a TemplateResult, applies
// the merging predicate, and — for accepted results — runs process. now is
// captured once per Feed call, not once per local max, so a single feed
// observes one consistent timestamp across every candidate transition it
// triggers.
func (l *Linker) Feed(processorID string, matchResult *correlate.MatchResult) error {
	reg, ok := l.registrations[processorID]
	if !ok {
		return errors.Newf("processor %s is not registered", processorID).
			Category(errors.CategoryLinker).
			Component(processorID).
			Build()
	}

	now := l.clock.Now()
	pickOffset := reg.arrivalPickTime.Sub(reg.templateStart)

	for idx, lm := range matchResult.LocalMaxes {
		if math.IsNaN(lm.Coefficient) {
			continue
		}

		pickTime := matchResult.Window.Start.
			Add(time.Duration(lm.LagSeconds * float64(time.Second))).
			Add(pickOffset)

		result := &TemplateResult{
			ProcessorID: processorID,
			Pick:        Pick{Time: pickTime},
			LocalMaxIdx: idx,
			Match:       matchResult,
		}

		if !l.cfg.Strategy.accepts(lm.Coefficient, l.cfg.AssociationThreshold, l.cfg.AssociationThresholdOK) {
			continue
		}

		l.process(processorID, result, now)
	}

	return nil
}

// process folds one accepted TemplateResult into the candidate queue: it
// merges it into every queued candidate that accepts it and stays
// pick-offset consistent, always seeds a new candidate with it, and emits
// an Association once enough channels agree.
func (l *Linker) process(processorID string, result *TemplateResult, now time.Time) {
	if !l.potValid {
		l.rebuildPOT()
	}

	processorCount := l.ProcessorCount()

	for _, candidate := range l.queue.items {
		if candidate.Len() >= processorCount {
			continue
		}
		if !candidate.accepts(processorID, result) {
			continue
		}

		projectionIDs := append(candidate.processorIDs(), processorID)
		projection := l.pot.NewProjection(projectionIDs)

		observed := candidate.observedPickTimes()
		observed[processorID] = float64(result.Pick.Time.UnixNano()) / 1e9

		if !projection.Validate(observed, l.cfg.ArrivalOffsetThreshold, !l.cfg.POTEnabled) {
			continue
		}

		candidate.merge(processorID, result)
	}

	expiresAt := now.Add(l.cfg.OnHold)
	l.queue.append(newCandidate(processorID, result, expiresAt))
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.RecordCandidateCreated()
	}

	l.sweep(now, processorCount)
}

// sweep walks the queue in FIFO order, emitting complete or
// expired-and-sufficient candidates and discarding expired-and-insufficient
// ones.
func (l *Linker) sweep(now time.Time, processorCount int) {
	minArrivals := l.cfg.MinArrivals
	if minArrivals <= 0 {
		minArrivals = processorCount
	}

	i := 0
	for i < l.queue.len() {
		c := l.queue.items[i]

		switch {
		case c.Len() == processorCount:
			if l.meetsAssociationThreshold(c.Score()) {
				l.emit(c)
			}
			l.queue.removeAt(i)
		case now.After(c.ExpiresAt()) || now.Equal(c.ExpiresAt()):
			if c.Len() >= minArrivals && l.meetsAssociationThreshold(c.Score()) {
				l.emit(c)
			} else if l.cfg.Metrics != nil {
				l.cfg.Metrics.RecordCandidateExpired()
			}
			l.queue.removeAt(i)
		default:
			i++
		}
	}

	if l.cfg.Metrics != nil {
		l.cfg.Metrics.SetCandidateQueueLength(l.queue.len())
	}
}

func (l *Linker) meetsAssociationThreshold(score float64) bool {
	if !l.cfg.AssociationThresholdOK {
		return true
	}
	return score >= l.cfg.AssociationThreshold
}

func (l *Linker) emit(c *Candidate) {
	if l.onEmit != nil {
		l.onEmit(Association{Score: c.Score(), Results: c.Results()})
	}
}

// Flush drains the queue, emitting every candidate whose member count is
// at least minArrivals and whose score meets the association threshold.
func (l *Linker) Flush() {
	processorCount := l.ProcessorCount()
	minArrivals := l.cfg.MinArrivals
	if minArrivals <= 0 {
		minArrivals = processorCount
	}

	for _, c := range l.queue.items {
		if c.Len() >= minArrivals && l.meetsAssociationThreshold(c.Score()) {
			l.emit(c)
		}
	}
	l.queue.reset()
}

// Reset clears the candidate queue. Registrations and the POT are left
// intact, but the POT is marked invalid so it is rebuilt from current
// registrations on next use.
func (l *Linker) Reset() {
	l.queue.reset()
	l.potValid = false
}

func (l *Linker) rebuildPOT() {
	ids := make([]string, 0, len(l.registrations))
	pickTime := make(map[string]float64, len(l.registrations))
	for id, reg := range l.registrations {
		ids = append(ids, id)
		pickTime[id] = float64(reg.arrivalPickTime.UnixNano()) / 1e9
	}
	l.pot = pot.Build(ids, pickTime)
	l.potValid = true
}
