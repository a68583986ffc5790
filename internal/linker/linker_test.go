package linker

import (
	"testing"
	"time"

	"github.com/quakelink/seisdetect/internal/correlate"
)

func matchResult(channelID string, windowStart time.Time, lagSeconds, coefficient float64) *correlate.MatchResult {
	return &correlate.MatchResult{
		ChannelID: channelID,
		Window:    correlate.Window{Start: windowStart, End: windowStart.Add(10 * time.Second)},
		LocalMaxes: []correlate.LocalMax{
			{LagSeconds: lagSeconds, Coefficient: coefficient},
		},
	}
}

func newTestLinker(t *testing.T, cfg Config, clock Clock) (*Linker, *[]Association) {
	t.Helper()
	var emitted []Association
	l, err := New(cfg, clock, func(a Association) { emitted = append(emitted, a) })
	if err != nil {
		t.Fatalf("unexpected error constructing linker: %v", err)
	}
	return l, &emitted
}

// S2: two channels, consistent offsets.
func TestScenarioS2ConsistentOffsets(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := FixedClock{At: u0}

	cfg := Config{
		OnHold:                 time.Minute,
		ArrivalOffsetThreshold: 1e-3,
		POTEnabled:             true,
		AssociationThreshold:   0.5,
		AssociationThresholdOK: true,
		MinArrivals:            2,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	if err := l.Feed("A", matchResult("A", u0, 0, 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Feed("B", matchResult("B", u0, 0, 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*emitted) != 1 {
		t.Fatalf("expected exactly one association, got %d", len(*emitted))
	}
	if len((*emitted)[0].Results) != 2 {
		t.Errorf("expected |results|=2, got %d", len((*emitted)[0].Results))
	}
}

// S3: two channels, inconsistent offsets -> POT rejection, both discarded
// at expiry with minArrivals=2.
func TestScenarioS3InconsistentOffsetsRejected(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := &steppableClock{at: u0}

	cfg := Config{
		OnHold:                 time.Second,
		ArrivalOffsetThreshold: 1e-3,
		POTEnabled:             true,
		AssociationThreshold:   0.5,
		AssociationThresholdOK: true,
		MinArrivals:            2,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	if err := l.Feed("A", matchResult("A", u0, 0, 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Feed("B", matchResult("B", u0, 0.5, 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*emitted) != 0 {
		t.Fatalf("expected no association before expiry, got %d", len(*emitted))
	}

	clock.at = clock.at.Add(2 * time.Second)
	l.Feed("A", matchResult("A", u0.Add(100*time.Second), 0, 0.9))

	if len(*emitted) != 0 {
		t.Errorf("expected both original candidates discarded (insufficient), got %d emissions", len(*emitted))
	}
}

// S4: same as S3 but minArrivals=1 -> two separate associations at expiry,
// FIFO order.
func TestScenarioS4MinArrivalsOneEmitsBothSeparately(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := &steppableClock{at: u0}

	cfg := Config{
		OnHold:                 time.Second,
		ArrivalOffsetThreshold: 1e-3,
		POTEnabled:             true,
		AssociationThreshold:   0.5,
		AssociationThresholdOK: true,
		MinArrivals:            1,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	l.Feed("A", matchResult("A", u0, 0, 0.9))
	l.Feed("B", matchResult("B", u0, 0.5, 0.9))

	clock.at = clock.at.Add(2 * time.Second)
	l.Feed("A", matchResult("A", u0.Add(100*time.Second), 0, 0.9))

	if len(*emitted) != 2 {
		t.Fatalf("expected two separate associations, got %d", len(*emitted))
	}
	for _, a := range *emitted {
		if len(a.Results) != 1 {
			t.Errorf("expected single-member associations, got %d", len(a.Results))
		}
	}
}

// S5: replacement — higher coefficient at the same window replaces the
// stored value; score updates; the replacement adds no candidate beyond the
// one every accepted result seeds.
func TestScenarioS5Replacement(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := FixedClock{At: u0}

	cfg := Config{
		OnHold:                 time.Minute,
		ArrivalOffsetThreshold: 1e-3,
		POTEnabled:             true,
		AssociationThreshold:   0.5,
		AssociationThresholdOK: true,
		MinArrivals:            2,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	l.Feed("B", matchResult("B", u0, 0, 0.6))
	if l.queue.len() != 1 {
		t.Fatalf("expected one seeded candidate, got %d", l.queue.len())
	}

	l.Feed("B", matchResult("B", u0, 0, 0.8))
	// The second feed should replace B's entry in the existing candidate
	// (since it doesn't yet have processorCount members) and also seed a
	// fresh candidate per the "always seed a new candidate" rule; the
	// higher coefficient must be reflected in at least one candidate.
	found := false
	for _, c := range l.queue.items {
		if r, ok := c.results["B"]; ok && r.Coefficient() == 0.8 {
			found = true
		}
	}
	if !found {
		t.Error("expected the higher coefficient 0.8 to be reflected in the queue")
	}

	if err := l.Feed("A", matchResult("A", u0, 0, 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*emitted) == 0 {
		t.Fatal("expected at least one association once A arrives")
	}
	if (*emitted)[0].Results["B"].Coefficient() != 0.8 {
		t.Errorf("expected emitted association to carry the replaced coefficient 0.8, got %v", (*emitted)[0].Results["B"].Coefficient())
	}
}

// S6: flush emits a partial candidate when associationThreshold is null
// and minArrivals=1.
func TestScenarioS6Flush(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := FixedClock{At: u0}

	cfg := Config{
		OnHold:                 time.Minute,
		POTEnabled:             true,
		ArrivalOffsetThreshold: 1e-3,
		AssociationThresholdOK: false,
		MinArrivals:            1,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	if err := l.Feed("A", matchResult("A", u0, 0, 0.3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*emitted) != 0 {
		t.Fatalf("expected no emission before flush, got %d", len(*emitted))
	}

	l.Flush()
	if len(*emitted) != 1 {
		t.Fatalf("expected flush to emit the partial candidate, got %d", len(*emitted))
	}
}

// Invariant 7: expiry correctness.
func TestExpiryCorrectness(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := &steppableClock{at: u0}

	cfg := Config{
		OnHold:                 time.Second,
		POTEnabled:             true,
		ArrivalOffsetThreshold: 1e-3,
		AssociationThresholdOK: false,
		MinArrivals:            2,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	l.Feed("A", matchResult("A", u0, 0, 0.3))

	clock.at = clock.at.Add(2 * time.Second)
	l.Feed("B", matchResult("B", u0.Add(100*time.Second), 2, 0.3))

	for _, a := range *emitted {
		if len(a.Results) < 2 {
			t.Errorf("expected no sub-minArrivals emission, got one with %d results", len(a.Results))
		}
	}
}

// Invariant 8: POT gating at the tightest tolerance New accepts (the 2e-6
// floor; New rejects 0 when POT is enabled). Exact zero-tolerance gating is
// covered by the pot package's own tests.
func TestPOTGatingZeroTolerance(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := FixedClock{At: u0}

	cfg := Config{
		OnHold:                 time.Minute,
		POTEnabled:             true,
		ArrivalOffsetThreshold: 2e-6,
		AssociationThresholdOK: false,
		MinArrivals:            2,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)

	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	l.Feed("A", matchResult("A", u0, 0, 0.9))
	l.Feed("B", matchResult("B", u0, 0.001, 0.9))

	for _, a := range *emitted {
		if len(a.Results) == 2 {
			t.Error("expected pick-offset mismatch to prevent co-association")
		}
	}
}

// Invariant 9: reset then flush emits nothing.
func TestResetThenFlushEmitsNothing(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	u0 := time.Unix(1700001000, 0)
	clock := FixedClock{At: u0}

	cfg := Config{
		OnHold:                 time.Minute,
		POTEnabled:             true,
		ArrivalOffsetThreshold: 1e-3,
		AssociationThresholdOK: false,
		MinArrivals:            1,
		Strategy:               StrategyThreshold,
	}
	l, emitted := newTestLinker(t, cfg, clock)
	l.Add("A", t0, t0)
	l.Add("B", t0.Add(2*time.Second), t0)

	l.Feed("A", matchResult("A", u0, 0, 0.3))
	l.Reset()
	l.Flush()

	if len(*emitted) != 0 {
		t.Errorf("expected reset+flush to emit nothing, got %d", len(*emitted))
	}
}

func TestConfigRejectedBelowFloor(t *testing.T) {
	t.Parallel()

	_, err := New(Config{POTEnabled: true, ArrivalOffsetThreshold: 1e-9}, RealClock{}, nil)
	if err == nil {
		t.Fatal("expected ConfigRejected error for threshold below floor")
	}
}

// steppableClock lets tests advance time between Feed calls.
type steppableClock struct {
	at time.Time
}

func (c *steppableClock) Now() time.Time { return c.at }
