package waveform

import (
	"testing"
	"time"

	"github.com/quakelink/seisdetect/internal/errors"
)

func epoch(seconds float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(seconds * float64(time.Second)))
}

func TestFillContiguous(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 1.0, 1000, nil)

	if err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 10, Samples: make([]float64, 10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Fill(Record{Start: epoch(1), End: epoch(2), SamplingFrequency: 10, Samples: make([]float64, 10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(b.Samples()); got != 20 {
		t.Errorf("expected 20 contiguous samples, got %d", got)
	}
}

func TestFillInterpolatesSmallGap(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 1.0, 1000, nil)

	first := make([]float64, 10)
	for i := range first {
		first[i] = 1.0
	}
	if err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 10, Samples: first}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := make([]float64, 10)
	for i := range second {
		second[i] = 2.0
	}
	// gap of 0.5s starting right after the first record's end at t=1.0
	if err := b.Fill(Record{Start: epoch(1.5), End: epoch(2.5), SamplingFrequency: 10, Samples: second}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples := b.Samples()
	if len(samples) <= 20 {
		t.Fatalf("expected interpolated filler samples appended, got %d total samples", len(samples))
	}
	// filler should lie strictly between 1.0 and 2.0
	filler := samples[10]
	if filler <= 1.0 || filler >= 2.0 {
		t.Errorf("expected interpolated value strictly between 1.0 and 2.0, got %v", filler)
	}
}

func TestFillGapTooLargeResetsStream(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 0.1, 1000, nil)

	if err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 10, Samples: make([]float64, 10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := b.Fill(Record{Start: epoch(5), End: epoch(6), SamplingFrequency: 10, Samples: make([]float64, 10)})
	if err == nil {
		t.Fatal("expected GapTooLarge error")
	}
	if !errors.IsKind(err, errors.KindGapTooLarge) {
		t.Errorf("expected KindGapTooLarge, got %v", err)
	}
	if len(b.Samples()) != 0 {
		t.Errorf("expected stream reset after gap-too-large, got %d leftover samples", len(b.Samples()))
	}
}

func TestFillIncompatibleSamplingFrequency(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 1.0, 1000, nil)

	err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 20, Samples: make([]float64, 20)})
	if !errors.IsKind(err, errors.KindIncompatibleSamplingFreq) {
		t.Errorf("expected KindIncompatibleSamplingFreq, got %v", err)
	}
}

func TestFillSaturatedSample(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 1.0, 1.0, nil)
	samples := make([]float64, 10)
	samples[3] = 1.5

	err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 10, Samples: samples})
	if !errors.IsKind(err, errors.KindSaturated) {
		t.Errorf("expected KindSaturated, got %v", err)
	}
}

func TestAdvanceTrimsLeadingSamples(t *testing.T) {
	t.Parallel()

	b := NewBuffer("NN.STA..BHZ", 10, 1.0, 1000, nil)
	if err := b.Fill(Record{Start: epoch(0), End: epoch(1), SamplingFrequency: 10, Samples: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Advance(4)
	got := b.Samples()
	if len(got) != 6 || got[0] != 4 {
		t.Errorf("expected remaining samples starting at 4, got %v", got)
	}
}
