package waveform

import (
	"testing"

	"github.com/quakelink/seisdetect/internal/waveform/iirfilter"
)

func TestFilterInitialisedAfterWarmup(t *testing.T) {
	t.Parallel()

	chain := iirfilter.NewFilterChain()
	f := NewFilter(chain, 20)

	if f.Initialised() {
		t.Fatal("expected filter not initialised before any samples")
	}

	f.Apply(make([]float64, 10))
	if f.Initialised() {
		t.Error("expected filter still warming up after 10/20 samples")
	}

	f.Apply(make([]float64, 10))
	if !f.Initialised() {
		t.Error("expected filter initialised after 20/20 samples")
	}
}

func TestFilterAppliesChainInPlace(t *testing.T) {
	t.Parallel()

	chain := iirfilter.NewFilterChain()
	hp, err := iirfilter.NewHighPass(100, 1.0, 0.707, 1)
	if err != nil {
		t.Fatalf("unexpected error constructing filter: %v", err)
	}
	if err := chain.AddFilter(hp); err != nil {
		t.Fatalf("unexpected error adding filter: %v", err)
	}
	f := NewFilter(chain, 0)

	samples := []float64{1, 0, -1, 0, 1, 0, -1, 0}
	before := append([]float64(nil), samples...)
	f.Apply(samples)

	identical := true
	for i := range samples {
		if samples[i] != before[i] {
			identical = false
		}
	}
	if identical {
		t.Error("expected high-pass filter to alter the sample values")
	}
}
