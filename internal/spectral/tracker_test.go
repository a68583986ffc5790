package spectral

import (
	"math"
	"testing"
)

func TestPeakAmplitudeErrorsBeforeWindowFull(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Record("CH1", make([]float64, WindowSize-1))

	if _, err := tr.PeakAmplitude("CH1"); err == nil {
		t.Fatal("expected an error for a partially filled window")
	}
}

func TestPeakAmplitudeFindsDominantFrequency(t *testing.T) {
	t.Parallel()

	const sampleRate = 100.0
	const signalHz = 10.0

	tr := NewTracker()
	samples := make([]float64, WindowSize)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * signalHz * float64(i) / sampleRate)
	}
	tr.Record("CH1", samples)

	peak, err := tr.PeakAmplitude("CH1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak <= 0 {
		t.Fatalf("expected a positive peak magnitude, got %v", peak)
	}
}

func TestRecordKeepsOnlyMostRecentWindow(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Record("CH1", make([]float64, WindowSize+50))

	tr.mu.Lock()
	got := len(tr.windows["CH1"])
	tr.mu.Unlock()

	if got != WindowSize {
		t.Fatalf("expected window to be capped at %d samples, got %d", WindowSize, got)
	}
}

func TestRecordIgnoresEmptySlice(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Record("CH1", nil)

	if _, err := tr.PeakAmplitude("CH1"); err == nil {
		t.Fatal("expected an error since no samples were ever recorded")
	}
}
