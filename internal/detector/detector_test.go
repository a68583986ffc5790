package detector

import (
	"testing"
	"time"

	"github.com/quakelink/seisdetect/internal/correlate"
	"github.com/quakelink/seisdetect/internal/linker"
	"github.com/quakelink/seisdetect/internal/waveform"
)

func mustTemplate(t *testing.T, channelID string, samples []float64, start, pick time.Time) *correlate.Template {
	t.Helper()
	end := start.Add(time.Duration(len(samples)) * time.Second)
	tpl, err := correlate.NewTemplate(channelID, samples, 1.0, pick, start, end)
	if err != nil {
		t.Fatalf("unexpected error building template %s: %v", channelID, err)
	}
	return tpl
}

func feedSamples(t *testing.T, d *Detector, channelID string, samples []float64, start time.Time) {
	t.Helper()
	for i, s := range samples {
		sampleStart := start.Add(time.Duration(i) * time.Second)
		if err := d.Feed(channelID, waveform.Record{
			Start:             sampleStart,
			End:               sampleStart.Add(time.Second),
			SamplingFrequency: 1.0,
			Samples:           []float64{s},
		}); err != nil {
			t.Fatalf("unexpected error feeding %s at sample %d: %v", channelID, i, err)
		}
	}
}

// S1: single channel, exact match.
func TestScenarioS1SingleChannelExactMatch(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	var detections []Detection

	cfg := Config{
		GapTolerance:        0.5,
		SaturationThreshold: 10,
		Linker: linker.Config{
			OnHold:                 time.Minute,
			AssociationThreshold:   0.99,
			AssociationThresholdOK: true,
			MinArrivals:            1,
			Strategy:               linker.StrategyThreshold,
		},
	}
	d, err := New(cfg, func(det Detection) { detections = append(detections, det) })
	if err != nil {
		t.Fatalf("unexpected error constructing detector: %v", err)
	}

	tpl := mustTemplate(t, "NN.STA..BHZ", []float64{1, -1, 1, -1}, t0, t0.Add(time.Second))
	d.AddChannel(tpl, nil, 2, 0, false)

	feedSamples(t, d, "NN.STA..BHZ", []float64{0, 1, -1, 1, -1, 0}, t0)

	if len(detections) != 1 {
		t.Fatalf("expected exactly one detection, got %d", len(detections))
	}
	det := detections[0]
	if det.Fit < 0.99 {
		t.Errorf("expected score >= 0.99, got %v", det.Fit)
	}
	// The template (4 samples, pick 1s into it) matches the fed stream
	// starting at lag 1s into the analysis window, which itself starts at
	// t0; the absolute pick is windowStart + lag + pickOffset = t0 + 2s.
	// det.Time is the origin time: that pick minus pickOffset, t0 + 1s.
	want := t0.Add(1 * time.Second)
	if diff := det.Time.Sub(want); diff < -time.Second || diff > time.Second {
		t.Errorf("expected detection origin time near %v +- 1 sample, got %v", want, det.Time)
	}
}

// S7: three channels across two stations associate; station counts
// deduplicate from channel counts.
func TestScenarioS7MultiStationMagnitude(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	var detections []Detection

	cfg := Config{
		GapTolerance:        0.5,
		SaturationThreshold: 10,
		Linker: linker.Config{
			OnHold:                 time.Minute,
			MinArrivals:            3,
			AssociationThresholdOK: false,
			Strategy:               linker.StrategyThreshold,
		},
		AmplitudeHook: func(r *linker.TemplateResult) (Amplitude, error) {
			return Amplitude{ChannelID: r.ProcessorID, Value: 1.0}, nil
		},
		MagnitudeEstimator: func(amps []Amplitude) MagnitudeResult {
			return MagnitudeResult{Magnitude: 2.5}
		},
	}
	d, err := New(cfg, func(det Detection) { detections = append(detections, det) })
	if err != nil {
		t.Fatalf("unexpected error constructing detector: %v", err)
	}

	channels := []string{"NN.AAA..BHZ", "NN.AAA..BHN", "NN.BBB..BHZ"}
	for _, ch := range channels {
		tpl := mustTemplate(t, ch, []float64{1, -1, 1, -1}, t0, t0.Add(time.Second))
		d.AddChannel(tpl, nil, 0, 0, false)
	}

	for _, ch := range channels {
		feedSamples(t, d, ch, []float64{1, -1, 1, -1}, t0)
	}

	if len(detections) != 1 {
		t.Fatalf("expected exactly one detection, got %d", len(detections))
	}
	det := detections[0]
	if det.NumChannelsAssociated != 3 {
		t.Errorf("expected 3 associated channels, got %d", det.NumChannelsAssociated)
	}
	if det.NumChannelsUsed != 3 {
		t.Errorf("expected 3 used channels, got %d", det.NumChannelsUsed)
	}
	if det.NumStationsAssociated != 2 {
		t.Errorf("expected 2 associated stations, got %d", det.NumStationsAssociated)
	}
	if det.NumStationsUsed != 2 {
		t.Errorf("expected 2 used stations, got %d", det.NumStationsUsed)
	}
	if !det.HasMagnitude || det.Magnitude != 2.5 {
		t.Errorf("expected magnitude 2.5, got %v (valid=%v)", det.Magnitude, det.HasMagnitude)
	}
}

func TestStationSplitsChannelID(t *testing.T) {
	t.Parallel()

	if got := Station("NN.STA..BHZ"); got != "NN.STA." {
		t.Errorf("expected station prefix 'NN.STA.', got %q", got)
	}
}

func TestChannelRemovedOnIncompatibleSamplingFreq(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1700000000, 0)
	cfg := Config{GapTolerance: 0.5, SaturationThreshold: 10}
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error constructing detector: %v", err)
	}

	tpl := mustTemplate(t, "NN.STA..BHZ", []float64{1, -1, 1, -1}, t0, t0.Add(time.Second))
	d.AddChannel(tpl, nil, 2, 0, false)

	err = d.Feed("NN.STA..BHZ", waveform.Record{
		Start:             t0,
		End:               t0.Add(time.Second),
		SamplingFrequency: 2.0,
		Samples:           []float64{0, 0},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if d.ChannelCount() != 0 {
		t.Errorf("expected channel to be removed after IncompatibleSamplingFreq, got %d channels", d.ChannelCount())
	}
}
