package templateconf

import (
	"os"
	"testing"
)

const sampleSpec = `{
	"channelId": "NN.STA..BHZ",
	"samples": [1, -1, 1, -1],
	"samplingFrequency": 1,
	"startTime": "2023-01-01T00:00:00Z",
	"endTime": "2023-01-01T00:00:04Z",
	"pickTime": "2023-01-01T00:00:01Z",
	"maxLagSeconds": 2,
	"detectionThreshold": 0.8
}`

func TestLoadParsesTemplateAndKnobs(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "template-*.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(sampleSpec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tpl, spec, err := Load(f.Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.ChannelID != "NN.STA..BHZ" {
		t.Errorf("unexpected channel id: %s", tpl.ChannelID)
	}
	if spec.MaxLagSeconds != 2 {
		t.Errorf("expected maxLagSeconds 2, got %v", spec.MaxLagSeconds)
	}
	if spec.DetectionThreshold == nil || *spec.DetectionThreshold != 0.8 {
		t.Errorf("expected detectionThreshold 0.8, got %v", spec.DetectionThreshold)
	}
}

func TestLoadRejectsInvalidTemplate(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "template-*.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	// pickTime outside [startTime, endTime]
	if _, err := f.WriteString(`{
		"channelId": "NN.STA..BHZ",
		"samples": [1, -1],
		"samplingFrequency": 1,
		"startTime": "2023-01-01T00:00:00Z",
		"endTime": "2023-01-01T00:00:02Z",
		"pickTime": "2023-01-01T00:05:00Z"
	}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := Load(f.Name()); err == nil {
		t.Fatal("expected an error for pick time outside template span")
	}
}
