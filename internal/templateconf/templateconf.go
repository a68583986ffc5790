// Package templateconf loads a channel's template waveform definition
// from a JSON file on disk, plus the per-processor knobs (max lag,
// detection threshold) a running detector needs but the core template
// type doesn't own.
package templateconf

import (
	"encoding/json"
	"os"
	"time"

	"github.com/quakelink/seisdetect/internal/correlate"
	"github.com/quakelink/seisdetect/internal/errors"
)

// Spec is the on-disk shape of one channel's template definition.
type Spec struct {
	ChannelID          string    `json:"channelId"`
	Samples            []float64 `json:"samples"`
	SamplingFrequency  float64   `json:"samplingFrequency"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	PickTime           time.Time `json:"pickTime"`
	MaxLagSeconds      float64   `json:"maxLagSeconds"`
	DetectionThreshold *float64  `json:"detectionThreshold,omitempty"`
}

// Load reads and parses a template JSON file, returning both the built
// *correlate.Template and the raw Spec for the processor knobs it carries
// but the Template itself does not.
func Load(path string) (*correlate.Template, Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Spec{}, errors.New(err).
			Category(errors.CategoryConfig).
			Component(path).
			Build()
	}

	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, Spec{}, errors.New(err).
			Category(errors.CategoryConfig).
			Component(path).
			Build()
	}

	tpl, err := correlate.NewTemplate(spec.ChannelID, spec.Samples, spec.SamplingFrequency,
		spec.PickTime, spec.StartTime, spec.EndTime)
	if err != nil {
		return nil, Spec{}, err
	}

	return tpl, spec, nil
}
