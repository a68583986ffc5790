// Package correlate runs normalised cross-correlation of a live waveform
// stream against a fixed template, per channel, and emits local-maxima
// match results to the linker.
package correlate

import (
	"math"
	"time"

	"github.com/quakelink/seisdetect/internal/errors"
)

// Template is the immutable, pre-recorded waveform a processor correlates
// the live stream against.
type Template struct {
	ChannelID         string
	Samples           []float64
	SamplingFrequency float64
	PickTime          time.Time
	StartTime         time.Time
	EndTime           time.Time

	// zeroMean holds Samples with their mean removed, computed once at
	// construction, and norm its L2 norm.
	zeroMean []float64
	norm     float64
}

// NewTemplate validates and constructs a Template. PickTime must fall
// within [StartTime, EndTime].
func NewTemplate(channelID string, samples []float64, samplingFrequency float64, pickTime, startTime, endTime time.Time) (*Template, error) {
	if pickTime.Before(startTime) || pickTime.After(endTime) {
		return nil, errors.Newf("template pick time %v outside [%v, %v]", pickTime, startTime, endTime).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryCorrelation).
			Component(channelID).
			Build()
	}
	if len(samples) == 0 {
		return nil, errors.Newf("template has no samples").
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryCorrelation).
			Component(channelID).
			Build()
	}

	t := &Template{
		ChannelID:         channelID,
		Samples:           samples,
		SamplingFrequency: samplingFrequency,
		PickTime:          pickTime,
		StartTime:         startTime,
		EndTime:           endTime,
	}
	t.zeroMean, t.norm = zeroMeanAndNorm(samples)
	return t, nil
}

// PickOffset is the offset of the pick time from the template's start,
// recomputed by callers on demand (the template may have been resampled).
func (t *Template) PickOffset() time.Duration {
	return t.PickTime.Sub(t.StartTime)
}

func zeroMeanAndNorm(samples []float64) ([]float64, float64) {
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))

	zm := make([]float64, len(samples))
	var sumSq float64
	for i, s := range samples {
		zm[i] = s - mean
		sumSq += zm[i] * zm[i]
	}
	return zm, math.Sqrt(sumSq)
}
