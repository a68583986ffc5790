// Package waveform accepts per-channel record fragments, enforces
// contiguity (interpolating across small gaps), and runs them through an
// optional causal filter before the correlator sees them.
package waveform

import (
	"time"

	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/metrics"
)

// Record is one fragment of sampled waveform data for a single channel.
type Record struct {
	Start             time.Time
	End               time.Time
	SamplingFrequency float64
	Samples           []float64
}

// Buffer accepts successive Records for one channel, validates ordering,
// interpolates across gaps no larger than GapTolerance, and exposes the
// concatenated, optionally filtered sample stream to its caller.
//
// Buffer is not safe for concurrent use; the detector drives each
// channel's buffer from the single goroutine that owns that channel.
type Buffer struct {
	channelID           string
	samplingFrequency   float64
	gapTolerance        float64
	saturationThreshold float64
	filter              *Filter

	samples     []float64
	lastEnd     time.Time
	initialized bool

	fillerPool *SamplePool
}

// NewBuffer creates a Buffer for one channel. filter may be nil.
// saturationThreshold is the absolute sample amplitude at or above which a
// record is rejected as clipped; callers feed samples scaled to whatever
// full-scale convention saturationThreshold is expressed in.
func NewBuffer(channelID string, samplingFrequency, gapTolerance, saturationThreshold float64, filter *Filter) *Buffer {
	b := &Buffer{
		channelID:           channelID,
		samplingFrequency:   samplingFrequency,
		gapTolerance:        gapTolerance,
		saturationThreshold: saturationThreshold,
		filter:              filter,
	}

	// The largest gap Fill will ever interpolate across is gapTolerance
	// seconds of samples; size the filler pool for that worst case so
	// every interpolated gap can reuse the same slice.
	maxFillerLen := int(gapTolerance*samplingFrequency) + 1
	if pool, err := NewSamplePool(channelID, maxFillerLen, nil); err == nil {
		b.fillerPool = pool
	}
	return b
}

// SetMetrics attaches a metrics sink to the buffer's filler pool so
// interpolation-path allocations are observable. May be called with nil.
func (b *Buffer) SetMetrics(m *metrics.DetectorMetrics) {
	if b.fillerPool != nil {
		b.fillerPool.metrics = m
	}
}

// Fill appends record to the buffer, interpolating across any gap no
// larger than gapTolerance and filtering the newly appended samples in
// place. It returns a *errors.DetectorError carrying
// errors.KindGapTooLarge, errors.KindSaturated, or
// errors.KindIncompatibleSamplingFreq on failure.
func (b *Buffer) Fill(record Record) error {
	if record.SamplingFrequency != b.samplingFrequency {
		return errors.Newf("record sampling frequency %v does not match channel frequency %v",
			record.SamplingFrequency, b.samplingFrequency).
			Kind(errors.KindIncompatibleSamplingFreq).
			Category(errors.CategoryWaveform).
			Component(b.channelID).
			Build()
	}

	if b.initialized {
		gap := record.Start.Sub(b.lastEnd).Seconds()
		sampleSpacing := 1.0 / b.samplingFrequency
		if gap > 0.5*sampleSpacing {
			if gap > b.gapTolerance {
				b.reset()
				return errors.Newf("gap of %v seconds exceeds tolerance %v", gap, b.gapTolerance).
					Kind(errors.KindGapTooLarge).
					Category(errors.CategoryWaveform).
					Component(b.channelID).
					Context("gapSeconds", gap).
					Build()
			}
			b.appendInterpolated(gap, record.Samples)
		}
	}

	for _, s := range record.Samples {
		if b.saturated(s) {
			return errors.Newf("record saturated at or above threshold").
				Kind(errors.KindSaturated).
				Category(errors.CategoryWaveform).
				Component(b.channelID).
				Build()
		}
	}

	start := len(b.samples)
	b.samples = append(b.samples, record.Samples...)
	b.lastEnd = record.End
	b.initialized = true

	if b.filter != nil {
		b.filter.Apply(b.samples[start:])
	}

	return nil
}

// appendInterpolated linearly interpolates the gap between the last
// recorded sample and the first sample of next, appending the filler
// samples (but not next's own samples) to b.samples.
func (b *Buffer) appendInterpolated(gapSeconds float64, next []float64) {
	if len(b.samples) == 0 || len(next) == 0 {
		return
	}
	missing := int(gapSeconds * b.samplingFrequency)
	if missing <= 0 {
		return
	}
	last := b.samples[len(b.samples)-1]
	first := next[0]

	var filler []float64
	if b.fillerPool != nil && missing <= b.fillerPool.Size() {
		buf := b.fillerPool.Get()
		filler = buf[:missing]
		defer b.fillerPool.Put(buf)
	} else {
		filler = make([]float64, missing)
	}

	for i := range filler {
		frac := float64(i+1) / float64(missing+1)
		filler[i] = last + (first-last)*frac
	}
	b.samples = append(b.samples, filler...)
}

// saturated reports whether a single sample is at or beyond the buffer's
// configured saturation threshold.
func (b *Buffer) saturated(sample float64) bool {
	return sample >= b.saturationThreshold || sample <= -b.saturationThreshold
}

func (b *Buffer) reset() {
	b.samples = nil
	b.initialized = false
}

// Samples returns the current contiguous sample buffer. The returned
// slice is owned by Buffer and must not be retained past the next Fill.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Initialised reports whether the channel's filter (if any) has finished
// its warm-up. A channel with no filter is initialised immediately.
func (b *Buffer) Initialised() bool {
	if b.filter == nil {
		return true
	}
	return b.filter.Initialised()
}

// Advance discards the first n samples, e.g. after the correlator has
// consumed a window and moved its cursor forward.
func (b *Buffer) Advance(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.samples) {
		b.samples = b.samples[:0]
		return
	}
	copy(b.samples, b.samples[n:])
	b.samples = b.samples[:len(b.samples)-n]
}
