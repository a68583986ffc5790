package correlate

import (
	"math"
	"time"

	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/waveform"
)

// numericTolerance bounds how far outside [-1, 1] a coefficient may fall
// before it is treated as a numerical bug rather than floating-point
// rounding noise.
const numericTolerance = 1e-6

// LocalMax is one local maximum found in a correlation run.
type LocalMax struct {
	LagSeconds  float64
	Coefficient float64
}

// MatchResult is the output of one correlation run over a sliding window.
// LocalMaxes is sorted by LagSeconds ascending; TemplateResult holds a
// back-reference by index into this slice, never an iterator, so the
// slice's identity must be kept alive by anyone referencing it (shared
// immutable ownership, per candidate bookkeeping in the linker).
type MatchResult struct {
	ChannelID  string
	Window     Window
	LocalMaxes []LocalMax
}

// Window is the time span a MatchResult's lags are measured from.
type Window struct {
	Start time.Time
	End   time.Time
}

// Processor runs one channel's template cross-correlation: it owns the
// channel's waveform buffer and slides a correlation window over it every
// time enough new samples have arrived.
type Processor struct {
	template        *Template
	buffer          *waveform.Buffer
	detectionThresh float64
	hasThreshold    bool
	maxLagSamples   int
	templateSamples int
	terminated      bool
}

// NewProcessor builds a Processor for one channel. maxLagSeconds bounds
// how far past the template length the sliding window searches.
func NewProcessor(template *Template, buffer *waveform.Buffer, maxLagSeconds float64, detectionThreshold float64, hasThreshold bool) *Processor {
	return &Processor{
		template:        template,
		buffer:          buffer,
		detectionThresh: detectionThreshold,
		hasThreshold:    hasThreshold,
		maxLagSamples:   int(maxLagSeconds * template.SamplingFrequency),
		templateSamples: len(template.Samples),
	}
}

// Terminated reports whether this processor hit a terminal error
// (IncompatibleSamplingFreq or NumericInstability) and must no longer be
// fed.
func (p *Processor) Terminated() bool {
	return p.terminated
}

// Initialised reports whether the channel's filter warm-up (if any) has
// completed. Callers should suppress linking on a processor until this
// is true, per the detector façade's per-processor gating.
func (p *Processor) Initialised() bool {
	return p.buffer.Initialised()
}

// Feed fills record into the buffer and, if enough samples are now
// available, runs a correlation pass. It returns (nil, nil) when there is
// not yet enough data for a window.
func (p *Processor) Feed(record waveform.Record) (*MatchResult, error) {
	if p.terminated {
		return nil, errors.Newf("processor for channel %s is terminated", p.template.ChannelID).
			Kind(errors.KindIncompatibleSamplingFreq).
			Category(errors.CategoryCorrelation).
			Component(p.template.ChannelID).
			Build()
	}

	if err := p.buffer.Fill(record); err != nil {
		if errors.IsKind(err, errors.KindIncompatibleSamplingFreq) {
			p.terminated = true
		}
		return nil, err
	}

	windowSamples := p.templateSamples + p.maxLagSamples
	samples := p.buffer.Samples()
	if len(samples) < windowSamples {
		return nil, nil
	}

	if !p.buffer.Initialised() {
		// Warm-up in progress: the filter hasn't settled, so any
		// coefficients computed now would be unreliable. Samples still
		// advance the buffer; the window just isn't scored yet.
		return nil, nil
	}

	coefficients, err := p.correlate(samples[:windowSamples])
	if err != nil {
		p.terminated = true
		return nil, err
	}

	maxima := localMaxima(coefficients, p.detectionThresh, p.hasThreshold, p.template.SamplingFrequency)

	windowStart := record.End.Add(-time.Duration(float64(len(samples)) / p.template.SamplingFrequency * float64(time.Second)))
	result := &MatchResult{
		ChannelID: p.template.ChannelID,
		Window: Window{
			Start: windowStart,
			End:   record.End,
		},
		LocalMaxes: maxima,
	}

	advance := 0
	if len(maxima) > 0 {
		lastLagSamples := int(maxima[len(maxima)-1].LagSeconds * p.template.SamplingFrequency)
		advance = lastLagSamples - p.templateSamples
	}
	if advance < 0 {
		advance = 0
	}
	p.buffer.Advance(advance)

	return result, nil
}

// correlate runs normalised cross-correlation of the template against
// window, producing one coefficient per lag position k in
// [0, len(window)-templateSamples].
func (p *Processor) correlate(window []float64) ([]float64, error) {
	n := len(window) - p.templateSamples + 1
	if n <= 0 {
		return nil, nil
	}

	coefficients := make([]float64, n)
	for k := 0; k < n; k++ {
		lagged := window[k : k+p.templateSamples]
		zm, norm := zeroMeanAndNorm(lagged)

		var coeff float64
		if norm > 0 && p.template.norm > 0 {
			var dot float64
			for i := range zm {
				dot += zm[i] * p.template.zeroMean[i]
			}
			coeff = dot / (norm * p.template.norm)
		}

		if coeff > 1+numericTolerance || coeff < -1-numericTolerance {
			return nil, errors.Newf("correlation coefficient %v outside [-1,1]", coeff).
				Kind(errors.KindNumericInstability).
				Category(errors.CategoryCorrelation).
				Component(p.template.ChannelID).
				Context("coefficient", coeff).
				Build()
		}
		coefficients[k] = clamp(coeff)
	}
	return coefficients, nil
}

func clamp(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < -1 {
		return -1
	}
	return c
}

// localMaxima finds every index k with c[k] > c[k-1] && c[k] >= c[k+1] and
// (if hasThreshold) c[k] >= threshold. If none qualify, it falls back to
// the single global maximum.
func localMaxima(c []float64, threshold float64, hasThreshold bool, samplingFrequency float64) []LocalMax {
	if len(c) == 0 {
		return nil
	}

	var maxima []LocalMax
	for k := range c {
		if math.IsNaN(c[k]) {
			continue
		}
		if k > 0 && c[k] <= c[k-1] {
			continue
		}
		if k < len(c)-1 && c[k] < c[k+1] {
			continue
		}
		if hasThreshold && c[k] < threshold {
			continue
		}
		maxima = append(maxima, LocalMax{LagSeconds: float64(k) / samplingFrequency, Coefficient: c[k]})
	}

	if len(maxima) == 0 {
		bestIdx := -1
		bestVal := math.Inf(-1)
		for k, v := range c {
			if math.IsNaN(v) {
				continue
			}
			if v > bestVal {
				bestVal = v
				bestIdx = k
			}
		}
		if bestIdx >= 0 {
			maxima = append(maxima, LocalMax{LagSeconds: float64(bestIdx) / samplingFrequency, Coefficient: bestVal})
		}
	}

	return maxima
}
