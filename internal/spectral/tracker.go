// Package spectral measures the dominant-frequency amplitude of a
// channel's most recently arrived samples via a windowed real FFT. It
// sits outside the core correlation/linking algorithm, the same way the
// detector façade's AmplitudeHook is meant to be filled in: the core
// never needs to know a spectral estimate exists.
package spectral

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// WindowSize is the number of trailing samples a Tracker keeps per
// channel and feeds to the FFT. 256 samples at a typical 100 Hz
// seismometer rate covers roughly 2.5 seconds, enough to resolve the
// 1-10 Hz band most local-event templates are filtered to.
const WindowSize = 256

// Tracker keeps each channel's most recent WindowSize samples so a
// dominant-frequency amplitude can be measured at association time,
// independent of whatever window the correlator itself is sliding.
type Tracker struct {
	mu      sync.Mutex
	windows map[string][]float64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{windows: make(map[string][]float64)}
}

// Record appends newly arrived samples to channelID's rolling window,
// retaining only the most recent WindowSize.
func (t *Tracker) Record(channelID string, samples []float64) {
	if len(samples) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	buf := append(t.windows[channelID], samples...)
	if len(buf) > WindowSize {
		buf = buf[len(buf)-WindowSize:]
	}
	t.windows[channelID] = buf
}

// PeakAmplitude returns the magnitude of the strongest positive-frequency
// bin in channelID's current window, computed from a Hamming-windowed
// real FFT. It errors if fewer than WindowSize samples have been
// recorded for channelID yet.
func (t *Tracker) PeakAmplitude(channelID string) (float64, error) {
	t.mu.Lock()
	buf := append([]float64(nil), t.windows[channelID]...)
	t.mu.Unlock()

	if len(buf) < WindowSize {
		return 0, fmt.Errorf("spectral: channel %s has only %d of %d samples needed", channelID, len(buf), WindowSize)
	}

	windowed := make([]float64, WindowSize)
	for i, s := range buf {
		windowed[i] = s * hamming(i, WindowSize)
	}

	spectrum := fft.FFTReal(windowed)

	var peak float64
	for _, c := range spectrum[:WindowSize/2] {
		if m := cmplx.Abs(c); m > peak {
			peak = m
		}
	}
	return peak, nil
}

// hamming returns the i-th coefficient of an n-point Hamming window.
func hamming(i, n int) float64 {
	return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}
