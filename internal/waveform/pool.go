package waveform

import (
	"sync"

	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/metrics"
)

// SamplePool is a thread-safe pool of fixed-size float64 sample slices.
// Buffer sizes one per channel to the worst-case gap-interpolation
// filler length, so appendInterpolated reuses the same backing array
// across every gap it fills instead of allocating one per call.
type SamplePool struct {
	pool    sync.Pool
	size    int
	name    string
	metrics *metrics.DetectorMetrics
}

// NewSamplePool creates a pool of slices of the given size. metrics may be
// nil, in which case pool hit/miss counters are skipped.
func NewSamplePool(name string, size int, m *metrics.DetectorMetrics) (*SamplePool, error) {
	if size <= 0 {
		return nil, errors.Newf("invalid sample pool size: %d, must be greater than 0", size).
			Category(errors.CategoryWaveform).
			Component(name).
			Build()
	}

	sp := &SamplePool{size: size, name: name, metrics: m}
	sp.pool.New = func() any {
		return make([]float64, size)
	}
	return sp, nil
}

// Get returns a slice of exactly Size() float64s, either reused from the
// pool or freshly allocated.
func (sp *SamplePool) Get() []float64 {
	buf, ok := sp.pool.Get().([]float64)
	if ok && len(buf) == sp.size {
		if sp.metrics != nil {
			sp.metrics.RecordBufferPoolHit(sp.name)
		}
		return buf
	}
	if sp.metrics != nil {
		sp.metrics.RecordBufferPoolMiss(sp.name)
	}
	return make([]float64, sp.size)
}

// Put returns buf to the pool for reuse. Slices of the wrong size are
// dropped rather than stored.
func (sp *SamplePool) Put(buf []float64) {
	if len(buf) != sp.size {
		return
	}
	sp.pool.Put(buf) //nolint:staticcheck // sync.Pool is designed to work with slices
}

// Size returns the fixed slice length this pool serves.
func (sp *SamplePool) Size() int {
	return sp.size
}
