package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/quakelink/seisdetect/internal/linker"
)

// Station is the network-station-location prefix of a SEED channel
// identifier (network.station.location.channel), used to deduplicate
// per-station counts from per-channel counts in a Detection.
func Station(channelID string) string {
	parts := strings.Split(channelID, ".")
	if len(parts) <= 1 {
		return channelID
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

// Amplitude is one channel's contribution to magnitude estimation.
type Amplitude struct {
	ChannelID string
	Value     float64
}

// AmplitudeHook is called once per channel contributing to an Association,
// external to the core correlation/linking algorithm.
type AmplitudeHook func(result *linker.TemplateResult) (Amplitude, error)

// OutOfRangeError reports that an observed amplitude fell outside the
// range a MagnitudeEstimator can convert to a magnitude. It replaces the
// exception-based control flow of decorator estimators with an explicit
// result variant.
type OutOfRangeError struct {
	Lower, Upper, Observed float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("observed amplitude %v outside [%v, %v]", e.Observed, e.Lower, e.Upper)
}

// MagnitudeResult is the result-typed outcome of a MagnitudeEstimator: it
// carries either a usable Magnitude or an OutOfRange, never both.
type MagnitudeResult struct {
	Magnitude  float64
	OutOfRange *OutOfRangeError
}

// Valid reports whether the result carries a usable magnitude.
func (r MagnitudeResult) Valid() bool {
	return r.OutOfRange == nil
}

// MagnitudeEstimator converts a set of per-channel amplitudes into a
// magnitude estimate, or reports why it could not.
type MagnitudeEstimator func([]Amplitude) MagnitudeResult

// Detection is the façade's enriched output: an Association projected
// into an absolute origin time and location, with a magnitude (if one
// could be estimated) and channel/station bookkeeping.
type Detection struct {
	ID        string
	Time      time.Time
	Latitude  float64
	Longitude float64
	Depth     float64

	Magnitude    float64
	HasMagnitude bool
	OutOfRange   *OutOfRangeError

	Fit float64

	NumChannelsAssociated int
	NumChannelsUsed       int
	NumStationsAssociated int
	NumStationsUsed       int

	TemplateResults map[string]*linker.TemplateResult
}
