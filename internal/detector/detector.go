// Package detector assembles the per-channel correlators and the Linker
// into a single façade: feed records in, get enriched Detections out.
package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/quakelink/seisdetect/internal/correlate"
	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/linker"
	"github.com/quakelink/seisdetect/internal/logging"
	"github.com/quakelink/seisdetect/internal/metrics"
	"github.com/quakelink/seisdetect/internal/waveform"
)

// Origin is the template origin's location, depth, and time, copied
// verbatim into every Detection the façade builds — the core does not
// locate events itself.
type Origin struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Depth     float64
}

// Config holds everything the façade needs besides the channels
// themselves, which are registered one at a time via AddChannel.
type Config struct {
	Origin              Origin
	GapTolerance        float64
	SaturationThreshold float64
	Linker              linker.Config
	Clock               linker.Clock
	AmplitudeHook       AmplitudeHook
	MagnitudeEstimator  MagnitudeEstimator
	Metrics             *metrics.DetectorMetrics
}

// channel bundles a processor with the per-channel bookkeeping the
// façade needs to reconstruct a Detection from an Association.
type channel struct {
	processor  *correlate.Processor
	pickOffset time.Duration
}

// Detector owns a channelId -> TemplateWaveformProcessor mapping, a
// single Linker, and the result sink the Linker publishes Associations
// to. It is not safe for concurrent use: callers serialise per-detector
// calls.
type Detector struct {
	cfg         Config
	channels    map[string]*channel
	linker      *linker.Linker
	onDetection func(Detection)
}

// New builds a Detector. onDetection is invoked synchronously for every
// Detection produced from an emitted Association.
func New(cfg Config, onDetection func(Detection)) (*Detector, error) {
	d := &Detector{
		cfg:         cfg,
		channels:    make(map[string]*channel),
		onDetection: onDetection,
	}

	linkerCfg := cfg.Linker
	linkerCfg.Metrics = cfg.Metrics
	l, err := linker.New(linkerCfg, cfg.Clock, d.handleAssociation)
	if err != nil {
		return nil, err
	}
	d.linker = l
	return d, nil
}

// AddChannel registers a channel's template with the façade: it builds
// the channel's waveform buffer and correlation processor, propagating
// the detector's configured gap tolerance and saturation threshold, and
// registers the channel with the Linker.
func (d *Detector) AddChannel(template *correlate.Template, filter *waveform.Filter, maxLagSeconds, detectionThreshold float64, hasThreshold bool) {
	buf := waveform.NewBuffer(template.ChannelID, template.SamplingFrequency, d.cfg.GapTolerance, d.cfg.SaturationThreshold, filter)
	buf.SetMetrics(d.cfg.Metrics)
	proc := correlate.NewProcessor(template, buf, maxLagSeconds, detectionThreshold, hasThreshold)

	d.channels[template.ChannelID] = &channel{
		processor:  proc,
		pickOffset: template.PickOffset(),
	}
	d.linker.Add(template.ChannelID, template.PickTime, template.StartTime)
}

// RemoveChannel deregisters a channel from both the façade and the Linker.
func (d *Detector) RemoveChannel(channelID string) {
	delete(d.channels, channelID)
	d.linker.Remove(channelID)
}

// ChannelCount returns the number of currently registered channels.
func (d *Detector) ChannelCount() int {
	return len(d.channels)
}

// Feed dispatches record to channelID's processor. Its MatchResult, if
// any, is immediately pushed into the Linker. A processor still warming
// up its filter (Initialised() == false) is fed but suppressed from
// reaching the Linker; other channels are not blocked by one channel's
// warm-up.
func (d *Detector) Feed(channelID string, record waveform.Record) error {
	ch, ok := d.channels[channelID]
	if !ok {
		return errors.Newf("channel %s is not registered with this detector", channelID).
			Category(errors.CategoryDetector).
			Component(channelID).
			Build()
	}

	result, err := ch.processor.Feed(record)
	if err != nil {
		if errors.IsKind(err, errors.KindIncompatibleSamplingFreq) {
			d.RemoveChannel(channelID)
		}
		if logger := logging.Structured(); logger != nil {
			logger.Error("channel feed failed", "channel", channelID, "error", err)
		}
		return err
	}
	if result == nil || !ch.processor.Initialised() {
		return nil
	}

	if d.cfg.Metrics != nil {
		for _, lm := range result.LocalMaxes {
			d.cfg.Metrics.RecordMatchCoefficient(channelID, lm.Coefficient)
		}
	}

	return d.linker.Feed(channelID, result)
}

// Flush forces emission of whatever candidates the Linker's queue holds
// that meet minArrivals and the association threshold.
func (d *Detector) Flush() {
	d.linker.Flush()
}

// Reset drops all pending candidates.
func (d *Detector) Reset() {
	d.linker.Reset()
}

func (d *Detector) handleAssociation(a linker.Association) {
	detection := d.buildDetection(a)
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordDetection("associated")
	}
	if d.onDetection != nil {
		d.onDetection(detection)
	}
}

// buildDetection enriches an Association with the template origin's
// location/depth/time, per-channel amplitudes, an estimated magnitude,
// and associated-vs-used channel/station counts.
func (d *Detector) buildDetection(a linker.Association) Detection {
	stationsAssociated := make(map[string]struct{}, len(a.Results))
	var amplitudes []Amplitude
	var originSeconds float64
	for channelID, result := range a.Results {
		stationsAssociated[Station(channelID)] = struct{}{}

		var pickOffset time.Duration
		if ch, ok := d.channels[channelID]; ok {
			pickOffset = ch.pickOffset
		}
		originSeconds += float64(result.Pick.Time.Add(-pickOffset).UnixNano()) / 1e9

		if d.cfg.AmplitudeHook != nil {
			amp, err := d.cfg.AmplitudeHook(result)
			if err != nil {
				if logger := logging.Structured(); logger != nil {
					logger.Warn("amplitude hook failed", "channel", channelID, "error", err)
				}
				continue
			}
			amplitudes = append(amplitudes, amp)
		}
	}
	originSeconds /= float64(len(a.Results))

	stationsUsed := make(map[string]struct{}, len(d.channels))
	for channelID := range d.channels {
		stationsUsed[Station(channelID)] = struct{}{}
	}

	detection := Detection{
		ID:        uuid.NewString(),
		Time:      time.Unix(0, int64(originSeconds*1e9)),
		Latitude:  d.cfg.Origin.Latitude,
		Longitude: d.cfg.Origin.Longitude,
		Depth:     d.cfg.Origin.Depth,
		Fit:       a.Score,

		NumChannelsAssociated: len(a.Results),
		NumChannelsUsed:       len(d.channels),
		NumStationsAssociated: len(stationsAssociated),
		NumStationsUsed:       len(stationsUsed),

		TemplateResults: a.Results,
	}

	if d.cfg.MagnitudeEstimator != nil && len(amplitudes) > 0 {
		result := d.cfg.MagnitudeEstimator(amplitudes)
		if result.Valid() {
			detection.Magnitude = result.Magnitude
			detection.HasMagnitude = true
		} else {
			detection.OutOfRange = result.OutOfRange
			if logger := logging.Structured(); logger != nil {
				logger.Warn("magnitude out of range", "lower", result.OutOfRange.Lower,
					"upper", result.OutOfRange.Upper, "observed", result.OutOfRange.Observed)
			}
		}
	}

	return detection
}
