package sconf

import (
	"github.com/quakelink/seisdetect/internal/errors"
)

// Validate checks settings against the construction-time rejection rules
// from the detector's error handling design: thresholds below their floor,
// or other nonsensical combinations, are rejected before anything is built.
func Validate(s *Settings) error {
	if s.Detector.GapTolerance < 0 {
		return errors.Newf("detector.gapTolerance must be >= 0, got %v", s.Detector.GapTolerance).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if s.Detector.SaturationThreshold <= 0 {
		return errors.Newf("detector.saturationThreshold must be > 0, got %v", s.Detector.SaturationThreshold).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if s.Linker.OnHoldSeconds < 0 {
		return errors.Newf("linker.onHold must be >= 0, got %v", s.Linker.OnHoldSeconds).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if !s.Linker.DisableArrivalOffsetCheck && s.Linker.ArrivalOffsetThresholdSec < arrivalOffsetThresholdFloor {
		return errors.Newf("linker.arrivalOffsetThreshold must be >= %v, got %v",
			arrivalOffsetThresholdFloor, s.Linker.ArrivalOffsetThresholdSec).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if s.Linker.MinArrivals < 0 {
		return errors.Newf("linker.minArrivals must be >= 0, got %d", s.Linker.MinArrivals).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	switch s.Linker.MergingStrategy {
	case "", "threshold":
	default:
		return errors.Newf("unknown linker.mergingStrategy %q", s.Linker.MergingStrategy).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if s.Origin.Latitude < -90 || s.Origin.Latitude > 90 {
		return errors.Newf("origin.latitude must be in [-90, 90], got %v", s.Origin.Latitude).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	if s.Origin.Longitude < -180 || s.Origin.Longitude > 180 {
		return errors.Newf("origin.longitude must be in [-180, 180], got %v", s.Origin.Longitude).
			Kind(errors.KindConfigRejected).
			Category(errors.CategoryConfig).
			Build()
	}

	return nil
}
