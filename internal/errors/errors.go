// Package errors provides centralized, categorized error handling for the
// detector pipeline. It wraps the standard library errors package so that
// callers can keep using errors.Is / errors.As while individual sites attach
// a Kind, a component, and structured context.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// Kind identifies one of the error modes described by the detector's error
// handling design: a small, closed set of conditions the core can surface.
type Kind string

const (
	// KindGapTooLarge: a waveform buffer gap exceeded gapTolerance. Soft,
	// per-channel: the stream resets and the in-flight window is dropped.
	KindGapTooLarge Kind = "gap-too-large"
	// KindSaturated: a record's samples clipped at or above the
	// saturation threshold. Soft: the window is skipped.
	KindSaturated Kind = "saturated"
	// KindIncompatibleSamplingFreq: a record's sampling frequency does not
	// match the template's. Terminal for the processor.
	KindIncompatibleSamplingFreq Kind = "incompatible-sampling-freq"
	// KindNumericInstability: a correlation coefficient fell outside
	// [-1,1] by more than the numerical tolerance. Terminal.
	KindNumericInstability Kind = "numeric-instability"
	// KindConfigRejected: construction-time validation failure (threshold
	// below floor, empty processor set, ...).
	KindConfigRejected Kind = "config-rejected"
	// KindMergingRejected: the merging predicate declined a TemplateResult.
	// Expected in normal operation; callers should not log this as a fault.
	KindMergingRejected Kind = "merging-rejected"
	// KindPOTValidationFailed: a candidate projection failed pick-offset
	// consistency. Expected in normal operation.
	KindPOTValidationFailed Kind = "pot-validation-failed"
)

// Category buckets errors by subsystem for logging and metrics grouping.
type Category string

const (
	CategoryWaveform    Category = "waveform"
	CategoryCorrelation Category = "correlation"
	CategoryLinker      Category = "linker"
	CategoryPOT         Category = "pot"
	CategoryDetector    Category = "detector"
	CategoryConfig      Category = "configuration"
	CategoryGeneric     Category = "generic"
)

// DetectorError wraps an underlying error with a Kind, a Category, the
// component that raised it, and arbitrary structured context.
type DetectorError struct {
	Err       error
	Kind      Kind
	Category  Category
	Component string
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

// Error implements the error interface.
func (de *DetectorError) Error() string {
	if de.Kind == "" {
		return de.Err.Error()
	}
	return fmt.Sprintf("%s: %s", de.Kind, de.Err.Error())
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped error.
func (de *DetectorError) Unwrap() error {
	return de.Err
}

// Is reports equality by Kind when target is also a *DetectorError,
// otherwise defers to the wrapped error.
func (de *DetectorError) Is(target error) bool {
	if other, ok := target.(*DetectorError); ok {
		return de.Kind != "" && de.Kind == other.Kind
	}
	return stderrors.Is(de.Err, target)
}

// GetContext returns a copy of the error's structured context.
func (de *DetectorError) GetContext() map[string]any {
	de.mu.RLock()
	defer de.mu.RUnlock()
	out := make(map[string]any, len(de.Context))
	for k, v := range de.Context {
		out[k] = v
	}
	return out
}

// Builder provides a fluent interface for attaching context to an error
// before it leaves the component that raised it.
type Builder struct {
	err       error
	kind      Kind
	category  Category
	component string
	context   map[string]any
}

// New starts a Builder around an existing error.
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf starts a Builder around a formatted error message.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Kind sets the error Kind.
func (b *Builder) Kind(kind Kind) *Builder {
	b.kind = kind
	return b
}

// Category sets the error Category.
func (b *Builder) Category(category Category) *Builder {
	b.category = category
	return b
}

// Component names the subsystem that raised the error (e.g. a channel id
// or package name); always set explicitly by the caller rather than
// inferred from the call stack.
func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

// Context attaches one key/value pair of structured context.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the DetectorError.
func (b *Builder) Build() *DetectorError {
	category := b.category
	if category == "" {
		category = CategoryGeneric
	}
	return &DetectorError{
		Err:       b.err,
		Kind:      b.kind,
		Category:  category,
		Component: b.component,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// Standard-library passthroughs so this package can be used as a drop-in
// replacement in call sites that only need errors.New/Is/As/Unwrap.

func NewStd(text string) error      { return stderrors.New(text) }
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error        { return stderrors.Unwrap(err) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

// IsKind reports whether err carries the given Kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var de *DetectorError
	return As(err, &de) && de.Kind == kind
}

// Terminal reports whether a Kind is defined as terminal for the component
// that raised it (the processor or, for NumericInstability, the detector).
func Terminal(kind Kind) bool {
	switch kind {
	case KindIncompatibleSamplingFreq, KindNumericInstability, KindConfigRejected:
		return true
	default:
		return false
	}
}
