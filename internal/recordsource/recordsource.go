// Package recordsource supplies the ambient, out-of-core waveform feed a
// running detector consumes: the minimal, concrete stand-in for the
// "waveform I/O" collaborator the core deliberately excludes.
package recordsource

import (
	"context"

	"github.com/quakelink/seisdetect/internal/waveform"
)

// RecordSource yields successive per-channel waveform records. Next
// returns io.EOF once the source is exhausted.
type RecordSource interface {
	// Next blocks until the next record is available, ctx is done, or the
	// source is exhausted (io.EOF).
	Next(ctx context.Context) (channelID string, record waveform.Record, err error)
	Close() error
}
