package recordsource

import (
	"context"
	"io"

	"github.com/quakelink/seisdetect/internal/waveform"
)

// entry pairs a channelID with the Record to deliver for it.
type entry struct {
	channelID string
	record    waveform.Record
}

// MemorySource replays a fixed, pre-built sequence of records, useful for
// tests and for replaying a small fixture without touching disk.
type MemorySource struct {
	entries []entry
	pos     int
}

// NewMemorySource builds a MemorySource that yields channelID/record pairs
// in the order given.
func NewMemorySource(channelIDs []string, records []waveform.Record) *MemorySource {
	entries := make([]entry, len(records))
	for i, r := range records {
		entries[i] = entry{channelID: channelIDs[i], record: r}
	}
	return &MemorySource{entries: entries}
}

// Next returns the next queued record, or io.EOF once exhausted.
func (s *MemorySource) Next(ctx context.Context) (string, waveform.Record, error) {
	if err := ctx.Err(); err != nil {
		return "", waveform.Record{}, err
	}
	if s.pos >= len(s.entries) {
		return "", waveform.Record{}, io.EOF
	}
	e := s.entries[s.pos]
	s.pos++
	return e.channelID, e.record, nil
}

// Close is a no-op; MemorySource owns no external resource.
func (s *MemorySource) Close() error {
	return nil
}
