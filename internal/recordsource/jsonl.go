package recordsource

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/quakelink/seisdetect/internal/errors"
	"github.com/quakelink/seisdetect/internal/waveform"
)

// jsonlRecord is one line of a JSONL record file.
type jsonlRecord struct {
	ChannelID         string    `json:"channelId"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	SamplingFrequency float64   `json:"samplingFrequency"`
	Samples           []float64 `json:"samples"`
}

// JSONLFileSource reads one channelID+Record pair per newline-delimited
// JSON line from a file, in file order.
type JSONLFileSource struct {
	file    *os.File
	scanner *bufio.Scanner
}

// OpenJSONLFile opens path for reading as a JSONLFileSource.
func OpenJSONLFile(path string) (*JSONLFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryGeneric).
			Component("recordsource").
			Build()
	}
	return &JSONLFileSource{file: f, scanner: bufio.NewScanner(f)}, nil
}

// Next returns the next record in the file, or io.EOF once every line has
// been consumed. Blank lines are skipped.
func (s *JSONLFileSource) Next(ctx context.Context) (string, waveform.Record, error) {
	if err := ctx.Err(); err != nil {
		return "", waveform.Record{}, err
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return "", waveform.Record{}, errors.New(err).
				Category(errors.CategoryGeneric).
				Component("recordsource").
				Build()
		}

		return rec.ChannelID, waveform.Record{
			Start:             rec.Start,
			End:               rec.End,
			SamplingFrequency: rec.SamplingFrequency,
			Samples:           rec.Samples,
		}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", waveform.Record{}, err
	}
	return "", waveform.Record{}, io.EOF
}

// Close releases the underlying file handle.
func (s *JSONLFileSource) Close() error {
	return s.file.Close()
}
