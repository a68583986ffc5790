package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quakelink/seisdetect/internal/detector"
)

func TestGenericServiceURLRewritesScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantPfx string
	}{
		{"https://hooks.example.com/seisdetect", "generic+https://hooks.example.com/seisdetect?"},
		{"http://localhost:8080/hook", "generic+http://localhost:8080/hook?"},
	}

	for _, tt := range tests {
		got, err := genericServiceURL(tt.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if len(got) < len(tt.wantPfx) || got[:len(tt.wantPfx)] != tt.wantPfx {
			t.Errorf("genericServiceURL(%q) = %q, want prefix %q", tt.in, got, tt.wantPfx)
		}
	}
}

func TestGenericServiceURLRejectsUnsupportedScheme(t *testing.T) {
	t.Parallel()

	if _, err := genericServiceURL("ftp://example.com/hook"); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}

func TestDispatcherDeliversDetection(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDispatcher(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error building dispatcher: %v", err)
	}
	d.Start()

	det := detector.Detection{
		ID:                    "abc-123",
		Time:                  time.Unix(1700000000, 0),
		Fit:                   0.95,
		NumChannelsAssociated: 3,
		NumStationsAssociated: 2,
	}
	if err := d.Dispatch(det); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.ProcessImmediately(context.Background())
	// Stop waits for the delivery goroutine started above to finish.
	if err := d.Stop(5 * time.Second); err != nil {
		t.Fatalf("unexpected error stopping dispatcher: %v", err)
	}

	if received.Load() != 1 {
		t.Fatalf("expected exactly one delivery attempt, got %d", received.Load())
	}
}

func TestDispatcherSuppressesDuplicateDetectionWithinWindow(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDispatcher(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error building dispatcher: %v", err)
	}
	d.Start()
	defer d.Stop(5 * time.Second)

	det := detector.Detection{
		ID:                    "first-association",
		Time:                  time.Unix(1700000000, 0),
		NumChannelsAssociated: 3,
		NumStationsAssociated: 2,
	}
	reconfirmed := det
	reconfirmed.ID = "second-association" // same origin second/station set, different association ID

	if err := d.Dispatch(det); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Dispatch(reconfirmed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.ProcessImmediately(context.Background())

	stats := d.Stats()
	if stats.TotalJobs != 1 {
		t.Fatalf("expected the second, near-duplicate detection to be suppressed, got %d enqueued jobs", stats.TotalJobs)
	}
}
