// Package dispatch delivers emitted Detections to an external sink
// outside the detector core, with the retry/backoff semantics of
// internal/jobqueue — a Detection that fails to deliver (webhook
// unreachable, 5xx) is retried instead of dropped.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/quakelink/seisdetect/internal/detector"
	"github.com/quakelink/seisdetect/internal/jobqueue"
)

// WebhookAction posts a Detection to a configured sink via a shoutrrr
// sender. It implements jobqueue.Action so failed deliveries are retried
// with backoff.
type WebhookAction struct {
	Sender *router.ServiceRouter
}

// NewWebhookAction builds a shoutrrr sender targeting a single HTTP(S)
// endpoint, using shoutrrr's generic webhook service so the endpoint
// receives the Detection's JSON body as-is rather than a service-specific
// chat payload.
func NewWebhookAction(webhookURL string) (*WebhookAction, error) {
	serviceURL, err := genericServiceURL(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("building shoutrrr service URL: %w", err)
	}

	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("creating shoutrrr sender: %w", err)
	}
	sender.Timeout = 30 * time.Second

	return &WebhookAction{Sender: sender}, nil
}

// genericServiceURL rewrites a plain http(s) URL into shoutrrr's generic
// webhook service scheme, asking it to deliver the message verbatim as a
// JSON body instead of wrapping it in the service's default form.
func genericServiceURL(webhookURL string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", err
	}

	var prefix string
	switch u.Scheme {
	case "https", "":
		prefix = "generic+https"
		u.Scheme = "https"
	case "http":
		prefix = "generic+http"
	default:
		return "", fmt.Errorf("unsupported webhook scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("template", "json")
	q.Set("contenttype", "application/json")
	u.RawQuery = q.Encode()

	rest := strings.TrimPrefix(u.String(), u.Scheme+"://")
	return prefix + "://" + rest, nil
}

// Execute implements jobqueue.Action. data must be a detector.Detection.
func (a *WebhookAction) Execute(data interface{}) error {
	det, ok := data.(detector.Detection)
	if !ok {
		return fmt.Errorf("webhook action: unexpected data type %T", data)
	}

	body, err := json.Marshal(detectionPayload{
		ID:                    det.ID,
		Time:                  det.Time,
		Latitude:              det.Latitude,
		Longitude:             det.Longitude,
		Depth:                 det.Depth,
		Magnitude:             det.Magnitude,
		HasMagnitude:          det.HasMagnitude,
		Fit:                   det.Fit,
		NumChannelsAssociated: det.NumChannelsAssociated,
		NumChannelsUsed:       det.NumChannelsUsed,
		NumStationsAssociated: det.NumStationsAssociated,
		NumStationsUsed:       det.NumStationsUsed,
	})
	if err != nil {
		return fmt.Errorf("marshaling detection: %w", err)
	}

	var params stypes.Params
	errs := a.Sender.Send(string(body), &params)
	for _, sendErr := range errs {
		if sendErr != nil {
			return fmt.Errorf("delivering detection via shoutrrr: %w", sendErr)
		}
	}
	return nil
}

// detectionPayload is the wire shape posted to the webhook, decoupled
// from detector.Detection's internal fields (e.g. TemplateResults, which
// carries back-references not meant to cross a process boundary).
type detectionPayload struct {
	ID                    string    `json:"id"`
	Time                  time.Time `json:"time"`
	Latitude              float64   `json:"latitude"`
	Longitude             float64   `json:"longitude"`
	Depth                 float64   `json:"depth"`
	Magnitude             float64   `json:"magnitude,omitempty"`
	HasMagnitude          bool      `json:"hasMagnitude"`
	Fit                   float64   `json:"fit"`
	NumChannelsAssociated int       `json:"numChannelsAssociated"`
	NumChannelsUsed       int       `json:"numChannelsUsed"`
	NumStationsAssociated int       `json:"numStationsAssociated"`
	NumStationsUsed       int       `json:"numStationsUsed"`
}

// dedupWindow suppresses re-delivering a detection with the same origin
// time (truncated to the second) and the same station and channel counts
// within this window, collapsing the
// duplicate Associations a lenient merging strategy can emit for one
// physical event.
const dedupWindow = 5 * time.Second

// Dispatcher owns a retrying job queue that delivers Detections to a
// WebhookAction.
type Dispatcher struct {
	queue  *jobqueue.JobQueue
	action *WebhookAction
	retry  jobqueue.RetryConfig
}

// NewDispatcher builds a Dispatcher posting to url, with the default
// retry policy (up to 5 retries after the first attempt, exponential
// backoff on a 30s base capped at 1h).
func NewDispatcher(webhookURL string) (*Dispatcher, error) {
	action, err := NewWebhookAction(webhookURL)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		queue:  jobqueue.NewJobQueue(),
		action: action,
		retry:  jobqueue.GetDefaultRetryConfig(true),
	}, nil
}

// Start begins processing enqueued deliveries in the background.
func (d *Dispatcher) Start() {
	d.queue.Start()
}

// Stop drains in-flight deliveries, waiting up to timeout.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	return d.queue.StopWithTimeout(timeout)
}

// Dispatch enqueues det for delivery, to be called as a detector.Detector's
// onDetection callback. A near-duplicate det (same origin time truncated to
// the second, same station and channel counts) delivered again within
// dedupWindow is silently suppressed.
func (d *Dispatcher) Dispatch(det detector.Detection) error {
	key := fmt.Sprintf("%s|%d|%d", det.Time.Truncate(time.Second), det.NumStationsAssociated, det.NumChannelsAssociated)
	_, _, err := d.queue.EnqueueUnique(d.action, det, d.retry, key, dedupWindow)
	return err
}

// Stats returns the underlying queue's delivery statistics.
func (d *Dispatcher) Stats() jobqueue.JobStatsSnapshot {
	return d.queue.GetStats()
}

// ProcessImmediately drains due deliveries synchronously, for tests that
// don't want to wait on the queue's background ticker.
func (d *Dispatcher) ProcessImmediately(ctx context.Context) {
	d.queue.ProcessImmediately(ctx)
}
