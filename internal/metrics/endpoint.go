package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quakelink/seisdetect/internal/logging"
)

const metricsPath = "/metrics"

// Endpoint serves one detector's collectors over HTTP for Prometheus
// scraping.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	registry      *prometheus.Registry
}

// NewEndpoint builds an Endpoint that will serve registry's collectors at
// listenAddress.
func NewEndpoint(listenAddress string, registry *prometheus.Registry) *Endpoint {
	return &Endpoint{listenAddress: listenAddress, registry: registry}
}

// Start runs the HTTP server in a background goroutine and shuts it down
// when quitChan is closed.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:    e.listenAddress,
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info("metrics endpoint starting", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics endpoint failed", "error", err)
		}
	}()

	go func() {
		<-quitChan
		logging.Info("quit signal received, stopping metrics endpoint")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil {
			logging.Error("failed to shut down metrics endpoint gracefully", "error", err)
		}
	}()
}
