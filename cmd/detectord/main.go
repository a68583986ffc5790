// Command detectord runs one streaming cross-correlation detector: it
// loads per-channel templates, wires them into a detector.Detector, and
// feeds it records from a RecordSource until the source is exhausted or
// the process receives an interrupt.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakelink/seisdetect/internal/buildinfo"
	"github.com/quakelink/seisdetect/internal/detector"
	"github.com/quakelink/seisdetect/internal/dispatch"
	"github.com/quakelink/seisdetect/internal/linker"
	"github.com/quakelink/seisdetect/internal/logging"
	"github.com/quakelink/seisdetect/internal/metrics"
	"github.com/quakelink/seisdetect/internal/recordsource"
	"github.com/quakelink/seisdetect/internal/sconf"
	"github.com/quakelink/seisdetect/internal/spectral"
	"github.com/quakelink/seisdetect/internal/templateconf"
)

// version and buildDate are set at build time via:
//
//	go build -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		logging.Fatal("detectord exited with error", "error", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var templatePaths []string
	var recordsPath string
	var metricsListen string
	var webhookURL string
	var showVersion bool

	cmd := &cobra.Command{
		Use:   "detectord",
		Short: "Streaming cross-correlation seismic event detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				info, err := loadBuildInfo()
				if err != nil {
					return err
				}
				fmt.Printf("detectord %s (built %s, system %s)\n", info.Version(), info.BuildDate(), info.SystemID())
				return nil
			}
			return run(templatePaths, recordsPath, metricsListen, webhookURL)
		},
	}

	cmd.Flags().StringArrayVar(&templatePaths, "template", nil, "Path to a template JSON file (repeatable)")
	cmd.Flags().StringVar(&recordsPath, "records", "", "Path to a JSONL record file to replay")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Listen address for the Prometheus metrics endpoint (empty disables it)")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "URL to POST each Detection to as JSON (empty disables delivery)")
	cmd.Flags().BoolVar(&showVersion, "version", false, "Print version information and exit")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// loadBuildInfo assembles a buildinfo.Context from the binary's ldflags
// metadata and a system ID persisted alongside the configuration.
func loadBuildInfo() (*buildinfo.Context, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	systemID, err := buildinfo.LoadOrCreateSystemID(filepath.Join(homeDir, ".config", "seisdetect"))
	if err != nil {
		return nil, fmt.Errorf("loading system ID: %w", err)
	}
	return buildinfo.NewContext(version, buildDate, systemID), nil
}

func run(templatePaths []string, recordsPath, metricsListen, webhookURL string) error {
	logging.Init()

	info, err := loadBuildInfo()
	if err != nil {
		return fmt.Errorf("loading build info: %w", err)
	}
	logging.Info("starting detectord", "version", info.Version(), "buildDate", info.BuildDate(), "systemId", info.SystemID())

	settings, err := sconf.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logging.SetLevel(parseLevel(settings.Logging.Level))

	if len(templatePaths) == 0 {
		return fmt.Errorf("at least one --template is required")
	}
	if recordsPath == "" {
		return fmt.Errorf("--records is required")
	}

	registry := prometheus.NewRegistry()
	detMetrics := metrics.NewDetectorMetrics(registry)

	strategy := linker.ParseMergingStrategy(settings.Linker.MergingStrategy)
	arrivalOffsetThreshold, potEnabled := settings.Linker.ResolvedArrivalOffsetThreshold()
	associationThreshold, associationThresholdOK := settings.Linker.ResolvedAssociationThreshold()

	// specTracker keeps a rolling per-channel sample window purely to back
	// a spectral amplitude estimate at association time; it runs alongside
	// the detector's own buffering rather than through it, since the
	// correlator has no reason to expose raw samples past its pick logic.
	specTracker := spectral.NewTracker()

	cfg := detector.Config{
		Origin: detector.Origin{
			Latitude:  settings.Origin.Latitude,
			Longitude: settings.Origin.Longitude,
			Depth:     settings.Origin.Depth,
		},
		GapTolerance:        settings.Detector.GapTolerance,
		SaturationThreshold: settings.Detector.SaturationThreshold,
		Linker: linker.Config{
			OnHold:                 secondsToDuration(settings.Linker.OnHoldSeconds),
			ArrivalOffsetThreshold: arrivalOffsetThreshold,
			POTEnabled:             potEnabled,
			AssociationThreshold:   associationThreshold,
			AssociationThresholdOK: associationThresholdOK,
			MinArrivals:            settings.Linker.MinArrivals,
			Strategy:               strategy,
		},
		Clock:   linker.RealClock{},
		Metrics: detMetrics,
		AmplitudeHook: func(result *linker.TemplateResult) (detector.Amplitude, error) {
			peak, err := specTracker.PeakAmplitude(result.ProcessorID)
			if err != nil {
				return detector.Amplitude{}, err
			}
			return detector.Amplitude{ChannelID: result.ProcessorID, Value: peak}, nil
		},
	}

	var webhook *dispatch.Dispatcher
	if webhookURL != "" {
		webhook, err = dispatch.NewDispatcher(webhookURL)
		if err != nil {
			return fmt.Errorf("configuring webhook dispatcher: %w", err)
		}
		webhook.Start()
		defer webhook.Stop(5 * time.Second)
	}

	d, err := detector.New(cfg, func(det detector.Detection) {
		logging.Info("detection",
			"id", det.ID,
			"time", det.Time,
			"fit", det.Fit,
			"channelsAssociated", det.NumChannelsAssociated,
			"stationsAssociated", det.NumStationsAssociated,
		)
		if webhook != nil {
			if err := webhook.Dispatch(det); err != nil {
				logging.Warn("failed to enqueue detection for delivery", "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("constructing detector: %w", err)
	}

	for _, path := range templatePaths {
		tpl, spec, err := templateconf.Load(path)
		if err != nil {
			return fmt.Errorf("loading template %s: %w", path, err)
		}
		var threshold float64
		hasThreshold := spec.DetectionThreshold != nil
		if hasThreshold {
			threshold = *spec.DetectionThreshold
		}
		d.AddChannel(tpl, nil, spec.MaxLagSeconds, threshold, hasThreshold)
	}

	src, err := recordsource.OpenJSONLFile(recordsPath)
	if err != nil {
		return fmt.Errorf("opening record source %s: %w", recordsPath, err)
	}
	defer src.Close()

	quitChan := make(chan struct{})
	var closeQuit sync.Once
	shutdown := func() { closeQuit.Do(func() { close(quitChan) }) }

	var wg sync.WaitGroup
	monitorSignals(shutdown)

	if metricsListen != "" {
		metrics.NewEndpoint(metricsListen, registry).Start(&wg, quitChan)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-quitChan
		cancel()
	}()

	err = feedLoop(ctx, d, src, specTracker)
	d.Flush()
	shutdown()
	wg.Wait()
	return err
}

// feedLoop reads records from src until it is exhausted or ctx is
// cancelled, dispatching each to the detector by channel ID and mirroring
// its samples into tracker for spectral amplitude estimation.
func feedLoop(ctx context.Context, d *detector.Detector, src recordsource.RecordSource, tracker *spectral.Tracker) error {
	for {
		channelID, record, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading next record: %w", err)
		}

		tracker.Record(channelID, record.Samples)
		if err := d.Feed(channelID, record); err != nil {
			logging.Warn("feed failed", "channel", channelID, "error", err)
		}
	}
}

// monitorSignals invokes shutdown on SIGINT/SIGTERM.
func monitorSignals(shutdown func()) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logging.Info("received interrupt, shutting down")
		shutdown()
	}()
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
