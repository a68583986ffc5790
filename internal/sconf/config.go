// Package sconf provides the detector's configuration: a YAML file (with
// environment variable overrides) loaded through viper into a validated
// Settings struct, exposed through a lazily-initialized singleton.
package sconf

import (
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quakelink/seisdetect/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// DetectorSettings configures the per-channel waveform and correlation
// pipeline.
type DetectorSettings struct {
	GapTolerance        float64 `yaml:"gapTolerance" mapstructure:"gapTolerance"`
	SaturationThreshold float64 `yaml:"saturationThreshold" mapstructure:"saturationThreshold"`
}

// LinkerSettings configures the candidate association state machine. A
// zero MinArrivals is a sentinel for processorCount; a null
// arrivalOffsetThreshold or associationThreshold is expressed through the
// DisableArrivalOffsetCheck and AcceptAnyAssociationScore flags. See the
// Resolved* helpers below for the "null means..." semantics.
type LinkerSettings struct {
	OnHoldSeconds             float64 `yaml:"onHold" mapstructure:"onHold"`
	ArrivalOffsetThresholdSec float64 `yaml:"arrivalOffsetThreshold" mapstructure:"arrivalOffsetThreshold"`
	DisableArrivalOffsetCheck bool    `yaml:"disableArrivalOffsetCheck" mapstructure:"disableArrivalOffsetCheck"`
	AssociationThreshold      float64 `yaml:"associationThreshold" mapstructure:"associationThreshold"`
	AcceptAnyAssociationScore bool    `yaml:"acceptAnyAssociationScore" mapstructure:"acceptAnyAssociationScore"`
	MinArrivals               int     `yaml:"minArrivals" mapstructure:"minArrivals"`
	MergingStrategy           string  `yaml:"mergingStrategy" mapstructure:"mergingStrategy"`
}

// LoggingSettings configures the structured/human-readable loggers.
type LoggingSettings struct {
	Level string `yaml:"level" mapstructure:"level"`
	Path  string `yaml:"path" mapstructure:"path"`
}

// OriginSettings locates the template event that every registered
// channel's template was cut from. It is copied verbatim into each
// Detection the running detector emits.
type OriginSettings struct {
	Latitude  float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude float64 `yaml:"longitude" mapstructure:"longitude"`
	Depth     float64 `yaml:"depth" mapstructure:"depth"`
}

// Settings is the top-level configuration tree.
type Settings struct {
	Detector DetectorSettings `yaml:"detector" mapstructure:"detector"`
	Linker   LinkerSettings   `yaml:"linker" mapstructure:"linker"`
	Logging  LoggingSettings  `yaml:"logging" mapstructure:"logging"`
	Origin   OriginSettings   `yaml:"origin" mapstructure:"origin"`
}

// arrivalOffsetThresholdFloor is the minimum non-zero arrivalOffsetThreshold
// allowed; anything smaller is ConfigRejected.
const arrivalOffsetThresholdFloor = 2e-6

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads configuration from the default search paths (creating a
// default config file if none exists), applies environment overrides, and
// validates the result.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, errors.New(fmt.Errorf("initializing viper: %w", err)).
			Category(errors.CategoryConfig).
			Build()
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("unmarshaling config: %w", err)).
			Category(errors.CategoryConfig).
			Build()
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SEISDETECT")
	viper.AutomaticEnv()

	configPaths, err := defaultConfigPaths()
	if err != nil {
		return fmt.Errorf("getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// setDefaults mirrors the embedded config.yaml so that Load() behaves
// sensibly even when only a partial config file is present.
func setDefaults() {
	viper.SetDefault("detector.gapTolerance", 0.5)
	viper.SetDefault("detector.saturationThreshold", 0.98)
	viper.SetDefault("linker.onHold", 0.0)
	viper.SetDefault("linker.arrivalOffsetThreshold", arrivalOffsetThresholdFloor)
	viper.SetDefault("linker.associationThreshold", 0.6)
	viper.SetDefault("linker.minArrivals", 0)
	viper.SetDefault("linker.mergingStrategy", "threshold")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.path", "")
	viper.SetDefault("origin.latitude", 0.0)
	viper.SetDefault("origin.longitude", 0.0)
	viper.SetDefault("origin.depth", 0.0)
}

func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

func defaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{filepath.Join(homeDir, "AppData", "Roaming", "seisdetect")}
	default:
		paths = []string{
			filepath.Join(homeDir, ".config", "seisdetect"),
			"/etc/seisdetect",
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return paths, nil
}

// GetSettings returns the currently loaded settings, or nil if Load/Setting
// has not been called yet.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the process-wide settings singleton, loading it from disk
// on first use. Call sites that want explicit error handling should use
// Load directly instead.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath via a temp-file-then-rename
// so a crash mid-write never leaves a truncated config behind.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return fmt.Errorf("renaming temp file into place: %w", err)
	}
	return nil
}

// ResolvedArrivalOffsetThreshold returns the effective threshold, or
// (0, false) when POT checking is disabled.
func (l LinkerSettings) ResolvedArrivalOffsetThreshold() (float64, bool) {
	if l.DisableArrivalOffsetCheck {
		return 0, false
	}
	return l.ArrivalOffsetThresholdSec, true
}

// ResolvedAssociationThreshold returns the effective score floor, or
// (0, false) when any score is accepted.
func (l LinkerSettings) ResolvedAssociationThreshold() (float64, bool) {
	if l.AcceptAnyAssociationScore {
		return 0, false
	}
	return l.AssociationThreshold, true
}

// ResolvedMinArrivals returns the effective minimum, substituting
// processorCount when MinArrivals is unset (<= 0).
func (l LinkerSettings) ResolvedMinArrivals(processorCount int) int {
	if l.MinArrivals <= 0 {
		return processorCount
	}
	return l.MinArrivals
}
