package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/paths"
)

type Config struct {
	API       APIConfig       `toml:"api"`
	Locale    string          `toml:"locale"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
}

type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	Insecure     bool   `toml:"insecure"`
}

func Default() Config {
	return Config{
		API:       APIConfig{BaseURL: api.DefaultBaseURL, TimeoutMS: 30000},
		Locale:    "en",
		Telemetry: TelemetryConfig{Enabled: false, OTLPEndpoint: "http://127.0.0.1:4318", Insecure: true},
	}
}

var ErrInvalid = errors.New("invalid config")

type LoadResult struct {
	Config     Config
	Found      bool
	Path       string
	ParseError error
}

// Load reads <home>/.quickhand/config.toml. A missing file yields defaults; a
// malformed file yields defaults plus a ParseError so callers can warn
// without refusing to start.
func Load(home string) LoadResult {
	res := LoadResult{Config: Default()}
	path := paths.ConfigPath(home)
	res.Path = path

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res
		}
		res.ParseError = err
		return res
	}

	res.Found = true
	var parsed Config
	if err := toml.Unmarshal(b, &parsed); err != nil {
		res.ParseError = fmt.Errorf("%w: %v", ErrInvalid, err)
		return res
	}

	res.Config = merge(Default(), parsed)
	return res
}

func merge(def Config, cfg Config) Config {
	// API
	if cfg.API.BaseURL != "" {
		def.API.BaseURL = cfg.API.BaseURL
	}
	if cfg.API.TimeoutMS != 0 {
		def.API.TimeoutMS = cfg.API.TimeoutMS
	}
	// Locale
	if cfg.Locale != "" {
		def.Locale = cfg.Locale
	}
	// Telemetry
	def.Telemetry.Enabled = cfg.Telemetry.Enabled
	def.Telemetry.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.OTLPEndpoint != "" {
		def.Telemetry.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	return def
}
