package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Atlas     AtlasConfig     `yaml:"atlas"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Engine    EngineConfig    `yaml:"engine"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// DatasetConfig selects where region data comes from. Source is either
// "geojson" (Path points at a directory of FeatureCollections) or
// "postgres" (Database.URL must be set). InvertKeys lists raw score
// columns where lower is better, such as flood risk or vehicle miles.
type DatasetConfig struct {
	Source      string   `yaml:"source"`
	Name        string   `yaml:"name"`
	Path        string   `yaml:"path"`
	StateFilter string   `yaml:"state_filter"`
	InvertKeys  []string `yaml:"invert_keys"`
}

type AtlasConfig struct {
	URL string `yaml:"url"`
}

// NarrativeConfig drives the optional language-model integration.
// Provider is "anthropic", "proxy", or "off".
type NarrativeConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Fallback  string `yaml:"fallback"`
}

type EngineConfig struct {
	FrameIntervalMs   int `yaml:"frame_interval_ms"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
	MaxSessions       int `yaml:"max_sessions"`
}

type ScoringConfig struct {
	Scheme         string         `yaml:"scheme"`
	Palette        string         `yaml:"palette"`
	MatchCutoff    float64        `yaml:"match_cutoff"`
	DefaultWeights map[string]int `yaml:"default_weights"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Engine.FrameIntervalMs) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Engine.SessionTTLMinutes) * time.Minute
}

func (c *Config) NarrativeTimeout() time.Duration {
	return time.Duration(c.Narrative.TimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Dataset: DatasetConfig{
			Source: "geojson",
			Name:   "bay-area",
			Path:   "./data",
		},
		Atlas: AtlasConfig{
			URL: "nats://localhost:4222",
		},
		Narrative: NarrativeConfig{
			Provider:  "off",
			BaseURL:   "http://localhost:9600",
			Model:     "claude-haiku-4-5",
			MaxTokens: 512,
			TimeoutMs: 12000,
		},
		Engine: EngineConfig{
			FrameIntervalMs:   150,
			SessionTTLMinutes: 45,
			MaxSessions:       512,
		},
		Scoring: ScoringConfig{
			Scheme:      "category",
			Palette:     "thermal",
			MatchCutoff: 70,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MOSAIC_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MOSAIC_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("MOSAIC_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("MOSAIC_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MOSAIC_DATASET_SOURCE"); v != "" {
		cfg.Dataset.Source = v
	}
	if v := os.Getenv("MOSAIC_DATASET_NAME"); v != "" {
		cfg.Dataset.Name = v
	}
	if v := os.Getenv("MOSAIC_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("MOSAIC_ATLAS_URL"); v != "" {
		cfg.Atlas.URL = v
	}
	if v := os.Getenv("MOSAIC_NARRATIVE_PROVIDER"); v != "" {
		cfg.Narrative.Provider = v
	}
	if v := os.Getenv("MOSAIC_NARRATIVE_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Narrative.APIKey == "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("MOSAIC_NARRATIVE_BASE_URL"); v != "" {
		cfg.Narrative.BaseURL = v
	}
	if v := os.Getenv("MOSAIC_NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("MOSAIC_FRAME_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.FrameIntervalMs = n
		}
	}
	if v := os.Getenv("MOSAIC_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxSessions = n
		}
	}
	if v := os.Getenv("MOSAIC_SCORING_SCHEME"); v != "" {
		cfg.Scoring.Scheme = v
	}
	if v := os.Getenv("MOSAIC_PALETTE"); v != "" {
		cfg.Scoring.Palette = v
	}
	if v := os.Getenv("MOSAIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
