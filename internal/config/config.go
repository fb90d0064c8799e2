package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analysis service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Narrative  NarrativeConfig  `yaml:"narrative"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StorageConfig locates the telemetry document tree.
type StorageConfig struct {
	BasePath string `yaml:"basePath"`
}

// CacheConfig controls Redis-backed caching of document reads.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	DocumentTTL  time.Duration `yaml:"documentTTL"`
}

// ThresholdsConfig locates the metric threshold table. An empty path keeps
// the built-in defaults.
type ThresholdsConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig tunes the diagnosis pipeline.
type AnalysisConfig struct {
	SLALimitHours float64       `yaml:"slaLimitHours"`
	ClusterGap    time.Duration `yaml:"clusterGap"`
}

// NarrativeConfig controls the model-backed chat formatter.
type NarrativeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
	APIKey    string `yaml:"apiKey"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("RCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{BasePath: "data"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			DocumentTTL:  5 * time.Minute,
		},
		Thresholds: ThresholdsConfig{},
		Analysis: AnalysisConfig{
			SLALimitHours: 3.0,
			ClusterGap:    15 * time.Minute,
		},
		Narrative: NarrativeConfig{
			Enabled:   false,
			MaxTokens: 1024,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("RCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("RCA_STORAGE_BASE_PATH"); v != "" {
		cfg.Storage.BasePath = v
	}
	if v := os.Getenv("RCA_THRESHOLDS_PATH"); v != "" {
		cfg.Thresholds.Path = v
	}
	if v := os.Getenv("RCA_SLA_LIMIT_HOURS"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit > 0 {
			cfg.Analysis.SLALimitHours = limit
		}
	}
	if v := os.Getenv("RCA_CLUSTER_GAP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Analysis.ClusterGap = d
		}
	}
	if v := os.Getenv("RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("RCA_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("RCA_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("RCA_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("RCA_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("RCA_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("RCA_CACHE_DOCUMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DocumentTTL = d
		}
	}
	if v := os.Getenv("RCA_NARRATIVE_ENABLED"); v != "" {
		cfg.Narrative.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("RCA_NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("RCA_NARRATIVE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Narrative.MaxTokens = n
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Narrative.APIKey == "" {
		cfg.Narrative.APIKey = v
	}
}
