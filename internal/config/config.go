// Package config loads layered service configuration: built-in
// defaults, an optional YAML file, then environment variables with the
// ROUTELOOM_ prefix (ROUTELOOM_SERVER_ADDR -> server.addr).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the service's environment variables.
const envPrefix = "ROUTELOOM_"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Cache    CacheConfig    `koanf:"cache"`
	Search   SearchConfig   `koanf:"search"`
	Route    RouteConfig    `koanf:"route"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type StorageConfig struct {
	Path string `koanf:"path"` // catalog SQLite database
}

type CacheConfig struct {
	MemorySize     int           `koanf:"memory_size"`
	MemoryTTL      time.Duration `koanf:"memory_ttl"`
	DurableDir     string        `koanf:"durable_dir"` // empty disables the durable tier
	DurableTTL     time.Duration `koanf:"durable_ttl"`
	DurableTimeout time.Duration `koanf:"durable_timeout"`
	ComputeTimeout time.Duration `koanf:"compute_timeout"`
}

type SearchConfig struct {
	TextWeight   float64       `koanf:"text_weight"`
	VectorWeight float64       `koanf:"vector_weight"`
	MaxResults   int           `koanf:"max_results"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

type RouteConfig struct {
	Steps           int     `koanf:"steps"`
	MinStepDistance float64 `koanf:"min_step_distance"`
	MaxStepDistance float64 `koanf:"max_step_distance"`
	MinRelevance    float64 `koanf:"min_relevance"`
	MatchWeight     float64 `koanf:"match_weight"`
	GeoWeight       float64 `koanf:"geo_weight"`
	RatingWeight    float64 `koanf:"rating_weight"`
	DiversityWeight float64 `koanf:"diversity_weight"`
}

type EmbedderConfig struct {
	Provider string `koanf:"provider"` // "local" or "openai"
	APIKey   string `koanf:"api_key"`
}

type IngestConfig struct {
	SeedFile string `koanf:"seed_file"`
	City     string `koanf:"city"`
	Enricher string `koanf:"enricher"`
	Workers  int    `koanf:"workers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Path: "data/catalog.db",
		},
		Cache: CacheConfig{
			MemorySize:     1024,
			MemoryTTL:      time.Hour,
			DurableDir:     "data/cache",
			DurableTTL:     7 * 24 * time.Hour,
			DurableTimeout: 500 * time.Millisecond,
			ComputeTimeout: 10 * time.Second,
		},
		Search: SearchConfig{
			TextWeight:   0.6,
			VectorWeight: 0.4,
			MaxResults:   20,
			QueryTimeout: 2 * time.Second,
		},
		Route: RouteConfig{
			Steps:           3,
			MinStepDistance: 300,
			MaxStepDistance: 1200,
			MinRelevance:    0.05,
			MatchWeight:     0.50,
			GeoWeight:       0.25,
			RatingWeight:    0.15,
			DiversityWeight: 0.10,
		},
		Embedder: EmbedderConfig{
			Provider: "local",
		},
		Ingest: IngestConfig{
			City:     "bangkok",
			Enricher: "stub",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, the optional YAML file at
// path (empty means skip), and ROUTELOOM_ environment variables, in
// increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Keys are two levels deep, so only the first underscore separates
	// section from key: ROUTELOOM_SERVER_READ_TIMEOUT -> server.read_timeout.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Search.TextWeight < 0 || c.Search.VectorWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.TextWeight+c.Search.VectorWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}
	if c.Route.Steps <= 0 {
		return fmt.Errorf("route.steps must be positive")
	}
	if c.Route.MinStepDistance >= c.Route.MaxStepDistance {
		return fmt.Errorf("route.min_step_distance must be below route.max_step_distance")
	}
	switch c.Embedder.Provider {
	case "local", "openai":
	default:
		return fmt.Errorf("embedder.provider must be local or openai, got %q", c.Embedder.Provider)
	}
	return nil
}
