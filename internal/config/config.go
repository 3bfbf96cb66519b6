// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RAGBENCH_HOST" yaml:"host"`
	Port int    `envconfig:"RAGBENCH_PORT" yaml:"port"`

	// Qdrant configuration (vector retriever)
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Redis configuration (run history store)
	Redis RedisConfig `yaml:"redis"`

	// Bus configuration (run lifecycle events)
	Bus BusConfig `yaml:"bus"`

	// Eval configuration (fusion, chunking, runner)
	Eval EvalConfig `yaml:"eval"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port       int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey     string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	Collection string `envconfig:"QDRANT_COLLECTION" yaml:"collection"`
	UseTLS     bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
}

// RedisConfig holds run-store settings.
type RedisConfig struct {
	URL        string `envconfig:"RAGBENCH_REDIS_URL" yaml:"url"`
	HistoryTTL int    `envconfig:"RAGBENCH_HISTORY_TTL_HOURS" yaml:"history_ttl_hours"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type          string `envconfig:"RAGBENCH_BUS_TYPE" yaml:"type"`
	KafkaBrokers  string `envconfig:"RAGBENCH_KAFKA_BROKERS" yaml:"kafka_brokers"`
	ConsumerGroup string `envconfig:"RAGBENCH_KAFKA_GROUP" yaml:"consumer_group"`
}

// EvalConfig holds evaluation settings.
type EvalConfig struct {
	// RRFK is the reciprocal rank fusion smoothing constant.
	RRFK int `envconfig:"RAGBENCH_RRF_K" yaml:"rrf_k"`

	// TopK is the default fused result cutoff.
	TopK int `envconfig:"RAGBENCH_TOP_K" yaml:"top_k"`

	// ChunkTokens and OverlapTokens are the chunker budgets.
	ChunkTokens   int `envconfig:"RAGBENCH_CHUNK_TOKENS" yaml:"chunk_tokens"`
	OverlapTokens int `envconfig:"RAGBENCH_OVERLAP_TOKENS" yaml:"overlap_tokens"`

	// WordRatio converts token budgets to word counts.
	WordRatio float64 `envconfig:"RAGBENCH_WORD_RATIO" yaml:"word_ratio"`

	// Workers bounds the evaluation worker pool.
	Workers int `envconfig:"RAGBENCH_EVAL_WORKERS" yaml:"workers"`

	// RetrieveRate caps retriever calls per second (0 = unlimited).
	RetrieveRate float64 `envconfig:"RAGBENCH_RETRIEVE_RATE" yaml:"retrieve_rate"`

	// Ks are the @K cutoffs for retrieval metrics.
	Ks []int `envconfig:"RAGBENCH_METRIC_KS" yaml:"ks"`

	// BleuN is the maximum BLEU n-gram order.
	BleuN int `envconfig:"RAGBENCH_BLEU_N" yaml:"bleu_n"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RAGBENCH_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RAGBENCH_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	APIKey    string `envconfig:"RAGBENCH_API_KEY" yaml:"api_key"`
	RateLimit int    `envconfig:"RAGBENCH_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Qdrant = QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "ragbench",
	}

	cfg.Redis = RedisConfig{
		URL:        "redis://localhost:6379",
		HistoryTTL: 720, // 30 days
	}

	cfg.Bus = BusConfig{
		Type:          "memory",
		ConsumerGroup: "rag-bench",
	}

	cfg.Eval = EvalConfig{
		RRFK:          60,
		TopK:          10,
		ChunkTokens:   512,
		OverlapTokens: 64,
		WordRatio:     1.3,
		Workers:       4,
		Ks:            []int{1, 3, 5, 10},
		BleuN:         4,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.Bus.Type {
	case "memory", "kafka", "":
	default:
		return fmt.Errorf("invalid bus type: %s", c.Bus.Type)
	}
	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		return fmt.Errorf("kafka bus requires brokers")
	}

	if c.Eval.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %d", c.Eval.RRFK)
	}
	if c.Eval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Eval.TopK)
	}
	if c.Eval.OverlapTokens >= c.Eval.ChunkTokens {
		return fmt.Errorf("overlap_tokens (%d) must be smaller than chunk_tokens (%d)",
			c.Eval.OverlapTokens, c.Eval.ChunkTokens)
	}
	if c.Eval.WordRatio <= 1 {
		return fmt.Errorf("word_ratio must be greater than 1, got %g", c.Eval.WordRatio)
	}
	if c.Eval.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Eval.Workers)
	}
	if c.Eval.BleuN < 1 || c.Eval.BleuN > 4 {
		return fmt.Errorf("bleu_n must be in [1, 4], got %d", c.Eval.BleuN)
	}

	return nil
}

// Address returns the host:port server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
