// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// infrastructure (Server, Database, Redis, Kafka, Logging, Metrics) and for
// the retrieval and evaluation components (Keyword, TFIDF, Judge, Evaluation).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Keyword    KeywordConfig    `yaml:"keyword"`
	TFIDF      TFIDFConfig      `yaml:"tfidf"`
	Judge      JudgeConfig      `yaml:"judge"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
	// CompareRateLimit caps comparison requests per client per minute;
	// 0 disables the limit.
	CompareRateLimit int `yaml:"compareRateLimit"`
}

// DatabaseConfig selects the corpus store. Driver is "sqlite" (a file path
// in Path) or "postgres" (the remaining connection fields).
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
		)
	}
	return d.Path
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	ConsumerGroup   string   `yaml:"consumerGroup"`
	EvaluationTopic string   `yaml:"evaluationTopic"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// KeywordConfig mirrors keyword.Config.
type KeywordConfig struct {
	CaseSensitive      bool    `yaml:"caseSensitive"`
	ExactMatchWeight   float64 `yaml:"exactMatchWeight"`
	PartialMatchWeight float64 `yaml:"partialMatchWeight"`
	FieldBoost         float64 `yaml:"fieldBoost"`
	PartialPolicy      string  `yaml:"partialPolicy"`
}

// TFIDFConfig mirrors tfidf.Config.
type TFIDFConfig struct {
	CaseSensitive bool    `yaml:"caseSensitive"`
	MinDF         int     `yaml:"minDF"`
	MaxDF         float64 `yaml:"maxDF"`
}

// JudgeConfig controls synthetic relevance judgments.
type JudgeConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// EvaluationConfig controls the comparison run.
type EvaluationConfig struct {
	Algorithms  []string `yaml:"algorithms"`
	KValues     []int    `yaml:"kValues"`
	Limit       int      `yaml:"limit"`
	Concurrency int      `yaml:"concurrency"`
	Dataset     string   `yaml:"dataset"`
	CorpusLimit int      `yaml:"corpusLimit"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults suited to a local research
// checkout: SQLite corpus, no Redis or Kafka.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			ShutdownTimeout:  15 * time.Second,
			CompareRateLimit: 30,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "data/ecommerce_research.db",
			Host:            "localhost",
			Port:            5432,
			Database:        "ecommerce_research",
			User:            "research",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			ConsumerGroup:   "searchbench-group",
			EvaluationTopic: "evaluation-events",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Keyword: KeywordConfig{
			ExactMatchWeight:   2.0,
			PartialMatchWeight: 0.3,
			FieldBoost:         1.5,
			PartialPolicy:      "substring",
		},
		TFIDF: TFIDFConfig{
			MinDF: 1,
			MaxDF: 0.95,
		},
		Judge: JudgeConfig{
			Threshold: 0.3,
		},
		Evaluation: EvaluationConfig{
			Algorithms:  []string{"keyword_matching", "tfidf"},
			KValues:     []int{1, 3, 5, 10},
			Limit:       10,
			Concurrency: 4,
			Dataset:     "api",
		},
	}
}

// applyEnvOverrides reads SE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SE_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SE_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SE_DATABASE_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("SE_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SE_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("SE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SE_JUDGE_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Judge.Threshold = th
		}
	}
	if v := os.Getenv("SE_EVALUATION_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.Concurrency = n
		}
	}
}
