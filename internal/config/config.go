package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend drivers.
const (
	DriverElasticsearch = "elasticsearch"
	DriverRedis         = "redis"
)

// Replay source drivers.
const (
	SourceNone     = "none"
	SourceMongo    = "mongo"
	SourcePostgres = "postgres"
)

// Config holds the brokerdex service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Auth    AuthConfig    `yaml:"auth"`
	Backend BackendConfig `yaml:"backend"`
	Broker  Section       `yaml:"databroker-elasticsearch"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Source  SourceConfig  `yaml:"source"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API keys for state-changing requests. Empty disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects the index store. Elasticsearch hosts come from
// the databroker-elasticsearch section; Addrs and Password apply to redis.
type BackendConfig struct {
	Driver           string   `yaml:"driver"` // elasticsearch, redis (default: elasticsearch)
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
}

// KafkaConfig holds the live start-document stream settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// SourceConfig selects the replay source used by rebuild.
type SourceConfig struct {
	Driver   string         `yaml:"driver"` // mongo, postgres, none (default: none)
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MongoConfig points at the databroker metadata store.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// PostgresConfig points at a table of jsonb start documents.
type PostgresConfig struct {
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverElasticsearch
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "brokerdex"
	}
	if c.Source.Driver == "" {
		c.Source.Driver = SourceNone
	}
	if c.Source.Mongo.Collection == "" {
		c.Source.Mongo.Collection = "run_start"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case DriverElasticsearch:
		if len(c.Broker.Connection().Hosts) == 0 {
			return errors.New("databroker-elasticsearch.host is required for the elasticsearch backend")
		}
	case DriverRedis:
		if len(c.Backend.Addrs) == 0 {
			return errors.New("backend.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("backend.driver must be %q or %q, got %q", DriverElasticsearch, DriverRedis, c.Backend.Driver)
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("databroker-elasticsearch: %w", err)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	switch c.Source.Driver {
	case SourceNone:
	case SourceMongo:
		if c.Source.Mongo.URI == "" || c.Source.Mongo.Database == "" {
			return errors.New("source.mongo.uri and source.mongo.database are required")
		}
	case SourcePostgres:
		if c.Source.Postgres.DSN == "" || c.Source.Postgres.Table == "" {
			return errors.New("source.postgres.dsn and source.postgres.table are required")
		}
	default:
		return fmt.Errorf("source.driver must be %q, %q or %q, got %q",
			SourceMongo, SourcePostgres, SourceNone, c.Source.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
