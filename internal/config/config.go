// Package config loads service settings from a .env file, an optional YAML
// file named by CONFIG_FILE, and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Store    StoreConfig    `yaml:"store"`
	JWT      JWTConfig      `yaml:"jwt"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`

	// PartitionRetention is how long a partition left by a rename is kept.
	PartitionRetention time.Duration `yaml:"partition_retention"`
	BcryptCost         int           `yaml:"bcrypt_cost"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
	MongoURI    string `yaml:"mongo_uri"`
	// MasterDB is the Postgres registry schema or the Mongo database.
	MasterDB string `yaml:"master_db"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Algorithm  string        `yaml:"algorithm"`
	Expiration time.Duration `yaml:"expiration"`
}

type RabbitMQConfig struct {
	// URL is optional; an empty URL disables event publishing.
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		Store: StoreConfig{
			Driver:   DriverPostgres,
			MongoURI: "mongodb://localhost:27017/",
			MasterDB: "multitenant_master",
		},
		JWT: JWTConfig{
			Algorithm:  "HS256",
			Expiration: 86400 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Exchange: "tenant.events",
		},
		PartitionRetention: 30 * 24 * time.Hour,
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "tenant-service",
			Environment:  "production",
		},
	}
}

// Load reads .env (if present), then CONFIG_FILE or path (if set), then the
// environment. It does not validate.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("LISTEN_ADDR", &cfg.ListenAddr)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("DATABASE_URL", &cfg.Store.DatabaseURL)
	str("MONGO_URI", &cfg.Store.MongoURI)
	str("MASTER_DB", &cfg.Store.MasterDB)

	// SECRET_KEY is the fallback signing secret.
	str("SECRET_KEY", &cfg.JWT.Secret)
	str("JWT_SECRET", &cfg.JWT.Secret)
	str("JWT_ALGORITHM", &cfg.JWT.Algorithm)
	if v, ok := lookup("JWT_EXP_SECONDS"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXP_SECONDS %q: %w", v, err)
		}
		cfg.JWT.Expiration = time.Duration(secs) * time.Second
	}

	str("RABBITMQ_URL", &cfg.RabbitMQ.URL)
	str("RABBITMQ_EXCHANGE", &cfg.RabbitMQ.Exchange)

	if v, ok := lookup("PARTITION_RETENTION"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PARTITION_RETENTION %q: %w", v, err)
		}
		cfg.PartitionRetention = d
	}
	if v, ok := lookup("BCRYPT_COST"); ok && v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = cost
	}

	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED %q: %w", v, err)
		}
		cfg.Telemetry.Enabled = enabled
	}
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	str("ENVIRONMENT", &cfg.Telemetry.Environment)

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate reports the first setting that would stop the service from
// starting.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required (LISTEN_ADDR)")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (postgres, mongo or memory)", c.Store.Driver)
	}
	if c.Store.MasterDB == "" {
		return errors.New("MASTER_DB is required")
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("JWT_EXP_SECONDS must be positive")
	}

	if c.PartitionRetention <= 0 {
		return errors.New("PARTITION_RETENTION must be positive")
	}
	return nil
}
