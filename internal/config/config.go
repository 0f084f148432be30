// Package config provides configuration loading and validation for the
// authstream processes. It uses koanf to merge environment variables with
// optional file overrides; environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values shared by the API server and the
// auditor consumer.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Datastore (PostgreSQL)
	DBHost     string `koanf:"db_host"`
	DBPort     int    `koanf:"db_port"`
	DBUser     string `koanf:"db_user"`
	DBPassword string `koanf:"db_password"`
	DBName     string `koanf:"db_name"`
	DBSSLMode  string `koanf:"db_sslmode"`

	// Broker (NATS)
	NATSURL string `koanf:"nats_url"`

	// BrokerConnectDelay is how long the API server waits before its
	// background broker connection attempt begins.
	BrokerConnectDelay time.Duration `koanf:"broker_connect_delay"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// MetricsPort is where the auditor serves its Prometheus endpoint.
	MetricsPort int `koanf:"metrics_port"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required")
	ErrInvalidPort      = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort               = 3001
	DefaultEnv                = "development"
	DefaultDBHost             = "localhost"
	DefaultDBPort             = 5432
	DefaultDBUser             = "postgres"
	DefaultDBName             = "authstream"
	DefaultDBSSLMode          = "disable"
	DefaultNATSURL            = "nats://localhost:4222"
	DefaultBrokerConnectDelay = 5 * time.Second
	DefaultMetricsPort        = 9102
)

// Load reads configuration from environment variables and an optional YAML
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). If a config file path is provided and the file cannot be loaded,
// an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	dbPort, dbPortErr := getEnvIntOrDefault("DB_PORT", k.Int("db_port"), DefaultDBPort)
	if dbPortErr != nil {
		loadErrs = append(loadErrs, dbPortErr)
	}

	metricsPort, metricsPortErr := getEnvIntOrDefault("METRICS_PORT", k.Int("metrics_port"), DefaultMetricsPort)
	if metricsPortErr != nil {
		loadErrs = append(loadErrs, metricsPortErr)
	}

	connectDelay := DefaultBrokerConnectDelay
	if delayStr := getEnvOrKoanf("BROKER_CONNECT_DELAY", k, "broker_connect_delay"); delayStr != "" {
		d, err := time.ParseDuration(delayStr)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("BROKER_CONNECT_DELAY must be a valid duration: %w", err))
		} else {
			connectDelay = d
		}
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DBHost:             getEnvOrDefault("DB_HOST", k.String("db_host"), DefaultDBHost),
		DBPort:             dbPort,
		DBUser:             getEnvOrDefault("DB_USER", k.String("db_user"), DefaultDBUser),
		DBPassword:         getEnvOrKoanf("DB_PASSWORD", k, "db_password"),
		DBName:             getEnvOrDefault("DB_NAME", k.String("db_name"), DefaultDBName),
		DBSSLMode:          getEnvOrDefault("DB_SSLMODE", k.String("db_sslmode"), DefaultDBSSLMode),
		NATSURL:            getEnvOrDefault("NATS_URL", k.String("nats_url"), DefaultNATSURL),
		BrokerConnectDelay: connectDelay,
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		MetricsPort:        metricsPort,
	}

	return cfg, loadErrs
}

// DatabaseURL assembles the postgres connection string from the individual
// datastore settings.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ValidateServer checks the values the API server requires on top of the
// defaults. The auditor does not need a JWT secret, so this is separate
// from Load.
func (c *Config) ValidateServer() []error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	return errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}
