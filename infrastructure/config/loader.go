package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "thoughtweb/domain/config"
)

// Loader builds a Config from, lowest priority first:
//  1. defaults for the environment
//  2. the YAML file at path, when it exists
//  3. environment variables
type Loader struct {
	path        string
	environment Environment
	getenv      func(string) string
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(path string, env Environment) *Loader {
	return &Loader{
		path:        path,
		environment: env,
		getenv:      os.Getenv,
	}
}

// Path is the YAML file the loader reads, possibly empty.
func (l *Loader) Path() string {
	return l.path
}

// Load applies every layer and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := defaultConfig(l.environment)
	cfg.LoadedFrom = []string{"defaults"}

	if l.path != "" {
		loaded, err := l.loadFile(cfg)
		if err != nil {
			return nil, err
		}
		if loaded {
			cfg.LoadedFrom = append(cfg.LoadedFrom, l.path)
		}
	}

	l.applyEnvironment(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) (bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open %s: %w", l.path, err)
	}
	defer f.Close()

	// Decoding into the populated struct keeps every key the file omits.
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to parse %s: %w", l.path, err)
	}
	return true, nil
}

func (l *Loader) applyEnvironment(cfg *Config) {
	l.setString(&cfg.Server.Host, "SERVER_HOST")
	l.setInt(&cfg.Server.Port, "SERVER_PORT")

	l.setString(&cfg.Storage.Provider, "STORAGE_PROVIDER")
	l.setString(&cfg.Storage.SQLitePath, "SQLITE_PATH")
	l.setString(&cfg.Storage.TableName, "TABLE_NAME")

	l.setString(&cfg.AWS.Region, "AWS_REGION")
	l.setString(&cfg.AWS.Endpoint, "AWS_ENDPOINT_URL")

	l.setString(&cfg.Events.Provider, "EVENTS_PROVIDER")
	l.setString(&cfg.Events.EventBusName, "EVENT_BUS_NAME")

	l.setBool(&cfg.Metrics.Enabled, "ENABLE_METRICS")
	l.setBool(&cfg.Tracing.Enabled, "ENABLE_TRACING")
	l.setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	l.setString(&cfg.Logging.Level, "LOG_LEVEL")

	l.setBool(&cfg.Domain.Connection.EnableBackgroundDiscovery, "ENABLE_BACKGROUND_DISCOVERY")
	l.setDuration(&cfg.Domain.Connection.DiscoveryInterval, "DISCOVERY_INTERVAL")

	if val := l.getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		origins := strings.Split(val, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

func (l *Loader) setString(dst *string, key string) {
	if val := l.getenv(key); val != "" {
		*dst = val
	}
}

func (l *Loader) setInt(dst *int, key string) {
	if n, err := strconv.Atoi(l.getenv(key)); err == nil && n > 0 {
		*dst = n
	}
}

func (l *Loader) setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(l.getenv(key)); err == nil {
		*dst = b
	}
}

func (l *Loader) setDuration(dst *time.Duration, key string) {
	if d, err := time.ParseDuration(l.getenv(key)); err == nil && d > 0 {
		*dst = d
	}
}

func defaultConfig(env Environment) *Config {
	cfg := &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  10 * 1024 * 1024,
		},
		Storage: Storage{
			Provider:   "memory",
			SQLitePath: "thoughtweb.db",
			TableName:  "thoughtweb-" + string(env),
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         10 * time.Second,
				OpenTimeout:      30 * time.Second,
				FailureThreshold: 5,
			},
			Timeout: 10 * time.Second,
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		Events: Events{
			Provider:     "log",
			EventBusName: "default",
			Source:       "thoughtweb",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "thoughtweb",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "thoughtweb",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRate:  1.0,
		},
		Logging: Logging{
			Level: "info",
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		},
		Domain: *domainconfig.LoadDomainConfig(string(env)),
	}

	switch env {
	case Development:
		cfg.Logging.Level = "debug"
	case Production:
		cfg.Events.Provider = "eventbridge"
		cfg.Storage.Provider = "dynamodb"
		cfg.Tracing.SampleRate = 0.1
		cfg.Tracing.Insecure = false
	}
	return cfg
}

// ParseEnvironment accepts the long and short environment names.
// Anything unrecognised is development.
func ParseEnvironment(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

// Load reads ENVIRONMENT and CONFIG_FILE and loads the configuration.
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_FILE"), ParseEnvironment(os.Getenv("ENVIRONMENT"))).Load()
}
