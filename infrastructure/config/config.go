// Package config loads the runtime configuration of thoughtweb from
// defaults, an optional YAML file and environment variables.
package config

import (
	"net"
	"strconv"
	"time"

	domainconfig "thoughtweb/domain/config"
	"thoughtweb/pkg/utils"
)

// Environment names a deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete runtime configuration.
type Config struct {
	Environment Environment               `yaml:"environment" validate:"required,oneof=development staging production"`
	Server      Server                    `yaml:"server"`
	Storage     Storage                   `yaml:"storage"`
	AWS         AWS                       `yaml:"aws"`
	Events      Events                    `yaml:"events"`
	Metrics     Metrics                   `yaml:"metrics"`
	Tracing     Tracing                   `yaml:"tracing"`
	Logging     Logging                   `yaml:"logging"`
	CORS        CORS                      `yaml:"cors"`
	Domain      domainconfig.DomainConfig `yaml:"domain"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP listener.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxRequestSize  int64         `yaml:"max_request_size" validate:"gt=0"`
}

// Storage selects and tunes the snapshot store.
type Storage struct {
	Provider   string        `yaml:"provider" validate:"oneof=memory sqlite dynamodb"`
	SQLitePath string        `yaml:"sqlite_path"`
	TableName  string        `yaml:"table_name"`
	Retry      RetryConfig   `yaml:"retry"`
	Breaker    BreakerConfig `yaml:"breaker"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

// RetryConfig tunes exponential backoff around storage calls.
type RetryConfig struct {
	MaxRetries   uint64        `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `yaml:"max_delay" validate:"gt=0"`
}

// BreakerConfig tunes the storage circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval"`
	OpenTimeout      time.Duration `yaml:"open_timeout" validate:"gt=0"`
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gte=1"`
}

// AWS holds SDK settings shared by DynamoDB and EventBridge.
type AWS struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Events selects where domain events are published.
type Events struct {
	Provider     string `yaml:"provider" validate:"oneof=none log eventbridge"`
	EventBusName string `yaml:"event_bus_name"`
	Source       string `yaml:"source"`
}

// Metrics toggles the Prometheus collector.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required"`
	Path      string `yaml:"path" validate:"required,startswith=/"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Logging configures zap.
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// CORS configures cross-origin access to the REST API.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" validate:"gte=0"`
}

// Validate checks the whole tree, domain thresholds included.
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// IsDevelopment reports whether hot reloading and verbose logging apply.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// Addr is the listen address of the HTTP server.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
