// Package config provides the unified configuration system for Atlasync.
// A single BaseConfig structure is shared by all connectors, organized into
// logical sections:
//   - Performance: batch sizes, concurrency, buffering
//   - Timeouts: connection and operation timeouts
//   - Reliability: retries, circuit breakers, rate limiting
//   - Security: TLS and credentials
//   - Observability: metrics and logging
//   - Advanced: optional features like output compression
//
// Example usage:
//
//	cfg := config.NewBaseConfig("jira-prod", "jira")
//	cfg.Security.Credentials["domain"] = "example.atlassian.net"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// BaseConfig is the unified configuration structure all connectors use.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the connector type (e.g., "jira", "json")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Performance settings control throughput and resource usage
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Security configuration for authentication and encryption
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Advanced features and optimizations
	Advanced AdvancedConfig `yaml:"advanced" json:"advanced"`
}

// PerformanceConfig contains throughput and concurrency settings.
type PerformanceConfig struct {
	// BatchSize controls the number of records processed together.
	// For API sources it is also the requested page size.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the size of internal channels and buffers
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// Workers defines the number of concurrent workers
	Workers int `yaml:"workers" json:"workers"`
	// MaxConcurrency limits total concurrent operations
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// FlushInterval triggers periodic batch flushes
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
	// EnableStreaming enables streaming mode if supported
	EnableStreaming bool `yaml:"enable_streaming" json:"enable_streaming"`
}

// TimeoutConfig prevents operations from hanging indefinitely.
type TimeoutConfig struct {
	// Request timeout for individual operations
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig contains retry and resilience settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for failed operations
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// CircuitBreaker enables the circuit breaker
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits operations per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// HealthCheck enables periodic health checks
	HealthCheck bool `yaml:"health_check" json:"health_check"`
	// FailFast stops on first error instead of continuing
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// SecurityConfig contains authentication and encryption settings.
type SecurityConfig struct {
	// EnableTLS enables TLS/SSL encryption
	EnableTLS bool `yaml:"enable_tls" json:"enable_tls"`
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// AuthType specifies the authentication method (basic, oauth2)
	AuthType string `yaml:"auth_type" json:"auth_type"`
	// Credentials stores connector credentials and connection settings.
	// Use ${ENV_VAR} references in YAML rather than literal secrets.
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig enables tracking of connector behavior.
type ObservabilityConfig struct {
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableLogging controls logging output
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
	// MetricsInterval sets how often metrics are collected
	MetricsInterval time.Duration `yaml:"metrics_interval" json:"metrics_interval"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// AdvancedConfig contains optional advanced features.
type AdvancedConfig struct {
	// EnableCompression activates output compression
	EnableCompression bool `yaml:"enable_compression" json:"enable_compression"`
	// CompressionAlgorithm selects compression type (gzip)
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	// CompressionLevel sets compression ratio vs speed (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
	// Debug enables detailed debug output
	Debug bool `yaml:"debug" json:"debug"`
}

// NewBaseConfig creates a BaseConfig with production-ready defaults.
// Connectors override what they need after construction.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:       100,
			BufferSize:      10000,
			Workers:         runtime.NumCPU(),
			MaxConcurrency:  10,
			FlushInterval:   10 * time.Second,
			EnableStreaming: true,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       5 * time.Minute,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
			HealthCheck:     true,
			FailFast:        false,
		},
		Security: SecurityConfig{
			EnableTLS:     true,
			TLSSkipVerify: false,
			Credentials:   make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:   true,
			EnableLogging:   true,
			MetricsInterval: 30 * time.Second,
			LogLevel:        "info",
		},
		Advanced: AdvancedConfig{
			EnableCompression:    false,
			CompressionAlgorithm: "gzip",
			CompressionLevel:     6,
			Debug:                false,
		},
	}
}

// Validate checks required fields and value ranges. Connectors should call
// this after loading configuration to catch errors early.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if bc.Performance.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if bc.Performance.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	return nil
}

// GetWorkers returns the number of workers, defaulting to NumCPU.
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// IsRateLimited returns true if rate limiting is enabled.
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// HasCredentials returns true if credentials are configured.
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}

// IsCompressionEnabled returns true if output should be compressed.
func (a *AdvancedConfig) IsCompressionEnabled() bool {
	return a.EnableCompression && a.CompressionAlgorithm != ""
}
