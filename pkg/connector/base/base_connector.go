// Package base provides BaseConnector, the shared foundation every
// Atlasync connector embeds. It wires up circuit breaking, rate
// limiting, health monitoring, retry logic and metrics so individual
// connectors only implement their own data movement.
//
// Connectors embed BaseConnector and call Initialize before use:
//
//	type JiraSource struct {
//	    *base.BaseConnector
//	    // source-specific fields
//	}
//
//	func NewJiraSource() *JiraSource {
//	    return &JiraSource{
//	        BaseConnector: base.NewBaseConnector("jira", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
package base

import (
	"context"
	"sync"
	"time"

	"github.com/atlasync/atlasync/pkg/clients"
	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/errors"
	"github.com/atlasync/atlasync/pkg/logger"
	"github.com/atlasync/atlasync/pkg/metrics"
	"github.com/atlasync/atlasync/pkg/pool"
	"go.uber.org/zap"
)

// BaseConnector carries the production features common to all
// connectors: circuit breaker, rate limiter, health checks, retry
// policy and error handling.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	// State for incremental sync
	state      core.State
	position   core.Position
	stateMutex sync.RWMutex

	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex

	circuitBreaker   *clients.CircuitBreaker
	rateLimiter      clients.RateLimiter
	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	errorHandler     *ErrorHandler
	retryPolicy      *RetryPolicy
}

// NewBaseConnector creates a base connector with the given name, type
// and version. Call Initialize before use.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		state:         make(core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize sets up circuit breaking, rate limiting, health
// monitoring, metrics and retry handling from the given config. Must
// be called before the connector is used.
func (bc *BaseConnector) Initialize(ctx context.Context, config *config.BaseConfig) error {
	bc.config = config
	bc.ctx, bc.cancel = context.WithCancel(ctx)

	bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	})

	if config.Reliability.RateLimitPerSec > 0 {
		// Allow bursts up to 2x the configured rate.
		bc.rateLimiter = clients.NewRateLimiter(
			config.Reliability.RateLimitPerSec,
			config.Reliability.RateLimitPerSec*2,
		)
	}

	bc.healthChecker = NewHealthChecker(bc.name, 30*time.Second)
	bc.healthChecker.Start(bc.ctx)

	bc.metricsCollector = metrics.NewCollector(bc.name)

	bc.errorHandler = NewErrorHandler(
		bc.logger,
		config.Reliability.RetryAttempts,
		config.Reliability.RetryDelay,
	)

	bc.retryPolicy = NewRetryPolicy(
		config.Reliability.RetryAttempts,
		config.Reliability.RetryDelay,
	)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of the current state.
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	stateCopy := make(core.State)
	for k, v := range bc.state {
		stateCopy[k] = v
	}
	return stateCopy
}

// SetState replaces the connector state.
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.state = state
	bc.logger.Debug("state updated", zap.Any("state", state))
	return nil
}

// GetPosition returns the current position
func (bc *BaseConnector) GetPosition() core.Position {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.position
}

// SetPosition updates the current position
func (bc *BaseConnector) SetPosition(position core.Position) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.position = position
	bc.logger.Debug("position updated", zap.String("position", position.String()))
	return nil
}

// Health reports an error when the connector is closed or the health
// checker is not in the healthy state.
func (bc *BaseConnector) Health(ctx context.Context) error {
	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	status := bc.healthChecker.GetStatus()
	if status.Status != "healthy" {
		return errors.Wrap(status.Error, errors.ErrorTypeHealth, "health check failed")
	}

	return nil
}

// Metrics returns a snapshot of connector metrics including circuit
// breaker, rate limiter and health checker state.
func (bc *BaseConnector) Metrics() map[string]interface{} {
	snapshot := map[string]interface{}{
		"name":    bc.name,
		"type":    bc.connectorType,
		"version": bc.version,
	}

	if bc.metricsCollector != nil {
		snapshot["uptime"] = time.Since(bc.metricsCollector.StartTime()).Seconds()
	}

	if bc.circuitBreaker != nil {
		cbState := bc.circuitBreaker.GetState()
		snapshot["circuit_breaker_state"] = cbState.State
		snapshot["circuit_breaker_failure_rate"] = cbState.FailureRate
	}

	if bc.rateLimiter != nil {
		rlStats := bc.rateLimiter.GetStats()
		snapshot["rate_limit"] = rlStats.Rate
		snapshot["rate_limit_burst"] = rlStats.Burst
		snapshot["rate_limiter_allowed"] = rlStats.AllowedRequests
		snapshot["rate_limiter_blocked"] = rlStats.BlockedRequests
	}

	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		snapshot["health_status"] = status.Status
		snapshot["health_check_count"] = bc.healthChecker.CheckCount()
		snapshot["health_failure_count"] = bc.healthChecker.FailureCount()
	}

	return snapshot
}

// Close shuts down background monitoring and marks the connector
// closed. Safe to call more than once.
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	bc.logger.Info("closing connector")

	if bc.cancel != nil {
		bc.cancel()
	}

	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}

	bc.closed = true
	bc.logger.Info("connector closed")

	return nil
}

// ExecuteWithRetry runs fn under the configured retry policy with
// exponential backoff.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.Execute(ctx, fn)
}

// ExecuteWithCircuitBreaker runs fn under circuit breaker protection.
// When the circuit is open fn is not called and an error is returned
// immediately.
func (bc *BaseConnector) ExecuteWithCircuitBreaker(fn func() error) error {
	return bc.circuitBreaker.Execute(fn)
}

// RateLimit blocks until the configured rate limit admits a request.
// Returns immediately when no rate limiter is configured.
func (bc *BaseConnector) RateLimit(ctx context.Context) error {
	if bc.rateLimiter == nil {
		return nil
	}
	return bc.rateLimiter.Wait(ctx)
}

// HandleError classifies and logs err via the configured error handler.
func (bc *BaseConnector) HandleError(ctx context.Context, err error, record *pool.Record) error {
	return bc.errorHandler.HandleError(ctx, err, record)
}

// ShouldRetry reports whether err is worth retrying.
func (bc *BaseConnector) ShouldRetry(err error) bool {
	return bc.errorHandler.ShouldRetry(err)
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// GetContext returns the connector context
func (bc *BaseConnector) GetContext() context.Context {
	return bc.ctx
}

// IsHealthy returns true if the connector is healthy
func (bc *BaseConnector) IsHealthy() bool {
	if bc.closed {
		return false
	}

	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		return status.Status == "healthy"
	}

	return true
}

// UpdateHealth manually updates the health status.
func (bc *BaseConnector) UpdateHealth(healthy bool, details map[string]interface{}) {
	if bc.healthChecker != nil {
		bc.healthChecker.UpdateStatus(healthy, details)
	}
}

// GetCircuitBreaker returns the circuit breaker
func (bc *BaseConnector) GetCircuitBreaker() *clients.CircuitBreaker {
	return bc.circuitBreaker
}

// GetRateLimiter returns the rate limiter
func (bc *BaseConnector) GetRateLimiter() clients.RateLimiter {
	return bc.rateLimiter
}

// GetErrorHandler returns the error handler
func (bc *BaseConnector) GetErrorHandler() *ErrorHandler {
	return bc.errorHandler
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// Validate checks required configuration and fills performance
// defaults in place.
func (bc *BaseConnector) Validate() error {
	if bc.config == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	if bc.config.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector name is required")
	}

	if bc.config.Performance.BatchSize <= 0 {
		bc.config.Performance.BatchSize = 100
	}

	if bc.config.Performance.MaxConcurrency <= 0 {
		bc.config.Performance.MaxConcurrency = 10
	}

	if bc.config.Performance.BufferSize <= 0 {
		bc.config.Performance.BufferSize = 10000
	}

	return nil
}
