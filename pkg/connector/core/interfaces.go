// Package core defines the connector contracts shared by all Atlasync
// sources and destinations.
package core

import (
	"context"
	"time"

	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/pool"
)

// ConnectorType represents the type of connector.
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// State is free-form connector state used for incremental sync.
type State map[string]interface{}

// Position is a checkpoint in the data stream.
type Position interface {
	// String returns a string representation of the position
	String() string
	// Compare returns -1 if this < other, 0 if equal, 1 if this > other
	Compare(other Position) int
}

// Schema describes the records a connector produces or accepts.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Field is a single schema field.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Nullable    bool
	Primary     bool
	Unique      bool
	Default     interface{}
}

// FieldType represents the data type of a field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeDate      FieldType = "date"
	FieldTypeJSON      FieldType = "json"
)

// RecordStream is a stream of individual records.
type RecordStream struct {
	Records <-chan *pool.Record
	Errors  <-chan error
}

// BatchStream is a stream of record batches.
type BatchStream struct {
	Batches <-chan []*pool.Record
	Errors  <-chan error
}

// Source is the interface all source connectors implement.
type Source interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Schema, error)
	Read(ctx context.Context) (*RecordStream, error)
	ReadBatch(ctx context.Context, batchSize int) (*BatchStream, error)
	Close(ctx context.Context) error

	// State management
	GetPosition() Position
	SetPosition(position Position) error
	GetState() State
	SetState(state State) error

	// Capabilities
	SupportsIncremental() bool
	SupportsBatch() bool

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Destination is the interface all destination connectors implement.
type Destination interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	CreateSchema(ctx context.Context, schema *Schema) error
	Write(ctx context.Context, stream *RecordStream) error
	WriteBatch(ctx context.Context, stream *BatchStream) error
	Close(ctx context.Context) error

	// Capabilities
	SupportsBatch() bool
	SupportsStreaming() bool

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface shared by sources and destinations.
type Connector interface {
	// Metadata
	Name() string
	Type() ConnectorType
	Version() string

	// Lifecycle
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Close(ctx context.Context) error

	// Health and monitoring
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus describes a connector's health.
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// MetricType represents the type of metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// PositionManager persists and restores stream positions.
type PositionManager interface {
	SavePosition(ctx context.Context, position Position) error
	LoadPosition(ctx context.Context) (Position, error)
	ResetPosition(ctx context.Context) error
}

// ErrorHandler defines how connectors classify and handle errors.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error, record *pool.Record) error
	ShouldRetry(err error) bool
	GetRetryDelay(attempt int) time.Duration
	RecordError(err error, details map[string]interface{})
}

// TransformFunc transforms a record, returning the replacement.
type TransformFunc func(record *pool.Record) (*pool.Record, error)

// FilterFunc reports whether a record should be kept.
type FilterFunc func(record *pool.Record) bool

// ConnectorMetadata describes a registered connector.
type ConnectorMetadata struct {
	Name         string        `json:"name"`
	Type         ConnectorType `json:"type"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Capabilities []string      `json:"capabilities"`
}
