// Package pipeline orchestrates data flow from a source connector to a
// destination connector: streaming reads, parallel transforms, batching,
// and position checkpointing.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/metrics"
	"github.com/atlasync/atlasync/pkg/pool"
)

// Transform modifies a record in flight. Returning nil drops the record;
// returning an error counts it as failed.
type Transform func(ctx context.Context, record *pool.Record) (*pool.Record, error)

// Config controls pipeline performance characteristics.
type Config struct {
	BatchSize     int
	WorkerCount   int
	FlushInterval time.Duration
	FailFast      bool
}

// DefaultConfig returns settings suited to API extraction workloads.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     1000,
		WorkerCount:   4,
		FlushInterval: 5 * time.Second,
	}
}

// Pipeline streams records from a source to a destination. Records pass
// through transform workers, are collected into batches, and flushed to
// the destination. The source position is checkpointed after every
// batch the destination accepts.
type Pipeline struct {
	source      core.Source
	destination core.Destination
	transforms  []Transform
	positions   core.PositionManager

	batchSize     int
	workerCount   int
	flushInterval time.Duration
	failFast      bool

	recordsProcessed int64
	recordsFailed    int64
	startTime        time.Time

	throughput *metrics.ThroughputTracker
	logger     *zap.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a pipeline. Call Run to start processing.
func New(source core.Source, destination core.Destination, cfg *Config, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	return &Pipeline{
		source:        source,
		destination:   destination,
		batchSize:     cfg.BatchSize,
		workerCount:   cfg.WorkerCount,
		flushInterval: cfg.FlushInterval,
		failFast:      cfg.FailFast,
		throughput:    metrics.NewThroughputTracker("source", "destination"),
		logger:        logger,
	}
}

// AddTransform appends a transform. Transforms run in order per record.
func (p *Pipeline) AddTransform(transform Transform) {
	p.transforms = append(p.transforms, transform)
}

// SetPositionStore enables checkpointing through the given store.
func (p *Pipeline) SetPositionStore(store core.PositionManager) {
	p.positions = store
}

// Run executes the pipeline until the source is exhausted or, with
// FailFast set, until the first error. It blocks until all stages have
// drained.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	defer cancel()

	p.startTime = time.Now()
	p.logger.Info("starting pipeline",
		zap.Int("batch_size", p.batchSize),
		zap.Int("worker_count", p.workerCount),
		zap.Int("transforms", len(p.transforms)))

	schema, err := p.source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("schema discovery failed: %w", err)
	}
	if schema != nil {
		if err := p.destination.CreateSchema(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema.Name, err)
		}
	}

	recordChan := make(chan *pool.Record, p.batchSize*2)
	transformedChan := make(chan *pool.Record, p.batchSize*2)
	batchChan := make(chan []*pool.Record, 10)
	errorChan := make(chan error, 100)

	p.wg.Add(1)
	go p.readSource(ctx, recordChan, errorChan)

	transformWg := &sync.WaitGroup{}
	for i := 0; i < p.workerCount; i++ {
		transformWg.Add(1)
		go func(id int) {
			defer transformWg.Done()
			p.transformWorker(ctx, id, recordChan, transformedChan, errorChan)
		}(i)
	}
	go func() {
		transformWg.Wait()
		close(transformedChan)
	}()

	p.wg.Add(1)
	go p.batchCollector(ctx, transformedChan, batchChan)

	p.wg.Add(1)
	go p.writeDestination(ctx, batchChan, errorChan)

	var firstErr error
	errorHandlerDone := make(chan struct{})
	go func() {
		defer close(errorHandlerDone)
		for err := range errorChan {
			if err == nil {
				continue
			}
			p.logger.Error("pipeline error", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			if p.failFast {
				cancel()
			}
		}
	}()

	p.wg.Wait()
	close(errorChan)
	<-errorHandlerDone

	duration := time.Since(p.startTime)
	processed := atomic.LoadInt64(&p.recordsProcessed)
	p.logger.Info("pipeline completed",
		zap.Int64("records_processed", processed),
		zap.Int64("records_failed", atomic.LoadInt64(&p.recordsFailed)),
		zap.Duration("duration", duration),
		zap.Float64("throughput_rps", float64(processed)/duration.Seconds()))

	if p.failFast {
		return firstErr
	}
	return nil
}

func (p *Pipeline) readSource(ctx context.Context, out chan<- *pool.Record, errorChan chan<- error) {
	defer p.wg.Done()
	defer close(out)

	stream, err := p.source.Read(ctx)
	if err != nil {
		errorChan <- fmt.Errorf("failed to start source read: %w", err)
		return
	}

	for {
		select {
		case record, ok := <-stream.Records:
			if !ok {
				return
			}
			metrics.QueueDepth.WithLabelValues("records").Set(float64(len(out)))
			select {
			case out <- record:
			case <-ctx.Done():
				record.Release()
				return
			}

		case err, ok := <-stream.Errors:
			if ok && err != nil {
				errorChan <- fmt.Errorf("source error: %w", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) transformWorker(ctx context.Context, id int, in <-chan *pool.Record, out chan<- *pool.Record, errorChan chan<- error) {
	logger := p.logger.With(zap.Int("worker", id))

	for {
		select {
		case record, ok := <-in:
			if !ok {
				return
			}

			transformed := record
			for i, transform := range p.transforms {
				result, err := transform(ctx, transformed)
				if err != nil {
					errorChan <- fmt.Errorf("transform %d failed: %w", i, err)
					atomic.AddInt64(&p.recordsFailed, 1)
					transformed.Release()
					transformed = nil
					break
				}
				transformed = result
				if transformed == nil {
					break
				}
			}
			if transformed == nil {
				continue
			}

			select {
			case out <- transformed:
			case <-ctx.Done():
				transformed.Release()
				logger.Debug("transform worker cancelled")
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) batchCollector(ctx context.Context, in <-chan *pool.Record, out chan<- []*pool.Record) {
	defer p.wg.Done()
	defer close(out)

	batch := pool.GetBatchSlice(p.batchSize)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Ownership of the batch slice passes to the consumer.
		select {
		case out <- batch:
			metrics.QueueDepth.WithLabelValues("batches").Set(float64(len(out)))
			batch = pool.GetBatchSlice(p.batchSize)
		case <-ctx.Done():
		}
	}

	for {
		select {
		case record, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, record)
			if len(batch) >= p.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (p *Pipeline) writeDestination(ctx context.Context, in <-chan []*pool.Record, errorChan chan<- error) {
	defer p.wg.Done()

	destBatchChan := make(chan []*pool.Record, 10)
	destErrorChan := make(chan error, 10)
	stream := &core.BatchStream{Batches: destBatchChan, Errors: destErrorChan}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := p.destination.WriteBatch(ctx, stream); err != nil {
			errorChan <- fmt.Errorf("destination write failed: %w", err)
		}
	}()

	for {
		select {
		case batch, ok := <-in:
			if !ok {
				close(destBatchChan)
				<-writeDone
				return
			}

			select {
			case destBatchChan <- batch:
				n := int64(len(batch))
				atomic.AddInt64(&p.recordsProcessed, n)
				p.throughput.Increment(n)
				p.checkpoint(ctx)

			case <-ctx.Done():
				close(destBatchChan)
				<-writeDone
				return
			}

		case <-ctx.Done():
			close(destBatchChan)
			<-writeDone
			return
		}
	}
}

// checkpoint persists the source position after a batch is handed to
// the destination. Checkpoint failures are logged, not fatal.
func (p *Pipeline) checkpoint(ctx context.Context) {
	if p.positions == nil {
		return
	}
	position := p.source.GetPosition()
	if position == nil {
		return
	}
	if err := p.positions.SavePosition(ctx, position); err != nil {
		p.logger.Warn("failed to checkpoint position",
			zap.String("position", position.String()),
			zap.Error(err))
	}
}

// Stop cancels the pipeline and waits for stages to drain.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Metrics returns a snapshot of pipeline counters.
func (p *Pipeline) Metrics() map[string]interface{} {
	processed := atomic.LoadInt64(&p.recordsProcessed)
	duration := time.Since(p.startTime)

	return map[string]interface{}{
		"records_processed": processed,
		"records_failed":    atomic.LoadInt64(&p.recordsFailed),
		"duration":          duration.String(),
		"throughput_rps":    float64(processed) / duration.Seconds(),
		"worker_count":      p.workerCount,
		"batch_size":        p.batchSize,
		"transform_count":   len(p.transforms),
	}
}

// FilterTransform drops records that fail the predicate.
func FilterTransform(predicate func(*pool.Record) bool) Transform {
	return func(ctx context.Context, record *pool.Record) (*pool.Record, error) {
		if predicate(record) {
			return record, nil
		}
		record.Release()
		return nil, nil
	}
}

// FieldMapperTransform renames fields according to the mapping.
// Unmapped fields pass through unchanged.
func FieldMapperTransform(mapping map[string]string) Transform {
	return func(ctx context.Context, record *pool.Record) (*pool.Record, error) {
		if record.Data == nil {
			return record, nil
		}
		for oldField, newField := range mapping {
			if value, ok := record.Data[oldField]; ok {
				record.Data[newField] = value
				delete(record.Data, oldField)
			}
		}
		return record, nil
	}
}
