// Package json implements a JSON file destination writing either
// line-delimited JSON or a single JSON array, optionally gzipped.
package json

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"

	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/errors"
	jsonpool "github.com/atlasync/atlasync/pkg/json"
	"github.com/atlasync/atlasync/pkg/pool"
)

// Format selects the output file format.
type Format string

const (
	// FormatArray writes a single JSON array of objects.
	FormatArray Format = "array"
	// FormatLines writes line-delimited JSON (JSONL/NDJSON).
	FormatLines Format = "lines"
)

// JSONDestination writes records to a JSON file.
type JSONDestination struct {
	config *config.BaseConfig
	schema *core.Schema

	filePath string
	format   Format
	pretty   bool
	indent   string

	file       *os.File
	gzipWriter *gzip.Writer
	writer     *bufio.Writer
	encoder    *jsonpool.StreamingEncoder

	recordsWritten int64
	bytesWritten   int64

	mu sync.Mutex
}

// NewJSONDestination creates an uninitialized JSON destination.
func NewJSONDestination(cfg *config.BaseConfig) (core.Destination, error) {
	return &JSONDestination{config: cfg}, nil
}

// Initialize opens the output file and sets up the encoder chain:
// file -> optional gzip -> buffered writer -> streaming encoder.
func (d *JSONDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	d.config = cfg

	creds := cfg.Security.Credentials
	if creds == nil || creds["path"] == "" {
		return errors.New(errors.ErrorTypeConfig, "json destination requires a path in security.credentials")
	}
	d.filePath = creds["path"]

	d.format = FormatLines
	if f := creds["format"]; f != "" {
		switch Format(f) {
		case FormatArray, FormatLines:
			d.format = Format(f)
		default:
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unsupported json format %q", f))
		}
	}

	d.pretty = creds["pretty"] == "true"
	d.indent = "  "
	if i := creds["indent"]; i != "" {
		d.indent = i
	}

	compress := cfg.Advanced.IsCompressionEnabled()
	if compress && cfg.Advanced.CompressionAlgorithm != "gzip" {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("unsupported compression algorithm %q", cfg.Advanced.CompressionAlgorithm))
	}
	if compress && !strings.HasSuffix(d.filePath, ".gz") {
		d.filePath += ".gz"
	}

	if err := os.MkdirAll(filepath.Dir(d.filePath), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}

	file, err := os.Create(d.filePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to create %s", d.filePath))
	}
	d.file = file

	var sink io.Writer = file
	if compress {
		level := cfg.Advanced.CompressionLevel
		if level < gzip.BestSpeed || level > gzip.BestCompression {
			level = gzip.DefaultCompression
		}
		gz, err := gzip.NewWriterLevel(file, level)
		if err != nil {
			file.Close()
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to configure gzip writer")
		}
		d.gzipWriter = gz
		sink = gz
	}

	bufferSize := cfg.Performance.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	d.writer = bufio.NewWriterSize(sink, bufferSize)

	d.encoder = jsonpool.NewStreamingEncoder(d.writer, d.format == FormatArray)
	if d.pretty {
		d.encoder.SetPretty(true, d.indent)
	}

	return nil
}

// CreateSchema records the schema; JSON files are schemaless so no
// structural work is needed.
func (d *JSONDestination) CreateSchema(ctx context.Context, schema *core.Schema) error {
	d.schema = schema
	return nil
}

// Write consumes a record stream until it closes or errors.
func (d *JSONDestination) Write(ctx context.Context, stream *core.RecordStream) error {
	for {
		select {
		case record, ok := <-stream.Records:
			if !ok {
				return d.finish()
			}
			if err := d.writeRecord(record); err != nil {
				return err
			}

		case err, ok := <-stream.Errors:
			if ok && err != nil {
				return err
			}

		case <-ctx.Done():
			d.flush()
			return ctx.Err()
		}
	}
}

// WriteBatch consumes a batch stream until it closes or errors.
func (d *JSONDestination) WriteBatch(ctx context.Context, stream *core.BatchStream) error {
	for {
		select {
		case batch, ok := <-stream.Batches:
			if !ok {
				return d.finish()
			}
			for _, record := range batch {
				if ctx.Err() != nil {
					d.flush()
					return ctx.Err()
				}
				if err := d.writeRecord(record); err != nil {
					return err
				}
			}
			pool.PutBatchSlice(batch)

		case err, ok := <-stream.Errors:
			if ok && err != nil {
				return err
			}

		case <-ctx.Done():
			d.flush()
			return ctx.Err()
		}
	}
}

func (d *JSONDestination) writeRecord(record *pool.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.writer.Buffered()
	if err := d.encoder.Encode(record.Data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode record")
	}

	atomic.AddInt64(&d.recordsWritten, 1)
	if after := d.writer.Buffered(); after >= before {
		atomic.AddInt64(&d.bytesWritten, int64(after-before))
	}

	record.Release()
	return nil
}

// finish closes the encoder and flushes everything down the chain.
func (d *JSONDestination) finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		d.encoder.Close()
		d.encoder = nil
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if d.gzipWriter != nil {
		if err := d.gzipWriter.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush gzip stream")
		}
	}
	return nil
}

func (d *JSONDestination) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer != nil {
		_ = d.writer.Flush()
	}
}

// SupportsBatch reports batch writing support.
func (d *JSONDestination) SupportsBatch() bool { return true }

// SupportsStreaming reports streaming support.
func (d *JSONDestination) SupportsStreaming() bool { return true }

// Health fails when the output file is not open.
func (d *JSONDestination) Health(ctx context.Context) error {
	if d.file == nil {
		return errors.New(errors.ErrorTypeFile, "output file is not open")
	}
	return nil
}

// Close flushes and closes the writer chain.
func (d *JSONDestination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		d.encoder.Close()
		d.encoder = nil
	}
	if d.writer != nil {
		_ = d.writer.Flush()
		d.writer = nil
	}
	if d.gzipWriter != nil {
		if err := d.gzipWriter.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to close gzip stream")
		}
		d.gzipWriter = nil
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file")
		}
		d.file = nil
	}
	return nil
}

// Metrics returns destination metrics.
func (d *JSONDestination) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"type":            "json",
		"format":          string(d.format),
		"path":            d.filePath,
		"records_written": atomic.LoadInt64(&d.recordsWritten),
		"bytes_written":   atomic.LoadInt64(&d.bytesWritten),
	}
	if d.gzipWriter != nil {
		m["compression"] = "gzip"
	}
	return m
}
