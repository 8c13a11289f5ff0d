// Package pool provides unified object pooling for Atlasync. It is the
// single pool implementation for the system: typed pools via Pool[T] plus
// pre-configured global pools for records, maps and batches.
//
// Example usage:
//
//	record := pool.GetRecord()
//	defer record.Release()
//
//	record.SetData("key", "PROJ-1")
package pool

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a typed wrapper around sync.Pool with reset support and
// hit/miss statistics. Safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a typed pool. The reset function, if non-nil, runs before
// an object returns to the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   newFn,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool, resetting it first.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns allocation and usage counters for monitoring.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// RecordMetadata carries provenance and position information for a record.
// All fields are optional.
type RecordMetadata struct {
	// Source identifies the origin connector
	Source string `json:"source,omitempty"`
	// Resource is the API resource the record came from
	Resource string `json:"resource,omitempty"`
	// Offset is the record's position within the resource stream
	Offset int64 `json:"offset,omitempty"`
	// StreamID identifies the stream for multi-stream sources
	StreamID string `json:"stream_id,omitempty"`
	// Timestamp is when the record was extracted
	Timestamp time.Time `json:"timestamp"`
	// Custom holds connector-specific metadata
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unified record type flowing between sources and
// destinations. Obtain records from GetRecord rather than constructing
// them directly so pooling works.
type Record struct {
	// ID is a unique identifier for the record
	ID string `json:"id"`
	// Data contains the record payload
	Data map[string]interface{} `json:"data"`
	// Metadata contains source and timing information
	Metadata RecordMetadata `json:"metadata"`
	// Schema optionally names or describes the record's structure
	Schema interface{} `json:"schema,omitempty"`
	// RawData keeps the original bytes when needed (not serialized)
	RawData []byte `json:"-"`
}

var (
	// RecordPool pools Record objects, clearing all fields on return.
	RecordPool = New(
		func() *Record {
			return &Record{
				Data: make(map[string]interface{}, 16),
			}
		},
		func(r *Record) {
			r.ID = ""
			r.Schema = nil
			r.RawData = nil
			for k := range r.Data {
				delete(r.Data, k)
			}
			if r.Metadata.Custom != nil {
				for k := range r.Metadata.Custom {
					delete(r.Metadata.Custom, k)
				}
			}
			r.Metadata = RecordMetadata{}
		},
	)

	// MapPool pools map[string]interface{} objects, cleared on return.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// IDBufferPool pools small buffers for ID generation.
	IDBufferPool = New(
		func() []byte {
			return make([]byte, 0, 64)
		},
		nil,
	)

	// BatchSlicePool pools record batches used by the pipeline.
	BatchSlicePool = New(
		func() []*Record {
			return make([]*Record, 0, 1000)
		},
		func(s []*Record) {
			for i := range s {
				s[i] = nil
			}
		},
	)
)

var idCounter uint64

// GetRecord retrieves a Record from the global pool with a fresh timestamp.
// Return it with PutRecord or record.Release.
func GetRecord() *Record {
	r := RecordPool.Get()
	r.Metadata.Timestamp = time.Now()
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	return r
}

// PutRecord returns a Record and its nested maps to their pools.
// Safe to call with nil.
func PutRecord(record *Record) {
	if record == nil {
		return
	}
	if record.Metadata.Custom != nil {
		PutMap(record.Metadata.Custom)
		record.Metadata.Custom = nil
	}
	RecordPool.Put(record)
}

// GetMap retrieves an empty map from the global pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the global pool. Safe to call with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GetBatchSlice retrieves a zero-length record batch with at least the
// requested capacity.
func GetBatchSlice(capacity int) []*Record {
	batch := BatchSlicePool.Get()
	if cap(batch) < capacity {
		batch = make([]*Record, 0, capacity)
	}
	return batch[:0]
}

// PutBatchSlice returns a batch to the global pool. Record references are
// cleared so the records themselves can be collected or reused.
func PutBatchSlice(batch []*Record) {
	if batch != nil {
		BatchSlicePool.Put(batch)
	}
}

// GenerateID builds a "prefix-counter" ID using an atomic counter and a
// pooled buffer. Safe for concurrent use.
func GenerateID(prefix string) string {
	buf := IDBufferPool.Get()
	defer IDBufferPool.Put(buf[:0])

	id := atomic.AddUint64(&idCounter, 1)

	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)

	return string(buf)
}

func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	start := len(buf)
	buf = buf[:start+digits]
	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}
	return buf
}

// SetData sets a payload field, initializing the map from the pool if needed.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Data[key] = value
}

// GetData retrieves a payload field.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// Release returns the record and its resources to the pools.
func (r *Record) Release() {
	PutRecord(r)
}

// SetTimestamp sets the extraction timestamp.
func (r *Record) SetTimestamp(t time.Time) {
	r.Metadata.Timestamp = t
}

// GetTimestamp returns the extraction timestamp.
func (r *Record) GetTimestamp() time.Time {
	return r.Metadata.Timestamp
}

// SetStreamID sets the stream identifier.
func (r *Record) SetStreamID(streamID string) {
	r.Metadata.StreamID = streamID
}

// GetStreamID returns the stream identifier.
func (r *Record) GetStreamID() string {
	return r.Metadata.StreamID
}

// SetOffset sets the record's position within its resource stream.
func (r *Record) SetOffset(offset int64) {
	r.Metadata.Offset = offset
}

// GetOffset returns the record's stream offset.
func (r *Record) GetOffset() int64 {
	return r.Metadata.Offset
}

// NewRecord creates a pooled record owning the provided data map.
// Call record.Release when done.
func NewRecord(source string, data map[string]interface{}) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Data = data
	r.Metadata.Source = source
	r.Metadata.Timestamp = time.Now()
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	return r
}

// NewRecordFromPool creates a pooled record with a pooled data map, for
// building payloads incrementally. Call record.Release when done.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Data = GetMap()
	r.Metadata.Source = source
	r.Metadata.Timestamp = time.Now()
	r.Metadata.Custom = GetMap()
	return r
}
