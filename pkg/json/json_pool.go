// Package json provides pooled JSON serialization built on goccy/go-json.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/atlasync/atlasync/pkg/pool"
)

type jsonPool struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
	bufferPool  sync.Pool
}

var globalPool = &jsonPool{
	encoderPool: sync.Pool{
		New: func() interface{} {
			return &pooledEncoder{}
		},
	},
	decoderPool: sync.Pool{
		New: func() interface{} {
			return &pooledDecoder{}
		},
	},
	bufferPool: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	},
}

type pooledEncoder struct {
	encoder *gojson.Encoder
}

type pooledDecoder struct {
	decoder *gojson.Decoder
}

// GetEncoder gets a pooled JSON encoder bound to w.
func GetEncoder(w io.Writer) *gojson.Encoder {
	pe := globalPool.encoderPool.Get().(*pooledEncoder)

	// Encoders are not rebindable, so a fresh one wraps the writer each time;
	// the pool amortizes the wrapper allocation.
	pe.encoder = gojson.NewEncoder(w)
	pe.encoder.SetEscapeHTML(false)

	return pe.encoder
}

// PutEncoder returns an encoder to the pool.
func PutEncoder(enc *gojson.Encoder) {
	globalPool.encoderPool.Put(&pooledEncoder{encoder: enc})
}

// GetDecoder gets a pooled JSON decoder bound to r.
func GetDecoder(r io.Reader) *gojson.Decoder {
	pd := globalPool.decoderPool.Get().(*pooledDecoder)

	pd.decoder = gojson.NewDecoder(r)
	pd.decoder.UseNumber()

	return pd.decoder
}

// PutDecoder returns a decoder to the pool.
func PutDecoder(dec *gojson.Decoder) {
	globalPool.decoderPool.Put(&pooledDecoder{decoder: dec})
}

// GetBuffer gets a pooled bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	buf := globalPool.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool. Oversized buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 {
		return
	}
	globalPool.bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter marshals v directly to a writer using a pooled encoder.
func MarshalToWriter(w io.Writer, v interface{}) error {
	enc := GetEncoder(w)
	defer PutEncoder(enc)

	return enc.Encode(v)
}

// StreamingEncoder writes a sequence of values as either line-delimited
// JSON or a single JSON array.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	pretty      bool
}

// NewStreamingEncoder creates a streaming encoder. When isArray is true
// the opening bracket is written immediately.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	se := &StreamingEncoder{
		writer:      w,
		encoder:     GetEncoder(w),
		firstRecord: true,
		isArray:     isArray,
	}

	if isArray {
		w.Write([]byte{'['})
	}

	return se
}

// SetPretty enables indented output.
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	}
}

// Encode writes one value, inserting array separators as needed.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		if !se.firstRecord {
			se.writer.Write([]byte{','})
			if se.pretty {
				se.writer.Write([]byte{'\n'})
			}
		}
		se.firstRecord = false
	}

	return se.encoder.Encode(v)
}

// Close finalizes the stream and releases the encoder.
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		if se.pretty {
			se.writer.Write([]byte{'\n'})
		}
		se.writer.Write([]byte{']'})
	}

	PutEncoder(se.encoder)
	return nil
}

// MarshalRecords marshals record payloads in the requested format.
func MarshalRecords(records []*pool.Record, format string) ([]byte, error) {
	switch format {
	case "lines", "jsonl":
		return MarshalRecordsLines(records)
	default:
		return MarshalRecordsArray(records)
	}
}

// MarshalRecordsArray marshals record payloads as a JSON array.
func MarshalRecordsArray(records []*pool.Record) ([]byte, error) {
	if len(records) == 0 {
		return []byte("[]"), nil
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteByte('[')
	for i, record := range records {
		if i > 0 {
			buf.WriteByte(',')
		}

		data, err := gojson.Marshal(record.Data)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// MarshalRecordsLines marshals record payloads as line-delimited JSON.
func MarshalRecordsLines(records []*pool.Record) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	for _, record := range records {
		data, err := gojson.Marshal(record.Data)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
