// Package strings provides pooled, low-allocation string utilities for Atlasync.
package strings

import (
	"fmt"
	"strconv"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// The returned string shares memory with the slice; do not modify the
// slice afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes converts a string to a byte slice without allocation.
// Do not modify the returned slice.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Clone copies a string so the caller owns the memory.
func Clone(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, StringToBytes(s))
	return BytesToString(b)
}

// Builder is a byte-backed string builder that can be pooled and reused.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends a string.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, StringToBytes(s)...)
}

// WriteBytes appends bytes.
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string via zero-copy conversion. Callers that
// retain the result past the next Reset must Clone it.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Len returns the current length.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset truncates the builder for reuse.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// BuilderSize selects which pool a builder comes from.
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB: params, headers, log fields
	Medium                    // 1KB - 16KB: request bodies, JQL with long filters
	Large                     // 16KB+: batched output
)

var (
	smallBuilderPool = &sync.Pool{
		New: func() interface{} { return NewBuilder(1024) },
	}
	mediumBuilderPool = &sync.Pool{
		New: func() interface{} { return NewBuilder(16 * 1024) },
	}
	largeBuilderPool = &sync.Pool{
		New: func() interface{} { return NewBuilder(64 * 1024) },
	}
)

func poolFor(size BuilderSize) *sync.Pool {
	switch size {
	case Medium:
		return mediumBuilderPool
	case Large:
		return largeBuilderPool
	default:
		return smallBuilderPool
	}
}

// GetBuilder retrieves a pooled builder of the given size class.
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to its pool.
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

func sizeForLen(n int) BuilderSize {
	if n > 16*1024 {
		return Large
	}
	if n > 1024 {
		return Medium
	}
	return Small
}

// Concat concatenates strings using a pooled builder.
func Concat(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	totalLen := 0
	for _, s := range parts {
		totalLen += len(s)
	}

	size := sizeForLen(totalLen)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	for _, s := range parts {
		builder.WriteString(s)
	}
	return Clone(builder.String())
}

// Sprintf is a pooled alternative to fmt.Sprintf.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	size := sizeForLen(len(format) + len(args)*16)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fmt.Fprintf(builder, format, args...)
	return Clone(builder.String())
}

// JoinPooled joins strings with a delimiter using a pooled builder.
func JoinPooled(parts []string, delimiter string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	totalLen := (len(parts) - 1) * len(delimiter)
	for _, s := range parts {
		totalLen += len(s)
	}

	size := sizeForLen(totalLen)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	builder.WriteString(parts[0])
	for i := 1; i < len(parts); i++ {
		builder.WriteString(delimiter)
		builder.WriteString(parts[i])
	}
	return Clone(builder.String())
}

// BuildWith runs fn against a pooled builder and returns an owned string.
func BuildWith(size BuilderSize, fn func(*Builder)) string {
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fn(builder)
	return Clone(builder.String())
}

// URLBuilder assembles URLs with query parameters using pooled buffers.
type URLBuilder struct {
	builder   *Builder
	size      BuilderSize
	hasParams bool
}

// NewURLBuilder creates a URL builder seeded with the base URL.
func NewURLBuilder(baseURL string) *URLBuilder {
	size := Small
	if len(baseURL) > 1024 {
		size = Medium
	}

	builder := GetBuilder(size)
	builder.WriteString(baseURL)

	return &URLBuilder{
		builder:   builder,
		size:      size,
		hasParams: indexByte(baseURL, '?') >= 0,
	}
}

// AddPath appends path segments, escaping each one.
func (ub *URLBuilder) AddPath(segments ...string) *URLBuilder {
	for _, segment := range segments {
		if segment != "" {
			ub.builder.WriteByte('/')
			ub.builder.WriteString(urlPathEscape(segment))
		}
	}
	return ub
}

// AddParam appends a query parameter with encoding.
func (ub *URLBuilder) AddParam(key, value string) *URLBuilder {
	if ub.hasParams {
		ub.builder.WriteByte('&')
	} else {
		ub.builder.WriteByte('?')
		ub.hasParams = true
	}

	ub.builder.WriteString(urlQueryEscape(key))
	ub.builder.WriteByte('=')
	ub.builder.WriteString(urlQueryEscape(value))
	return ub
}

// AddParamInt appends an integer query parameter.
func (ub *URLBuilder) AddParamInt(key string, value int) *URLBuilder {
	return ub.AddParam(key, strconv.Itoa(value))
}

// String returns the built URL as an owned string.
func (ub *URLBuilder) String() string {
	return Clone(ub.builder.String())
}

// Close releases the builder back to the pool.
func (ub *URLBuilder) Close() {
	if ub.builder != nil {
		PutBuilder(ub.builder, ub.size)
		ub.builder = nil
	}
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// urlQueryEscape escapes a string for URL query components.
func urlQueryEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isURLSafe(s[i]) {
			needEscape = true
			break
		}
	}
	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isURLSafe(c):
			builder.WriteByte(c)
		case c == ' ':
			builder.WriteByte('+')
		default:
			builder.WriteByte('%')
			builder.WriteByte("0123456789ABCDEF"[c>>4])
			builder.WriteByte("0123456789ABCDEF"[c&15])
		}
	}
	return Clone(builder.String())
}

// urlPathEscape escapes a string for URL path segments.
func urlPathEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isURLPathSafe(s[i]) {
			needEscape = true
			break
		}
	}
	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURLPathSafe(c) {
			builder.WriteByte(c)
		} else {
			builder.WriteByte('%')
			builder.WriteByte("0123456789ABCDEF"[c>>4])
			builder.WriteByte("0123456789ABCDEF"[c&15])
		}
	}
	return Clone(builder.String())
}

func isURLSafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func isURLPathSafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~' ||
		c == '/' || c == ':' || c == '@' || c == '!' ||
		c == '$' || c == '&' || c == '\'' || c == '(' ||
		c == ')' || c == '*' || c == '+' || c == ',' ||
		c == ';' || c == '='
}

// ValueToString converts scalar values without fmt overhead.
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return BytesToString(v)
	default:
		return Sprintf("%v", value)
	}
}
