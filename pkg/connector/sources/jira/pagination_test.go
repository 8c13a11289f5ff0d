package jira

import (
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []gojson.RawMessage {
	items := make([]gojson.RawMessage, n)
	for i := range items {
		items[i] = gojson.RawMessage(`{}`)
	}
	return items
}

func TestNextCursorWalk(t *testing.T) {
	// Four pages of 25 against a known total of 100: cursors advance
	// 0 -> 25 -> 50 -> 75, then the stream ends.
	cursor := int64(0)
	for _, expected := range []struct {
		next int64
		more bool
	}{
		{25, true},
		{50, true},
		{75, true},
		{100, false},
	} {
		env := &pageEnvelope{items: makeItems(25), total: 100, hasTotal: true}
		next, more := nextCursor(cursor, env)
		assert.Equal(t, expected.next, next)
		assert.Equal(t, expected.more, more)
		cursor = next
	}
}

func TestNextCursorDecisions(t *testing.T) {
	tests := []struct {
		name     string
		prev     int64
		env      *pageEnvelope
		wantNext int64
		wantMore bool
	}{
		{
			name:     "isLast false overrides unusable total",
			prev:     50,
			env:      &pageEnvelope{items: makeItems(25), total: -1, hasTotal: true, isLast: false, hasIsLast: true},
			wantNext: 75,
			wantMore: true,
		},
		{
			name:     "isLast false with absent total",
			prev:     0,
			env:      &pageEnvelope{items: makeItems(10), isLast: false, hasIsLast: true},
			wantNext: 10,
			wantMore: true,
		},
		{
			name:     "empty page terminates",
			prev:     50,
			env:      &pageEnvelope{},
			wantNext: 50,
			wantMore: false,
		},
		{
			name:     "total consumed terminates",
			prev:     75,
			env:      &pageEnvelope{items: makeItems(25), total: 100, hasTotal: true},
			wantNext: 100,
			wantMore: false,
		},
		{
			name:     "total short final page terminates",
			prev:     50,
			env:      &pageEnvelope{items: makeItems(10), total: 60, hasTotal: true},
			wantNext: 60,
			wantMore: false,
		},
		{
			name:     "items without hints advance",
			prev:     0,
			env:      &pageEnvelope{items: makeItems(25)},
			wantNext: 25,
			wantMore: true,
		},
		{
			name:     "negative prev treated as zero",
			prev:     -5,
			env:      &pageEnvelope{items: makeItems(25), total: 100, hasTotal: true},
			wantNext: 25,
			wantMore: true,
		},
		{
			name:     "isLast true falls through to total check",
			prev:     0,
			env:      &pageEnvelope{items: makeItems(25), total: 25, hasTotal: true, isLast: true, hasIsLast: true},
			wantNext: 25,
			wantMore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, more := nextCursor(tt.prev, tt.env)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantMore, more)
		})
	}
}

func TestParseEnvelopeKeyed(t *testing.T) {
	body := []byte(`{"values":[{"id":"1"},{"id":"2"}],"total":10,"isLast":false,"startAt":0}`)

	env := parseEnvelope(body, "values")
	assert.Len(t, env.items, 2)
	require.True(t, env.hasTotal)
	assert.Equal(t, int64(10), env.total)
	require.True(t, env.hasIsLast)
	assert.False(t, env.isLast)
	assert.True(t, env.totalUsable())
}

func TestParseEnvelopeBareArray(t *testing.T) {
	env := parseEnvelope([]byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`), "")
	assert.Len(t, env.items, 3)
	assert.False(t, env.hasTotal)
	assert.False(t, env.hasIsLast)
}

func TestParseEnvelopeSingleObject(t *testing.T) {
	env := parseEnvelope([]byte(`{"baseUrl":"https://example.atlassian.net","version":"1001.0.0"}`), "")
	assert.Len(t, env.items, 1)
}

func TestParseEnvelopeServiceDesk(t *testing.T) {
	body := []byte(`{"values":[{"id":"1"}],"isLastPage":true,"start":0,"limit":50}`)

	env := parseEnvelope(body, "values")
	assert.Len(t, env.items, 1)
	require.True(t, env.hasIsLast)
	assert.True(t, env.isLast)
	assert.False(t, env.totalUsable())
}

func TestParseEnvelopeUnusableTotal(t *testing.T) {
	env := parseEnvelope([]byte(`{"issues":[{"id":"1"}],"total":-1,"isLast":false}`), "issues")
	require.True(t, env.hasTotal)
	assert.False(t, env.totalUsable())
}

func TestParseEnvelopeMalformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `42`, `{"values":"nope"}`} {
		env := parseEnvelope([]byte(body), "values")
		assert.Empty(t, env.items, "body %q", body)

		_, more := nextCursor(0, env)
		assert.False(t, more, "body %q must terminate", body)
	}
}

func TestParseEnvelopeNextToken(t *testing.T) {
	env := parseEnvelope([]byte(`{"values":[{}],"nextPageToken":"abc"}`), "values")
	assert.Equal(t, "abc", env.nextToken)
}
