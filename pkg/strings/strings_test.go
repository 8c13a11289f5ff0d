package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderReuse(t *testing.T) {
	b := GetBuilder(Small)
	defer PutBuilder(b, Small)

	b.WriteString("hello")
	b.WriteByte(' ')
	b.WriteString("world")
	assert.Equal(t, "hello world", b.String())
	assert.Equal(t, 11, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String())
}

func TestConcat(t *testing.T) {
	assert.Equal(t, "", Concat())
	assert.Equal(t, "one", Concat("one"))
	assert.Equal(t, "a/b/c", Concat("a", "/", "b", "/", "c"))
}

func TestSprintf(t *testing.T) {
	assert.Equal(t, "plain", Sprintf("plain"))
	assert.Equal(t, "startAt=50", Sprintf("startAt=%d", 50))
}

func TestJoinPooled(t *testing.T) {
	tests := []struct {
		name      string
		parts     []string
		delimiter string
		want      string
	}{
		{"empty", nil, ",", ""},
		{"single", []string{"x"}, ",", "x"},
		{"clauses", []string{"(a)", "(b)", "(c)"}, " and ", "(a) and (b) and (c)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinPooled(tt.parts, tt.delimiter))
		})
	}
}

func TestURLBuilder(t *testing.T) {
	ub := NewURLBuilder("https://example.atlassian.net/rest/api/3")
	defer ub.Close()

	ub.AddPath("search")
	ub.AddParamInt("startAt", 50)
	ub.AddParamInt("maxResults", 100)
	ub.AddParam("jql", "id != null")

	assert.Equal(t,
		"https://example.atlassian.net/rest/api/3/search?startAt=50&maxResults=100&jql=id+%21%3D+null",
		ub.String())
}

func TestURLBuilderExistingQuery(t *testing.T) {
	ub := NewURLBuilder("https://example.com/path?expand=names")
	defer ub.Close()

	ub.AddParam("maxResults", "25")
	assert.Equal(t, "https://example.com/path?expand=names&maxResults=25", ub.String())
}

func TestClone(t *testing.T) {
	buf := []byte("mutable")
	s := BytesToString(buf)
	owned := Clone(s)
	buf[0] = 'X'

	assert.Equal(t, "Xutable", s)
	assert.Equal(t, "mutable", owned)
}

func TestValueToString(t *testing.T) {
	assert.Equal(t, "", ValueToString(nil))
	assert.Equal(t, "42", ValueToString(42))
	assert.Equal(t, "true", ValueToString(true))
	assert.Equal(t, "3.5", ValueToString(3.5))
	assert.Equal(t, "text", ValueToString("text"))
}
