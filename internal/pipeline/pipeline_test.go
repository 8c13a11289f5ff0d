package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasync/atlasync/pkg/config"
	jsondest "github.com/atlasync/atlasync/pkg/connector/destinations/json"
	"github.com/atlasync/atlasync/pkg/connector/sources/jira"
	"github.com/atlasync/atlasync/pkg/pool"
	"github.com/atlasync/atlasync/pkg/state"
)

func newTestSource(t *testing.T, serverURL string) *jira.JiraSource {
	t.Helper()

	cfg := config.NewBaseConfig("jira", "jira")
	cfg.Security.AuthType = "basic"
	cfg.Security.Credentials = map[string]string{
		"domain":    serverURL,
		"email":     "user@example.com",
		"api_token": "secret",
		"resources": "project",
	}
	cfg.Reliability.RetryAttempts = 0
	cfg.Reliability.RetryDelay = time.Millisecond

	source := jira.NewJiraSource()
	require.NoError(t, source.Initialize(context.Background(), cfg))
	return source
}

func newTestDestination(t *testing.T, path string) *jsondest.JSONDestination {
	t.Helper()

	cfg := config.NewBaseConfig("json", "json")
	cfg.Security.Credentials = map[string]string{"path": path}

	dest, err := jsondest.NewJSONDestination(cfg)
	require.NoError(t, err)
	require.NoError(t, dest.Initialize(context.Background(), cfg))
	return dest.(*jsondest.JSONDestination)
}

func TestPipelineEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startAt") == "" {
			w.Write([]byte(`{"values":[{"id":"1","key":"A"},{"id":"2","key":"B"}],"total":3}`))
			return
		}
		w.Write([]byte(`{"values":[{"id":"3","key":"C"}],"total":3}`))
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	source := newTestSource(t, server.URL)
	dest := newTestDestination(t, outPath)

	statePath := filepath.Join(t.TempDir(), "state.json")
	store, err := state.NewFileStore(statePath)
	require.NoError(t, err)

	p := New(source, dest, &Config{BatchSize: 2, WorkerCount: 2, FlushInterval: 50 * time.Millisecond}, zap.NewNop())
	p.SetPositionStore(store)

	ctx := context.Background()
	require.NoError(t, p.Run(ctx))
	require.NoError(t, dest.Close(ctx))
	require.NoError(t, source.Close(ctx))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	saved, err := store.LoadPosition(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "project:3", saved.String())

	pm := p.Metrics()
	assert.Equal(t, int64(3), pm["records_processed"])
	assert.Equal(t, int64(0), pm["records_failed"])
}

func TestPipelineFilterTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[{"id":"1","key":"KEEP"},{"id":"2","key":"DROP"}],"total":2}`))
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	source := newTestSource(t, server.URL)
	dest := newTestDestination(t, outPath)

	p := New(source, dest, &Config{BatchSize: 10, WorkerCount: 1, FlushInterval: 50 * time.Millisecond}, zap.NewNop())
	p.AddTransform(FilterTransform(func(r *pool.Record) bool {
		return r.Data["key"] == "KEEP"
	}))

	ctx := context.Background()
	require.NoError(t, p.Run(ctx))
	require.NoError(t, dest.Close(ctx))
	require.NoError(t, source.Close(ctx))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "KEEP")
}

func TestPipelineFieldMapperTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[{"id":"1","key":"A"}],"total":1}`))
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	source := newTestSource(t, server.URL)
	dest := newTestDestination(t, outPath)

	p := New(source, dest, nil, zap.NewNop())
	p.AddTransform(FieldMapperTransform(map[string]string{"key": "project_key"}))

	ctx := context.Background()
	require.NoError(t, p.Run(ctx))
	require.NoError(t, dest.Close(ctx))
	require.NoError(t, source.Close(ctx))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "project_key")
	assert.NotContains(t, string(data), `"key"`)
}
