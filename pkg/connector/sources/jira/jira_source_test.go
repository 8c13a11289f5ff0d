package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/errors"
	"github.com/atlasync/atlasync/pkg/pool"
)

func sourceConfig(serverURL, resources string) *config.BaseConfig {
	cfg := config.NewBaseConfig("jira-test", "jira")
	cfg.Security.AuthType = "basic"
	cfg.Security.Credentials = map[string]string{
		"domain":    serverURL,
		"email":     "user@example.com",
		"api_token": "secret",
		"resources": resources,
	}
	cfg.Reliability.RetryAttempts = 0
	cfg.Reliability.RetryDelay = time.Millisecond
	return cfg
}

func readAll(t *testing.T, s *JiraSource) ([]*pool.Record, []error) {
	t.Helper()

	stream, err := s.Read(context.Background())
	require.NoError(t, err)

	var records []*pool.Record
	var errs []error
	for stream.Records != nil || stream.Errors != nil {
		select {
		case record, ok := <-stream.Records:
			if !ok {
				stream.Records = nil
				continue
			}
			records = append(records, record)
		case err, ok := <-stream.Errors:
			if !ok {
				stream.Errors = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	return records, errs
}

func TestJiraSourceReadPaged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/project/search", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		assert.Equal(t, "100", r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("startAt") == "" {
			w.Write([]byte(`{"values":[{"id":"1","key":"A"},{"id":"2","key":"B"}],"total":3}`))
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("startAt"))
		w.Write([]byte(`{"values":[{"id":"3","key":"C"}],"total":3}`))
	}))
	defer server.Close()

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), sourceConfig(server.URL, "project")))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	require.Empty(t, errs)
	require.Len(t, records, 3)

	assert.Equal(t, "project-1", records[0].ID)
	assert.Equal(t, "project", records[0].Metadata.Resource)
	assert.Equal(t, "project", records[0].GetStreamID())
	assert.Equal(t, int64(2), records[2].GetOffset())

	pos, ok := s.GetPosition().(*Position)
	require.True(t, ok)
	assert.Equal(t, "project", pos.Resource)
	assert.Equal(t, int64(3), pos.Offset)

	for _, record := range records {
		record.Release()
	}
}

func TestJiraSourceIssuesJQL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t,
			"(created>='2026-01-01 12:34' or updated>='2026-01-01 12:34') and (id != null) order by updated asc",
			query.Get("jql"))
		assert.Equal(t, "asc", query.Get("sort"))
		assert.Equal(t, "updated", query.Get("order_by"))

		w.Write([]byte(`{"issues":[{"id":"10001","key":"PROJ-1"}],"total":1}`))
	}))
	defer server.Close()

	cfg := sourceConfig(server.URL, "issues")
	cfg.Security.Credentials["start_date"] = "2026-01-01T12:34:56"

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), cfg))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "issues-10001", records[0].ID)
	records[0].Release()
}

func TestJiraSourceUnpagedResourceFetchesOnce(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		require.Equal(t, "/rest/api/3/priority", r.URL.Path)
		w.Write([]byte(`[{"id":"1","name":"High"},{"id":"2","name":"Medium"},{"id":"3","name":"Low"}]`))
	}))
	defer server.Close()

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), sourceConfig(server.URL, "priority")))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	require.Empty(t, errs)
	assert.Len(t, records, 3)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	for _, record := range records {
		record.Release()
	}
}

func TestJiraSourceServiceDeskPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/servicedeskapi/organization", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("start") {
		case "":
			w.Write([]byte(`{"values":[{"id":"1"},{"id":"2"}],"isLastPage":false}`))
		case "2":
			w.Write([]byte(`{"values":[{"id":"3"}],"isLastPage":true}`))
		case "3":
			w.Write([]byte(`{"values":[],"isLastPage":true}`))
		default:
			t.Errorf("unexpected start %s", r.URL.Query().Get("start"))
		}
	}))
	defer server.Close()

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), sourceConfig(server.URL, "organization")))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	require.Empty(t, errs)
	require.Len(t, records, 3)

	for _, record := range records {
		record.Release()
	}
}

func TestJiraSourceChildResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/3/search":
			assert.Equal(t, "key", r.URL.Query().Get("fields"))
			w.Write([]byte(`{"issues":[{"id":"10001","key":"PROJ-1"}],"total":1}`))
		case "/rest/api/3/issue/PROJ-1/comment":
			w.Write([]byte(`{"comments":[{"id":"501","body":"hi"}],"total":1}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), sourceConfig(server.URL, "issue_comments")))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "issue_comments-501", records[0].ID)
	records[0].Release()
}

func TestJiraSourceReadBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[{"id":"1"},{"id":"2"},{"id":"3"}],"total":3}`))
	}))
	defer server.Close()

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), sourceConfig(server.URL, "project")))
	defer s.Close(context.Background())

	stream, err := s.ReadBatch(context.Background(), 2)
	require.NoError(t, err)

	var batches [][]*pool.Record
	for batch := range stream.Batches {
		batches = append(batches, batch)
	}
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
}

func TestJiraSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := sourceConfig(server.URL, "project")
	cfg.Reliability.FailFast = true

	s := NewJiraSource()
	require.NoError(t, s.Initialize(context.Background(), cfg))
	defer s.Close(context.Background())

	records, errs := readAll(t, s)
	assert.Empty(t, records)
	require.Len(t, errs, 1)
	assert.True(t, errors.IsType(errs[0], errors.ErrorTypeConnection))
}

func TestJiraSourceConfigValidation(t *testing.T) {
	s := NewJiraSource()
	cfg := config.NewBaseConfig("jira-test", "jira")
	cfg.Security.AuthType = "basic"
	cfg.Security.Credentials = map[string]string{
		"email":     "user@example.com",
		"api_token": "secret",
	}

	err := s.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Security.Credentials["domain"] = "example.atlassian.net"
	cfg.Security.Credentials["resources"] = "no_such_resource"
	s2 := NewJiraSource()
	err = s2.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCatalogShape(t *testing.T) {
	names := catalogNames()
	assert.GreaterOrEqual(t, len(names), 30)

	for name, desc := range catalog {
		assert.Equal(t, name, desc.name)
		assert.NotEmpty(t, desc.path, name)
		assert.NotEmpty(t, desc.pageSizeParam, name)
		assert.NotEmpty(t, desc.offsetParam, name)
		if desc.parent != "" {
			_, ok := catalog[desc.parent]
			assert.True(t, ok, "parent of %s must exist", name)
		}
	}

	issues := catalog["issues"]
	assert.True(t, issues.jqlFiltered)
	assert.Equal(t, "id != null", issues.baseFilter)
	assert.Equal(t, "updated", issues.replicationKey)
}

func TestPositionCompare(t *testing.T) {
	a := &Position{Resource: "issues", Offset: 10}
	b := &Position{Resource: "issues", Offset: 20}
	c := &Position{Resource: "project", Offset: 0}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, "issues:10", a.String())
}
