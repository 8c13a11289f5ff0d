// Package jira implements the catalog-driven Jira Cloud source. It
// extracts the platform REST v3, Agile 1.0 and Service Management APIs
// page by page, resolving cursors from whatever paging hints each
// endpoint provides.
package jira

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/atlasync/atlasync/pkg/auth"
	"github.com/atlasync/atlasync/pkg/clients"
	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/base"
	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/errors"
	"github.com/atlasync/atlasync/pkg/pool"
	stringpool "github.com/atlasync/atlasync/pkg/strings"
)

// Position is a (resource, offset) checkpoint within a sync run.
type Position struct {
	Resource string
	Offset   int64
}

// String returns "resource:offset".
func (p *Position) String() string {
	return p.Resource + ":" + strconv.FormatInt(p.Offset, 10)
}

// Compare orders positions by resource name, then offset.
func (p *Position) Compare(other core.Position) int {
	o, ok := other.(*Position)
	if !ok {
		return 0
	}
	if p.Resource != o.Resource {
		if p.Resource < o.Resource {
			return -1
		}
		return 1
	}
	switch {
	case p.Offset < o.Offset:
		return -1
	case p.Offset > o.Offset:
		return 1
	default:
		return 0
	}
}

// JiraSource extracts Jira resources declared in the catalog.
type JiraSource struct {
	*base.BaseConnector

	domain    string
	cloudID   string
	startDate time.Time
	endDate   time.Time
	resources []string
	pageSize  int

	client   *clients.HTTPClient
	provider *auth.HeaderProvider
}

// NewJiraSource creates an uninitialized Jira source.
func NewJiraSource() *JiraSource {
	return &JiraSource{
		BaseConnector: base.NewBaseConnector("jira", core.ConnectorTypeSource, "1.0.0"),
	}
}

// Initialize validates the configuration, builds credentials and the
// HTTP client, and starts the base connector machinery.
func (s *JiraSource) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := s.extractConfig(cfg); err != nil {
		return err
	}

	cred, err := auth.FromConfig(cfg.Security.AuthType, cfg.Security.Credentials)
	if err != nil {
		return err
	}

	// Rate limiting and circuit breaking come from the base connector,
	// so the raw client runs without its own.
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RateLimit = 0
	httpCfg.CircuitBreakerEnabled = false
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	httpCfg.InsecureSkipVerify = cfg.Security.TLSSkipVerify
	s.client = clients.NewHTTPClient(httpCfg, s.GetLogger())

	var refresher *auth.TokenRefresher
	if cred.Kind() == auth.KindBearer {
		refresher = auth.NewTokenRefresher(cfg.Security.Credentials["token_url"], s.client)
	}
	s.provider = auth.NewHeaderProvider(cred, refresher)

	s.GetLogger().Info("jira source ready",
		zap.String("domain", s.domain),
		zap.String("cloud_id", s.cloudID),
		zap.Int("resources", len(s.resources)))

	return nil
}

func (s *JiraSource) extractConfig(cfg *config.BaseConfig) error {
	creds := cfg.Security.Credentials

	s.domain = creds["domain"]
	s.cloudID = creds["cloud_id"]
	if s.domain == "" && s.cloudID == "" {
		return errors.New(errors.ErrorTypeConfig, "either domain or cloud_id is required")
	}

	var err error
	if s.startDate, err = parseConfigDate(creds["start_date"]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}
	if s.endDate, err = parseConfigDate(creds["end_date"]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid end_date")
	}

	s.pageSize = cfg.Performance.BatchSize

	if raw := creds["resources"]; raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := catalog[name]; !ok {
				return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown resource %q", name))
			}
			s.resources = append(s.resources, name)
		}
	}
	if len(s.resources) == 0 {
		s.resources = catalogNames()
	}

	return nil
}

func parseConfigDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Discover returns the schema for the selected resources. A single
// selected resource yields its catalog schema; multiple resources are
// described as one composite schema.
func (s *JiraSource) Discover(ctx context.Context) (*core.Schema, error) {
	if len(s.resources) == 1 {
		desc := catalog[s.resources[0]]
		return schemaFor(desc), nil
	}

	composite := &core.Schema{
		Name:    "jira",
		Version: 1,
		Fields:  make([]core.Field, 0, len(s.resources)),
	}
	for _, name := range s.resources {
		composite.Fields = append(composite.Fields, core.Field{
			Name: name,
			Type: core.FieldTypeJSON,
		})
	}
	return composite, nil
}

// Read streams records for every selected resource in order.
func (s *JiraSource) Read(ctx context.Context) (*core.RecordStream, error) {
	records := make(chan *pool.Record, s.GetConfig().Performance.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)

		emit := func(record *pool.Record) bool {
			select {
			case records <- record:
				return true
			case <-ctx.Done():
				record.Release()
				return false
			}
		}

		s.run(ctx, emit, errs)
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// ReadBatch streams records grouped into batches of batchSize.
func (s *JiraSource) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	if batchSize <= 0 {
		batchSize = s.GetConfig().Performance.BatchSize
	}

	batches := make(chan []*pool.Record, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(batches)
		defer close(errs)

		batch := pool.GetBatchSlice(batchSize)

		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			select {
			case batches <- batch:
				batch = pool.GetBatchSlice(batchSize)
				return true
			case <-ctx.Done():
				return false
			}
		}

		emit := func(record *pool.Record) bool {
			batch = append(batch, record)
			if len(batch) >= batchSize {
				return flush()
			}
			return true
		}

		s.run(ctx, emit, errs)
		flush()
	}()

	return &core.BatchStream{Batches: batches, Errors: errs}, nil
}

// run drives the per-resource read loops. A failing resource stops the
// whole run only when FailFast is set.
func (s *JiraSource) run(ctx context.Context, emit func(*pool.Record) bool, errs chan<- error) {
	for _, name := range s.resources {
		desc := catalog[name]

		var err error
		if desc.parent != "" {
			err = s.readChildResource(ctx, desc, emit)
		} else {
			err = s.readResource(ctx, desc, "", emit)
		}

		if err != nil {
			s.GetLogger().Error("resource read failed",
				zap.String("resource", name),
				zap.Error(err))
			select {
			case errs <- err:
			default:
			}
			if s.GetConfig().Reliability.FailFast {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// readResource pages through one resource, emitting every item. The
// cursor loop never errors on degraded pages; an empty envelope ends
// the stream.
func (s *JiraSource) readResource(ctx context.Context, desc streamDescriptor, path string, emit func(*pool.Record) bool) error {
	spec := specFor(desc, s.pageSize, s.startDate, s.endDate)

	var cursor int64
	for {
		params := buildParams(spec, cursor)
		url := resourceURL(s.domain, s.cloudID, desc, path, params)

		body, err := s.fetchPage(ctx, url)
		if err != nil {
			return err
		}

		env := parseEnvelope(body, desc.envelopeKey)
		s.GetMetricsCollector().PageFetched(desc.name)

		offset := cursor
		for _, raw := range env.items {
			record := s.makeRecord(desc, raw, offset)
			offset++
			if record == nil {
				continue
			}
			if !emit(record) {
				return ctx.Err()
			}
		}
		s.GetMetricsCollector().RecordsExtracted("", "success", float64(len(env.items)))

		next, more := nextCursor(cursor, env)
		_ = s.SetPosition(&Position{Resource: desc.name, Offset: next})
		cursor = next

		if !more || !desc.paged {
			return nil
		}
	}
}

// readChildResource reads a resource whose path depends on keys from a
// parent resource (issue child streams, board sprints).
func (s *JiraSource) readChildResource(ctx context.Context, desc streamDescriptor, emit func(*pool.Record) bool) error {
	parent, ok := catalog[desc.parent]
	if !ok {
		return errors.New(errors.ErrorTypeInternal, fmt.Sprintf("resource %s has unknown parent %s", desc.name, desc.parent))
	}

	keys, err := s.parentKeys(ctx, parent)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.readResource(ctx, desc, substitutePath(desc.path, key), emit); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// parentKeys pages through a parent resource collecting the key each
// child path needs: issue keys for issue children, primary keys
// otherwise.
func (s *JiraSource) parentKeys(ctx context.Context, parent streamDescriptor) ([]string, error) {
	keyField := parent.primaryKey
	if parent.name == "issues" {
		keyField = "key"
	}

	spec := specFor(parent, s.pageSize, s.startDate, s.endDate)

	var keys []string
	var cursor int64
	for {
		params := buildParams(spec, cursor)
		if parent.name == "issues" {
			params["fields"] = "key"
		}
		url := resourceURL(s.domain, s.cloudID, parent, "", params)

		body, err := s.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}

		env := parseEnvelope(body, parent.envelopeKey)
		for _, raw := range env.items {
			var item map[string]interface{}
			if err := gojson.Unmarshal(raw, &item); err != nil {
				continue
			}
			if value, ok := item[keyField]; ok {
				keys = append(keys, stringpool.ValueToString(value))
			}
		}

		next, more := nextCursor(cursor, env)
		cursor = next
		if !more || !parent.paged {
			return keys, nil
		}
	}
}

// fetchPage performs one authenticated GET under the connector's rate
// limiter, circuit breaker and retry policy.
func (s *JiraSource) fetchPage(ctx context.Context, url string) ([]byte, error) {
	headers, err := s.provider.Headers(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.RateLimit(ctx); err != nil {
		return nil, err
	}

	var body []byte
	fetch := func() error {
		start := time.Now()
		resp, err := s.client.Get(ctx, url, headers)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("request to %s failed", url))
		}
		defer resp.Body.Close()

		s.GetMetricsCollector().ObserveLatency("fetch_page", time.Since(start))

		switch {
		case resp.StatusCode == 429:
			io.Copy(io.Discard, resp.Body)
			return errors.New(errors.ErrorTypeRateLimit, fmt.Sprintf("rate limited by %s", url))
		case resp.StatusCode == 401 || resp.StatusCode == 403:
			io.Copy(io.Discard, resp.Body)
			return errors.New(errors.ErrorTypeAuthentication, fmt.Sprintf("request to %s unauthorized with status %d", url, resp.StatusCode))
		case resp.StatusCode >= 400:
			io.Copy(io.Discard, resp.Body)
			return errors.New(errors.ErrorTypeConnection, fmt.Sprintf("request to %s failed with status %d", url, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
		}
		return nil
	}

	err = s.GetErrorHandler().ExecuteWithRetry(ctx, func() error {
		return s.ExecuteWithCircuitBreaker(fetch)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// makeRecord builds a schema-tagged record from one raw item. Items
// that fail to decode are dropped.
func (s *JiraSource) makeRecord(desc streamDescriptor, raw gojson.RawMessage, offset int64) *pool.Record {
	data := pool.GetMap()
	if err := gojson.Unmarshal(raw, &data); err != nil {
		pool.PutMap(data)
		return nil
	}

	record := pool.NewRecord("jira", data)
	record.Schema = desc.name
	record.Metadata.Resource = desc.name
	record.SetStreamID(desc.name)
	record.SetOffset(offset)

	if value, ok := data[desc.primaryKey]; ok {
		record.ID = desc.name + "-" + stringpool.ValueToString(value)
	} else {
		record.ID = pool.GenerateID(desc.name)
	}

	return record
}

// SupportsIncremental is true: issues carry a replication key and the
// position checkpoints (resource, offset).
func (s *JiraSource) SupportsIncremental() bool { return true }

// SupportsBatch reports batch reading support.
func (s *JiraSource) SupportsBatch() bool { return true }

// Close shuts down the source and its HTTP client.
func (s *JiraSource) Close(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return s.BaseConnector.Close(ctx)
}
