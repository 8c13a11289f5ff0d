// Package atlasync is an Extract & Load connector for Jira Cloud. It
// pulls data from the Jira platform REST v3, Agile 1.0, and Service
// Management APIs and streams it into pluggable destinations with
// incremental sync support.
//
// # Architecture
//
//   - pkg/connector/sources/jira: catalog-driven extraction of ~30 Jira
//     resources, with offset-cursor pagination, JQL date windows, and
//     parent/child streams (issue comments, changelogs, sprints, ...).
//   - pkg/auth: basic (email + API token) and OAuth 2.0 bearer
//     credentials with automatic refresh-token exchange.
//   - pkg/connector/base: shared connector runtime (circuit breaker,
//     rate limiting, retries, health checks, metrics).
//   - internal/pipeline: streaming source-to-destination pipeline with
//     parallel transforms, batching, and position checkpointing.
//   - pkg/state: file-backed position store for resumable runs.
//
// # Quick Start
//
// Run a sync from the command line:
//
//	atlasync sync --source jira.yaml --destination out.yaml \
//	    --state .state/jira.json
//
// Or wire a pipeline programmatically:
//
//	cfg := config.NewBaseConfig("jira-prod", "jira")
//	cfg.Security.AuthType = "basic"
//	cfg.Security.Credentials["domain"] = "example.atlassian.net"
//	cfg.Security.Credentials["email"] = "me@example.com"
//	cfg.Security.Credentials["api_token"] = os.Getenv("JIRA_API_TOKEN")
//
//	source, _ := registry.CreateSource("jira", cfg)
//	_ = source.Initialize(ctx, cfg)
//
// Records carry their resource name, stream id, and page offset, so
// destinations can partition output per resource.
package atlasync
