package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseConfigDefaults(t *testing.T) {
	cfg := NewBaseConfig("jira-prod", "jira")

	assert.Equal(t, "jira-prod", cfg.Name)
	assert.Equal(t, "jira", cfg.Type)
	assert.Equal(t, 100, cfg.Performance.BatchSize)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
	assert.True(t, cfg.Reliability.CircuitBreaker)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Request)
	assert.NotNil(t, cfg.Security.Credentials)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BaseConfig)
		wantErr string
	}{
		{"missing name", func(c *BaseConfig) { c.Name = "" }, "name is required"},
		{"missing type", func(c *BaseConfig) { c.Type = "" }, "type is required"},
		{"zero batch size", func(c *BaseConfig) { c.Performance.BatchSize = 0 }, "batch_size must be positive"},
		{"negative retries", func(c *BaseConfig) { c.Reliability.RetryAttempts = -1 }, "retry_attempts cannot be negative"},
		{"negative rate limit", func(c *BaseConfig) { c.Reliability.RateLimitPerSec = -5 }, "rate_limit_per_sec cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBaseConfig("test", "jira")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_JIRA_TOKEN", "secret-token")
	t.Setenv("TEST_JIRA_DOMAIN", "example.atlassian.net")

	content := `
name: jira-prod
type: jira
performance:
  batch_size: 50
security:
  auth_type: basic
  credentials:
    domain: ${TEST_JIRA_DOMAIN}
    api_token: ${TEST_JIRA_TOKEN}
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var cfg BaseConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "jira-prod", cfg.Name)
	assert.Equal(t, 50, cfg.Performance.BatchSize)
	assert.Equal(t, "example.atlassian.net", cfg.Security.Credentials["domain"])
	assert.Equal(t, "secret-token", cfg.Security.Credentials["api_token"])
}

func TestLoadMissingFile(t *testing.T) {
	var cfg BaseConfig
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := NewBaseConfig("roundtrip", "jira")
	cfg.Performance.BatchSize = 250

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	var loaded BaseConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, "roundtrip", loaded.Name)
	assert.Equal(t, 250, loaded.Performance.BatchSize)
}
