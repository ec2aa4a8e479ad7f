package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "claimdesk.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTPPort)
	assert.Equal(t, DefaultGRPCPort, cfg.Server.GRPCPort)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, "index", cfg.Retrieval.Mode)
	assert.Equal(t, 0.75, cfg.Rules.TotalLossRatio)
	assert.Equal(t, 2500.0, cfg.Rules.SubrogationMinPayout)
	assert.Equal(t, DefaultRetention, cfg.Store.Retention)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Contains(t, cfg.Rules.CommercialKeywords, "delivery")
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  grpc_port: 0
  auth:
    mode: apikey
    key_env: CLAIMDESK_KEY
    header: x-claimdesk-key
llm:
  provider: none
  cache:
    backend: redis
    redis_addr: localhost:6379
retrieval:
  mode: keyword
  top_k: 3
rules:
  total_loss_ratio: 0.7
  commercial_keywords: [courier]
store:
  retention: 10m
alerts:
  rules:
    - name: siu
      condition: fraud.siu_referral
      severity: critical
  webhooks:
    - type: slack
      url_env: SLACK_URL
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.HTTPPort)
	assert.Equal(t, 0, cfg.Server.GRPCPort)
	assert.Equal(t, "x-claimdesk-key", cfg.Server.Auth.EffectiveHeader())
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, "redis", cfg.LLM.Cache.Backend)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Rules.TotalLossRatio)
	assert.Equal(t, []string{"courier"}, cfg.Rules.CommercialKeywords)
	// untouched thresholds keep their defaults
	assert.Equal(t, 15000.0, cfg.Rules.CollisionLimit)
	assert.Equal(t, 10*time.Minute, cfg.Store.Retention)
	require.Len(t, cfg.Alerts.Rules, 1)
	assert.Equal(t, "fraud.siu_referral", cfg.Alerts.Rules[0].Condition)
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "x-api-key", cfg.Server.Auth.EffectiveHeader())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad http port", "server:\n  http_port: 70000\n"},
		{"bad auth mode", "server:\n  auth:\n    mode: mtls\n"},
		{"apikey without env", "server:\n  auth:\n    mode: apikey\n"},
		{"bad provider", "llm:\n  provider: openai\n"},
		{"redis without addr", "llm:\n  cache:\n    backend: redis\n"},
		{"bad retrieval mode", "retrieval:\n  mode: vector\n"},
		{"ratio above one", "rules:\n  total_loss_ratio: 1.5\n"},
		{"negative deductible", "rules:\n  collision_deductible: -1\n"},
		{"alert without condition", "alerts:\n  rules:\n    - name: x\n"},
		{"bad webhook", "alerts:\n  webhooks:\n    - type: pagerduty\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"not yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSecretsFromEnv(t *testing.T) {
	t.Setenv("CD_TEST_KEY", "s3cret")
	t.Setenv("CD_TEST_HOOK", "http://hook")
	t.Setenv("CD_TEST_MODEL_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google")

	assert.Equal(t, "s3cret", AuthConfig{KeyEnv: "CD_TEST_KEY"}.Key())
	assert.Equal(t, "", AuthConfig{}.Key())
	assert.Equal(t, "http://hook", WebhookConfig{URLEnv: "CD_TEST_HOOK"}.URL())

	llm := LLMConfig{Provider: "gemini", APIKeyEnv: "CD_TEST_MODEL_KEY"}
	assert.Equal(t, "google", llm.APIKey())
	assert.True(t, llm.Enabled())

	llm.Provider = "none"
	assert.False(t, llm.Enabled())
}
