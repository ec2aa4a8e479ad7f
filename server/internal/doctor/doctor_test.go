package doctor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/claimdesk/claimdesk/server/internal/config"
)

func byCheck(fs []Finding) map[string]Finding {
	m := make(map[string]Finding, len(fs))
	for _, f := range fs {
		m[f.Check] = f
	}
	return m
}

func TestRun_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	fs := Run(context.Background(), config.Default(), Options{Logger: zaptest.NewLogger(t)})
	got := byCheck(fs)

	assert.Equal(t, StatusWarn, got["auth"].Status)
	assert.Equal(t, StatusWarn, got["llm"].Status)
	assert.Contains(t, got["llm"].Detail, "GEMINI_API_KEY")
	assert.Equal(t, StatusOK, got["llm cache"].Status)
	assert.Equal(t, "memory", got["llm cache"].Detail)
	assert.Equal(t, StatusOK, got["alert rules"].Status)
	assert.Equal(t, "disabled", got["intake"].Detail)
	assert.False(t, Failed(fs))
}

func TestRun_Failures(t *testing.T) {
	t.Setenv("CLAIMDESK_KEY", "")
	t.Setenv("HOOK_URL", "")

	cfg := config.Default()
	cfg.Server.Auth = config.AuthConfig{Mode: "apikey", KeyEnv: "CLAIMDESK_KEY"}
	cfg.Alerts.Rules = []config.AlertRule{{Name: "broken", Condition: "fraud.risk_score >"}}
	cfg.Alerts.Webhooks = []config.WebhookConfig{{Type: "slack", URLEnv: "HOOK_URL"}}
	file := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	cfg.Intake.Dir = file

	fs := Run(context.Background(), cfg, Options{})
	got := byCheck(fs)
	assert.Equal(t, StatusFail, got["auth"].Status)
	assert.Equal(t, StatusFail, got["alert rules"].Status)
	assert.Equal(t, StatusFail, got["webhook[0] slack"].Status)
	assert.Contains(t, got["webhook[0] slack"].Detail, "HOOK_URL")
	assert.Equal(t, StatusFail, got["intake"].Status)
	assert.True(t, Failed(fs))
}

func TestRun_ConfiguredOK(t *testing.T) {
	t.Setenv("CLAIMDESK_KEY", "s3cret")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := config.Default()
	cfg.Server.Auth = config.AuthConfig{Mode: "apikey", KeyEnv: "CLAIMDESK_KEY", Header: "x-claimdesk-token"}
	cfg.Intake.Dir = t.TempDir()

	got := byCheck(Run(context.Background(), cfg, Options{}))
	assert.Equal(t, StatusOK, got["auth"].Status)
	assert.Contains(t, got["auth"].Detail, "x-claimdesk-token")
	assert.Equal(t, StatusOK, got["llm"].Status)
	assert.Equal(t, "gemini:"+config.DefaultModel, got["llm"].Detail)
	assert.Equal(t, StatusOK, got["intake"].Status)
}

func TestCheckCache_RedisUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	f := checkCache(context.Background(), config.CacheConfig{Backend: "redis", RedisAddr: addr}, Options{
		PingTimeout: 500 * time.Millisecond,
		Logger:      zaptest.NewLogger(t),
	})
	assert.Equal(t, StatusFail, f.Status)
	assert.Contains(t, f.Detail, addr)
}

func TestCheckWebhooks(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	t.Setenv("HOOK_TLS", srv.URL+"/services/T000/B000/secret")
	t.Setenv("HOOK_PLAIN", "http://hooks.internal/alert")
	t.Setenv("HOOK_BAD", "not a url")

	fs := checkWebhooks(context.Background(), []config.WebhookConfig{
		{Type: "slack", URLEnv: "HOOK_TLS"},
		{Type: "http", URLEnv: "HOOK_PLAIN"},
		{Type: "teams", URLEnv: "HOOK_BAD"},
	}, true)
	require.Len(t, fs, 3)

	assert.Equal(t, StatusOK, fs[0].Status, fs[0].Detail)
	assert.NotContains(t, fs[0].Detail, "secret")
	assert.Equal(t, StatusWarn, fs[1].Status)
	assert.Equal(t, StatusFail, fs[2].Status)
}

func TestCheckCert(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CheckCert(ctx, "http://example.com", false))
	assert.Nil(t, CheckCert(ctx, "::bad", false))

	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	cs := CheckCert(ctx, srv.URL, true)
	require.NotNil(t, cs)
	assert.Equal(t, CertValid, cs.Status)
	assert.Greater(t, cs.DaysLeft, ExpiringDays)
	assert.NotEmpty(t, cs.NotAfter)

	// Self-signed chain fails verification without insecure.
	cs = CheckCert(ctx, srv.URL, false)
	require.NotNil(t, cs)
	assert.Equal(t, CertUnreachable, cs.Status)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	cs = CheckCert(ctx, "https://"+addr, true)
	require.NotNil(t, cs)
	assert.Equal(t, CertUnreachable, cs.Status)
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in       time.Time
		status   string
		daysLeft int
	}{
		{now.AddDate(1, 0, 0), CertValid, 365},
		{now.AddDate(0, 0, ExpiringDays), CertExpiring, ExpiringDays},
		{now.Add(36 * time.Hour), CertExpiring, 1},
		{now, CertExpired, 0},
		{now.AddDate(0, 0, -2), CertExpired, -2},
	}
	for _, tt := range tests {
		status, days := classify(tt.in, now)
		assert.Equal(t, tt.status, status, tt.in)
		assert.Equal(t, tt.daysLeft, days, tt.in)
	}
}

func TestCertFinding(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{CertValid, StatusOK},
		{CertExpiring, StatusWarn},
		{CertExpired, StatusFail},
		{CertUnreachable, StatusFail},
	}
	for _, tt := range tests {
		got, _ := certFinding(&CertStatus{Endpoint: "https://x", Status: tt.status})
		assert.Equal(t, tt.want, got, tt.status)
	}
}
