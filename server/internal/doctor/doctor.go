package doctor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/config"
	"github.com/claimdesk/claimdesk/server/internal/llm"
)

// Finding statuses.
const (
	StatusOK   = "ok"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Finding is the outcome of one check.
type Finding struct {
	Check  string `json:"check"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Options tunes Run.
type Options struct {
	// InsecureTLS skips chain verification when dating webhook certificates.
	InsecureTLS bool

	// PingTimeout bounds the redis ping. Defaults to 3s.
	PingTimeout time.Duration

	Logger *zap.Logger
}

// Run checks cfg and returns one finding per check, in a fixed order.
func Run(ctx context.Context, cfg *config.Config, opts Options) []Finding {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}

	var out []Finding
	out = append(out, checkAuth(cfg.Server.Auth))
	out = append(out, checkLLM(cfg.LLM))
	out = append(out, checkCache(ctx, cfg.LLM.Cache, opts))
	out = append(out, checkAlertRules(cfg.Alerts, opts.Logger))
	out = append(out, checkWebhooks(ctx, cfg.Alerts.Webhooks, opts.InsecureTLS)...)
	out = append(out, checkIntake(cfg.Intake))
	return out
}

// Failed reports whether any finding failed.
func Failed(fs []Finding) bool {
	for _, f := range fs {
		if f.Status == StatusFail {
			return true
		}
	}
	return false
}

// --- checks ---

func checkAuth(a config.AuthConfig) Finding {
	f := Finding{Check: "auth"}
	switch {
	case a.Mode != "apikey":
		f.Status, f.Detail = StatusWarn, "REST and gRPC accept unauthenticated requests"
	case a.Key() == "":
		f.Status, f.Detail = StatusFail, fmt.Sprintf("api key env %s is not set", a.KeyEnv)
	default:
		f.Status, f.Detail = StatusOK, fmt.Sprintf("api key required in %s", a.EffectiveHeader())
	}
	return f
}

func checkLLM(l config.LLMConfig) Finding {
	f := Finding{Check: "llm"}
	switch {
	case l.Provider == "none":
		f.Status, f.Detail = StatusOK, "disabled; every stage runs on rules"
	case l.APIKey() == "":
		f.Status, f.Detail = StatusWarn, fmt.Sprintf("%s and GOOGLE_API_KEY unset; claims run on rules", l.APIKeyEnv)
	default:
		f.Status, f.Detail = StatusOK, fmt.Sprintf("%s:%s", l.Provider, l.Model)
	}
	return f
}

func checkCache(ctx context.Context, c config.CacheConfig, opts Options) Finding {
	f := Finding{Check: "llm cache"}
	if c.Backend != "redis" {
		backend := c.Backend
		if backend == "" {
			backend = "none"
		}
		f.Status, f.Detail = StatusOK, backend
		return f
	}

	rc := llm.NewRedisCache(llm.RedisOptions{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword(),
		DB:       c.RedisDB,
		TTL:      c.TTL,
	}, opts.Logger)
	defer rc.Close()

	pctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := rc.Ping(pctx); err != nil {
		f.Status, f.Detail = StatusFail, fmt.Sprintf("redis %s: %v", c.RedisAddr, err)
		return f
	}
	f.Status, f.Detail = StatusOK, "redis "+c.RedisAddr
	return f
}

func checkAlertRules(a config.AlertsConfig, log *zap.Logger) Finding {
	f := Finding{Check: "alert rules"}
	if _, err := alerts.New(a, log); err != nil {
		f.Status, f.Detail = StatusFail, err.Error()
		return f
	}
	f.Status, f.Detail = StatusOK, fmt.Sprintf("%d compiled", len(a.Rules))
	return f
}

func checkWebhooks(ctx context.Context, hooks []config.WebhookConfig, insecure bool) []Finding {
	out := make([]Finding, 0, len(hooks))
	for i, w := range hooks {
		f := Finding{Check: fmt.Sprintf("webhook[%d] %s", i, w.Type)}
		raw := w.URL()
		u, err := url.Parse(raw)
		switch {
		case raw == "":
			f.Status, f.Detail = StatusFail, fmt.Sprintf("url env %s is not set", w.URLEnv)
		case err != nil || u.Host == "":
			f.Status, f.Detail = StatusFail, fmt.Sprintf("url in %s is not a valid URL", w.URLEnv)
		case u.Scheme != "https":
			f.Status, f.Detail = StatusWarn, "plain http: alert payloads travel unencrypted"
		default:
			f.Status, f.Detail = certFinding(CheckCert(ctx, raw, insecure))
		}
		out = append(out, f)
	}
	return out
}

func certFinding(cs *CertStatus) (string, string) {
	switch cs.Status {
	case CertValid:
		return StatusOK, fmt.Sprintf("%s certificate valid for %d days (%s)", cs.Endpoint, cs.DaysLeft, cs.Issuer)
	case CertExpiring:
		return StatusWarn, fmt.Sprintf("%s certificate expires in %d days", cs.Endpoint, cs.DaysLeft)
	case CertExpired:
		return StatusFail, fmt.Sprintf("%s certificate expired %s", cs.Endpoint, cs.NotAfter)
	default:
		return StatusFail, cs.Endpoint + " unreachable"
	}
}

func checkIntake(in config.IntakeConfig) Finding {
	f := Finding{Check: "intake"}
	if in.Dir == "" {
		f.Status, f.Detail = StatusOK, "disabled"
		return f
	}
	st, err := os.Stat(in.Dir)
	switch {
	case os.IsNotExist(err):
		f.Status, f.Detail = StatusWarn, in.Dir+" does not exist yet; serve will create it"
	case err != nil:
		f.Status, f.Detail = StatusFail, err.Error()
	case !st.IsDir():
		f.Status, f.Detail = StatusFail, in.Dir+" is not a directory"
	default:
		f.Status, f.Detail = StatusOK, "watching "+in.Dir
	}
	return f
}
