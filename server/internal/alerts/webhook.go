package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/server/internal/config"
)

const deliveryTimeout = 10 * time.Second

// encoder renders an alert into the body a webhook type expects.
type encoder func(a *Alert) any

var encoders = map[string]encoder{
	"slack": slackBody,
	"teams": teamsBody,
	"http":  httpBody,
}

// deliver posts a to every configured target. Failures are logged only.
func (e *Engine) deliver(hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		enc, ok := encoders[wh.Type]
		if !ok {
			e.log.Warn("unknown webhook type, skipping", zap.String("type", wh.Type))
			continue
		}
		body, err := json.Marshal(enc(a))
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			err = e.post(ctx, url, body)
			cancel()
		}

		fields := []zap.Field{
			zap.String("type", wh.Type),
			zap.String("rule", a.RuleName),
			zap.String("claim", a.ClaimNumber),
			zap.String("state", a.State),
		}
		if err != nil {
			e.log.Error("webhook delivery failed", append(fields, zap.Error(err))...)
			continue
		}
		e.log.Debug("webhook delivered", fields...)
	}
}

// post sends body as JSON. Any status of 400 or above is an error that
// quotes the start of the response.
func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "claimdesk-alerts")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if len(snippet) == 0 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("alerts: webhook returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

// --- payloads ---------------------------------------------------------------

func slackBody(a *Alert) any {
	if a.State == StateResolved {
		return map[string]string{
			"text": fmt.Sprintf(":white_check_mark: %s cleared for claim `%s`", a.RuleName, a.ClaimNumber),
		}
	}
	return map[string]string{
		"text": fmt.Sprintf("%s *%s* on claim `%s`\n%s", badge(a.Severity), a.RuleName, a.ClaimNumber, a.Message),
	}
}

func teamsBody(a *Alert) any {
	color := accent(a.Severity)
	if a.State == StateResolved {
		color = "2EB67D"
	}
	facts := []map[string]string{
		{"name": "Claim", "value": a.ClaimNumber},
		{"name": "Severity", "value": a.Severity},
		{"name": "Condition", "value": a.Condition},
		{"name": "Fired", "value": a.FiredAt.UTC().Format(time.RFC3339)},
	}
	if a.ResolvedAt != nil {
		facts = append(facts, map[string]string{"name": "Resolved", "value": a.ResolvedAt.UTC().Format(time.RFC3339)})
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("Claim %s: %s (%s)", a.ClaimNumber, a.RuleName, a.State),
		"sections": []map[string]any{{
			"text":  a.Message,
			"facts": facts,
		}},
	}
}

func httpBody(a *Alert) any {
	return map[string]any{
		"event": "claim_alert." + a.State,
		"alert": a,
	}
}

func badge(severity string) string {
	switch severity {
	case "critical":
		return ":rotating_light: [CRITICAL]"
	case "warning":
		return ":warning: [WARNING]"
	default:
		return ":information_source: [INFO]"
	}
}

func accent(severity string) string {
	switch severity {
	case "critical":
		return "D92D20"
	case "warning":
		return "F79009"
	default:
		return "1570EF"
	}
}
