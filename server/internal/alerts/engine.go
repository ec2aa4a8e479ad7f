package alerts

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is a single alert event produced by the rule engine.
type Alert struct {
	ID          string     `json:"id"`
	RuleName    string     `json:"rule_name"`
	ClaimNumber string     `json:"claim_number"`
	Severity    string     `json:"severity"`
	Condition   string     `json:"condition"`
	Message     string     `json:"message"`
	FiredAt     time.Time  `json:"fired_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	State       string     `json:"state"`
}

type rule struct {
	config.AlertRule
	prg cel.Program
}

// Engine evaluates alert rules against processed claims and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:claimNumber"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client   *http.Client
	log      *zap.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

// New creates an Engine from the alert configuration. Every condition is
// compiled up front; an invalid one is an error. An Engine with no rules is
// valid and Evaluate becomes a no-op.
func New(cfg config.AlertsConfig, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		now:      time.Now,
	}
	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload swaps in new rules and webhooks. On error the current ones stay.
// Firing alerts of removed rules are kept until resolved by override.
func (e *Engine) Reload(cfg config.AlertsConfig) error {
	compiled := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		prg, err := compileCondition(r.Condition)
		if err != nil {
			return fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, rule{AlertRule: r, prg: prg})
	}
	e.mu.Lock()
	e.rules = compiled
	e.webhooks = cfg.Webhooks
	e.mu.Unlock()
	return nil
}

// Evaluate tests every rule against a processed claim. Rules that fire are
// stored and delivered asynchronously. Alerts that were firing for the claim
// but whose condition is now false are resolved.
func (e *Engine) Evaluate(c *types.ClaimInfo, res *types.Result) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	vars, err := activation(c, res)
	if err != nil {
		e.log.Error("alert activation failed", zap.String("claim", c.ClaimNumber), zap.Error(err))
		return
	}

	now := e.now()
	for _, r := range rules {
		// A condition that cannot be evaluated (e.g. an absent optional
		// field) counts as false.
		fires, err := evalCondition(r.prg, vars)
		if err != nil {
			e.log.Debug("alert condition not evaluable",
				zap.String("rule", r.Name),
				zap.String("claim", c.ClaimNumber),
				zap.Error(err),
			)
		}
		key := r.Name + ":" + c.ClaimNumber
		if fires {
			e.fire(r, c.ClaimNumber, key, now)
		} else {
			e.resolve(key, now)
		}
	}
}

// Resolve closes every firing alert for claimNumber, e.g. after an adjuster
// override. It returns the number resolved.
func (e *Engine) Resolve(claimNumber string) int {
	now := e.now()
	e.mu.Lock()
	var keys []string
	for k, a := range e.active {
		if a.ClaimNumber == claimNumber {
			keys = append(keys, k)
		}
	}
	e.mu.Unlock()

	for _, k := range keys {
		e.resolve(k, now)
	}
	return len(keys)
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := lastChange(out[i]), lastChange(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Firing returns the number of alerts currently firing.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// --- helpers ---

func (e *Engine) fire(r rule, claimNumber, key string, now time.Time) {
	cooldown := r.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	e.mu.Lock()
	if _, firing := e.active[key]; firing || now.Sub(e.lastFire[key]) <= cooldown {
		e.mu.Unlock()
		return
	}
	sev := r.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:          uuid.NewString(),
		RuleName:    r.Name,
		ClaimNumber: claimNumber,
		Severity:    sev,
		Condition:   r.Condition,
		Message:     fmt.Sprintf("[%s] %s fired on claim %s: %s", sev, r.Name, claimNumber, strings.TrimSpace(r.Condition)),
		FiredAt:     now,
		State:       StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	e.log.Warn("alert fired",
		zap.String("rule", r.Name),
		zap.String("claim", claimNumber),
		zap.String("severity", sev),
	)
	e.dispatch(&alertCopy)
}

func (e *Engine) resolve(key string, now time.Time) {
	e.mu.Lock()
	a, ok := e.active[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	e.log.Info("alert resolved",
		zap.String("rule", a.RuleName),
		zap.String("claim", a.ClaimNumber),
	)
	e.dispatch(&alertCopy)
}

func (e *Engine) dispatch(a *Alert) {
	e.mu.Lock()
	hooks := e.webhooks
	e.mu.Unlock()
	if len(hooks) == 0 {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.deliver(hooks, a)
	}()
}

func lastChange(a *Alert) time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.FiredAt
}
