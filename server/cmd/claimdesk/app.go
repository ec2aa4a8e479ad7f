package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/api"
	"github.com/claimdesk/claimdesk/server/internal/appraisal"
	"github.com/claimdesk/claimdesk/server/internal/config"
	"github.com/claimdesk/claimdesk/server/internal/llm"
	"github.com/claimdesk/claimdesk/server/internal/pipeline"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/rules"
	"github.com/claimdesk/claimdesk/server/internal/store"
	"github.com/claimdesk/claimdesk/server/internal/ws"
)

// app is every long-lived component of a claimdesk process.
type app struct {
	cfg *config.Config
	log *zap.Logger

	// retriever never touches the network; it backs the fallback pipeline
	// and policy search.
	retriever policy.Retriever

	store       *store.Store
	alerts      *alerts.Engine
	inspections *appraisal.Queue
	receiver    *receiver.Receiver

	// hub is nil unless the app serves the dashboard.
	hub *ws.Hub

	closers []func() error
}

// newApp wires the pipelines and their sinks. withHub adds the dashboard
// websocket hub as the receiver's notifier.
func newApp(ctx context.Context, g *globals, withHub bool) (*app, error) {
	cfg, log := g.cfg, g.log
	a := &app{cfg: cfg, log: log}

	corpus, decls, err := loadPolicy(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	rs := rules.New(cfg.Rules)

	a.retriever, err = a.localRetriever(ctx, corpus)
	if err != nil {
		a.Close()
		return nil, err
	}

	var client llm.Client
	var agenticRetriever policy.Retriever = a.retriever
	if !g.fallback {
		gem := a.gemini(ctx)
		if gem != nil {
			client = a.cached(gem)
			if cfg.Retrieval.Mode == "embedding" {
				er, err := policy.NewEmbeddingRetriever(ctx, corpus, gem)
				if err != nil {
					log.Warn("embedding retriever unavailable, using local index", zap.Error(err))
				} else {
					agenticRetriever = er
				}
			}
		}
	}

	observer := func(e pipeline.Event) {
		log.Debug("pipeline stage",
			zap.String("claim", e.ClaimNumber),
			zap.String("stage", e.Stage),
			zap.String("message", e.Message),
		)
	}
	fallback := pipeline.New(pipeline.Options{
		Retriever:    a.retriever,
		Declarations: decls,
		Rules:        rs,
		Logger:       log,
		Observer:     observer,
		TopK:         cfg.Retrieval.TopK,
	})
	var agentic *pipeline.Pipeline
	if client != nil {
		agentic = pipeline.New(pipeline.Options{
			LLM:          client,
			Retriever:    agenticRetriever,
			Declarations: decls,
			Rules:        rs,
			Logger:       log,
			Observer:     observer,
			TopK:         cfg.Retrieval.TopK,
		})
	}

	a.store = store.New(cfg.Store.Retention, log)
	a.alerts, err = alerts.New(cfg.Alerts, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.inspections = appraisal.New(rs, log)

	var notifier receiver.Notifier
	if withHub {
		a.hub = ws.New(a.sources(), cfg.Server.DashboardInterval, log)
		notifier = a.hub
	}
	a.receiver = receiver.New(receiver.Config{
		Agentic:     agentic,
		Fallback:    fallback,
		Store:       a.store,
		Alerts:      a.alerts,
		Inspections: a.inspections,
		Notifier:    notifier,
		Logger:      log,
		Parallelism: cfg.Server.BatchParallelism,
	})

	log.Info("claimdesk ready",
		zap.String("mode", string(a.receiver.Mode(true))),
		zap.String("model", modelName(agentic)),
		zap.String("retrieval", cfg.Retrieval.Mode),
		zap.Int("alert_rules", len(cfg.Alerts.Rules)),
	)
	return a, nil
}

// sources is what the dashboard reads.
func (a *app) sources() api.Sources {
	return api.Sources{Store: a.store, Alerts: a.alerts, Inspections: a.inspections}
}

// reload applies a changed config file: rule thresholds and alert rules are
// swapped live. Listener, LLM and retrieval settings need a restart.
func (a *app) reload(cfg *config.Config) {
	a.receiver.SetRules(rules.New(cfg.Rules))
	if err := a.alerts.Reload(cfg.Alerts); err != nil {
		a.log.Error("config reload: alert rules kept", zap.Error(err))
		return
	}
	a.log.Info("config reloaded", zap.Int("alert_rules", len(cfg.Alerts.Rules)))
}

// Close releases the retrieval index and cache connections and waits for
// in-flight webhook deliveries.
func (a *app) Close() {
	if a.alerts != nil {
		a.alerts.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}

// --- wiring helpers ---

func loadPolicy(cfg config.RetrievalConfig) (*policy.Corpus, *policy.Declarations, error) {
	corpus := policy.DefaultCorpus()
	decls := policy.DefaultDeclarations()
	var err error
	if cfg.Corpus != "" {
		if corpus, err = policy.LoadCorpus(cfg.Corpus); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Declarations != "" {
		if decls, err = policy.LoadDeclarations(cfg.Declarations); err != nil {
			return nil, nil, err
		}
	}
	return corpus, decls, nil
}

// localRetriever builds the sqlite FTS index, or keyword routing when the
// mode asks for it.
func (a *app) localRetriever(ctx context.Context, corpus *policy.Corpus) (policy.Retriever, error) {
	if a.cfg.Retrieval.Mode == "keyword" {
		return policy.NewKeywordRetriever(corpus), nil
	}
	ix, err := policy.NewIndexRetriever(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("policy index: %w", err)
	}
	a.closers = append(a.closers, ix.Close)
	return ix, nil
}

// gemini returns nil when no model is configured or the client cannot be
// created; claims then run on rules.
func (a *app) gemini(ctx context.Context) *llm.Gemini {
	lc := a.cfg.LLM
	if !lc.Enabled() {
		a.log.Info("no LLM configured, running in fallback mode")
		return nil
	}
	gem, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:         lc.APIKey(),
		Model:          lc.Model,
		EmbeddingModel: lc.EmbeddingModel,
		Temperature:    lc.Temperature,
		BaseURL:        lc.BaseURL,
		Timeout:        lc.Timeout,
	})
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			a.log.Warn("gemini client unavailable, running in fallback mode", zap.Error(err))
		}
		return nil
	}
	return gem
}

func (a *app) cached(c llm.Client) llm.Client {
	cc := a.cfg.LLM.Cache
	switch cc.Backend {
	case "memory":
		return llm.Cached(c, llm.NewMemoryCache(cc.TTL))
	case "redis":
		rc := llm.NewRedisCache(llm.RedisOptions{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword(),
			DB:       cc.RedisDB,
			TTL:      cc.TTL,
		}, a.log)
		a.closers = append(a.closers, rc.Close)
		return llm.Cached(c, rc)
	default:
		return c
	}
}

func modelName(p *pipeline.Pipeline) string {
	if p == nil {
		return "rules"
	}
	return p.Name()
}
