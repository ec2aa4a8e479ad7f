package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimdesk/claimdesk/server/internal/api"
	"github.com/claimdesk/claimdesk/server/internal/auth"
	"github.com/claimdesk/claimdesk/server/internal/config"
	"github.com/claimdesk/claimdesk/server/internal/intake"
	"github.com/claimdesk/claimdesk/server/internal/rpc"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, dashboard websocket and gRPC health",
		Long: `Starts the claims desk:

  REST API        :<http_port>/api/v1/...
  Prometheus      :<http_port>/metrics
  Dashboard feed  :<http_port>/ws/dashboard
  gRPC health     :<grpc_port> (grpc.health.v1)

When intake.dir is set, claim files dropped there are processed
automatically. Rule thresholds and alert rules reload when the config file
changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

func runServe(parent context.Context, g *globals) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := g.cfg, g.log
	a, err := newApp(ctx, g, true)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.New(api.Config{
		Receiver:    a.receiver,
		Store:       a.store,
		Alerts:      a.alerts,
		Inspections: a.inspections,
		Retriever:   a.retriever,
		Logger:      log,
		Version:     version,
	})
	mux := http.NewServeMux()
	mux.Handle("/api/", handler)
	mux.Handle("/metrics", handler)
	mux.Handle("/ws/dashboard", a.hub)

	authn := auth.Middleware(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key(),
		"/api/v1/health", "/metrics")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           authn(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var rpcSrv *rpc.Server
	var rpcLis net.Listener
	if cfg.Server.GRPCPort > 0 {
		rpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
		}
		rpcSrv = rpc.New(rpc.Options{
			AuthMode:   cfg.Server.Auth.Mode,
			AuthHeader: cfg.Server.Auth.EffectiveHeader(),
			AuthKey:    cfg.Server.Auth.Key(),
			Logger:     log,
		})
		rpcSrv.SetAgentic(a.receiver.AgenticAvailable())
	}

	var inbox *intake.Watcher
	if cfg.Intake.Dir != "" {
		inbox, err = intake.New(a.receiver, intake.Options{
			Dir:        cfg.Intake.Dir,
			UseAgentic: cfg.Intake.UseLLM,
			Logger:     log,
		})
		if err != nil {
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		a.store.Run(egCtx)
		return nil
	})
	eg.Go(func() error {
		a.hub.Run(egCtx)
		return nil
	})
	if g.configLoaded {
		eg.Go(func() error {
			if err := config.Watch(egCtx, g.configPath, log, a.reload); err != nil {
				log.Warn("config watch disabled", zap.Error(err))
			}
			return nil
		})
	}
	if inbox != nil {
		eg.Go(func() error { return inbox.Run(egCtx) })
	}
	if rpcSrv != nil {
		eg.Go(func() error { return rpcSrv.Serve(rpcLis) })
	}
	eg.Go(func() error {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info("claimdesk shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if rpcSrv != nil {
			rpcSrv.Stop(sctx)
		}
		return httpSrv.Shutdown(sctx)
	})
	return eg.Wait()
}
