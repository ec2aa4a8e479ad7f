package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/server/internal/config"
	"github.com/claimdesk/claimdesk/server/internal/format"
	"github.com/claimdesk/claimdesk/server/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultConfigPath = "claimdesk.yaml"

// globals holds the persistent flags and what PersistentPreRunE builds from
// them.
type globals struct {
	configPath string
	verbose    bool
	fallback   bool
	output     string

	cfg *config.Config
	log *zap.Logger

	// configLoaded is false when running on config.Default().
	configLoaded bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "claimdesk",
		Short: "Auto claims triage, fraud scoring and coverage decisions",
		Long: `claimdesk turns a First Notice of Loss into a coverage decision: an FNOL
summary, a triage priority, a fraud signal and a guardrailed payout.

Each stage asks Gemini when GEMINI_API_KEY is set and falls back to
deterministic rules otherwise, so every command works offline.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd.Flags().Changed("config"))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&g.configPath, "config", "c", defaultConfigPath, "path to claimdesk.yaml")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&g.fallback, "fallback", false, "never call the LLM; run every stage on rules")
	f.StringVarP(&g.output, "output", "o", "table", "output format: table|md|json")

	root.AddCommand(
		newServeCmd(g),
		newProcessCmd(g),
		newBatchCmd(g),
		newSamplesCmd(g),
		newPolicyCmd(g),
		newMCPCmd(g),
		newDoctorCmd(g),
	)
	return root
}

// init loads the config and builds the logger. A missing config file is
// fine unless --config was given explicitly.
func (g *globals) init(explicit bool) error {
	switch g.output {
	case "table", "md", "markdown", "json":
	default:
		return fmt.Errorf("--output %q unknown: want table|md|json", g.output)
	}

	cfg := config.Default()
	_, err := os.Stat(g.configPath)
	switch {
	case err == nil:
		if cfg, err = config.Load(g.configPath); err != nil {
			return err
		}
		g.configLoaded = true
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return fmt.Errorf("claimdesk config: %w", err)
	}

	log, err := logging.New(cfg.Log, g.verbose)
	if err != nil {
		return err
	}
	g.cfg, g.log = cfg, log
	g.log.Debug("config ready",
		zap.String("path", g.configPath),
		zap.Bool("loaded", g.configLoaded),
		zap.Bool("fallback", g.fallback),
	)
	return nil
}

func (g *globals) json() bool {
	return g.output == "json"
}

func (g *globals) mode() format.Mode {
	return format.ParseMode(g.output)
}

// --- helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
