package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/claimdesk/claimdesk/server/internal/config"
)

// Level resolves the configured level. verbose forces debug.
func Level(cfg config.LogConfig, verbose bool) (zapcore.Level, error) {
	if verbose {
		return zapcore.DebugLevel, nil
	}
	if cfg.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Config returns the zap configuration for cfg: the production preset with
// the requested level and encoding, writing to stderr.
func Config(cfg config.LogConfig, verbose bool) (zap.Config, error) {
	lvl, err := Level(cfg, verbose)
	if err != nil {
		return zap.Config{}, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	switch cfg.Format {
	case "", "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.Sampling = nil
	default:
		return zap.Config{}, fmt.Errorf("log format %q unknown: want json|console", cfg.Format)
	}
	if verbose {
		zc.Development = true
		zc.Sampling = nil
	}
	return zc, nil
}

// New builds the root logger.
func New(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc, err := Config(cfg, verbose)
	if err != nil {
		return nil, err
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
