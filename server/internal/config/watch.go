package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay is the quiet period after the last change to the file before
// it is read again. Editors emit several events per save.
const reloadDelay = 200 * time.Millisecond

// Watch calls onChange with the newly loaded Config whenever the file at
// path changes, until ctx is cancelled.
//
// The parent directory is watched so that atomic saves (write to a temp
// file, rename over path) are seen. A save that leaves the content
// unchanged does not call onChange. A config that fails to load is logged
// and skipped; the caller keeps running on the previous one.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	log = log.With(zap.String("path", abs))
	log.Info("config: watching for changes")

	last := digest(abs)
	pending := time.NewTimer(reloadDelay)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == abs && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending.Reset(reloadDelay)
			}

		case <-pending.C:
			sum := digest(abs)
			if sum == nil || *sum == derefOr(last) {
				continue
			}
			last = sum
			cfg, err := Load(abs)
			if err != nil {
				log.Error("config: reload failed, keeping previous config", zap.Error(err))
				continue
			}
			log.Info("config: reloaded")
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config: watcher error", zap.Error(err))
		}
	}
}

// digest returns the content hash of path, or nil when it cannot be read
// (e.g. mid-rename).
func digest(path string) *[sha256.Size]byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	sum := sha256.Sum256(data)
	return &sum
}

func derefOr(p *[sha256.Size]byte) [sha256.Size]byte {
	if p == nil {
		return [sha256.Size]byte{}
	}
	return *p
}
