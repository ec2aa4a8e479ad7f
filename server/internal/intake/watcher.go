package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

const (
	processedDir = "processed"
	failedDir    = "failed"

	defaultDebounce = 250 * time.Millisecond
)

// Processor runs a claim and stores the outcome. *receiver.Receiver
// satisfies it.
type Processor interface {
	Process(ctx context.Context, c *types.ClaimInfo, useAgentic bool) (*store.Record, error)
}

// Options configures a Watcher.
type Options struct {
	Dir        string
	UseAgentic bool
	// Debounce is the quiet period after the last write before a file is
	// read. Defaults to 250ms.
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher processes claim files dropped into an inbox directory.
type Watcher struct {
	proc Processor
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// New creates a Watcher, creating the inbox and its processed/ and failed/
// subdirectories when missing.
func New(p Processor, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("intake: inbox dir is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	for _, d := range []string{opts.Dir, filepath.Join(opts.Dir, processedDir), filepath.Join(opts.Dir, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("intake: create %s: %w", d, err)
		}
	}
	return &Watcher{
		proc:    p,
		opts:    opts,
		log:     opts.Logger,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
	}, nil
}

// Run processes the files already in the inbox, then watches for new ones
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	defer watcher.Close()
	defer w.stopTimers()

	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("intake: watch %s: %w", w.opts.Dir, err)
	}
	w.log.Info("intake: watching inbox", zap.String("dir", w.opts.Dir))

	if n := w.Scan(ctx); n > 0 {
		w.log.Info("intake: processed waiting claims", zap.Int("count", n))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if isClaimFile(event.Name) {
				w.schedule(ctx, event.Name)
			}

		case path := <-w.ready:
			w.processFile(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("intake: watcher error", zap.Error(err))
		}
	}
}

// Scan processes every claim file currently in the inbox, in name order,
// and returns how many it handled. It stops early once ctx is done; files
// not yet handled stay in the inbox for the next run.
func (w *Watcher) Scan(ctx context.Context) int {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		w.log.Error("intake: read inbox", zap.Error(err))
		return 0
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isClaimFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	handled := 0
	for _, n := range names {
		if ctx.Err() != nil || !w.processFile(ctx, filepath.Join(w.opts.Dir, n)) {
			break
		}
		handled++
	}
	return handled
}

// --- helpers ---

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
}

// processFile runs one claim file and moves it out of the inbox. It
// returns false when the run was interrupted by ctx; the file is then left
// where it is.
func (w *Watcher) processFile(ctx context.Context, path string) bool {
	log := w.log.With(zap.String("file", filepath.Base(path)))

	c, err := types.ParseClaimFile(path)
	if errors.Is(err, types.ErrClaimNotFound) {
		// Already moved, e.g. picked up by Scan before its event arrived.
		return true
	}
	if err != nil {
		log.Warn("intake: rejected claim file", zap.Error(err))
		w.fail(path, err)
		return true
	}

	rec, err := w.proc.Process(ctx, c, w.opts.UseAgentic)
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		log.Info("intake: interrupted, claim left in inbox", zap.String("claim", c.ClaimNumber))
		return false
	}
	if err != nil {
		log.Error("intake: claim failed", zap.String("claim", c.ClaimNumber), zap.Error(err))
		w.fail(path, err)
		return true
	}

	dst := filepath.Join(w.opts.Dir, processedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		log.Error("intake: move processed file", zap.Error(err))
		return true
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err == nil {
		err = os.WriteFile(dst+".result.json", out, 0o644)
	}
	if err != nil {
		log.Warn("intake: write result", zap.Error(err))
	}
	log.Info("intake: claim processed",
		zap.String("claim", c.ClaimNumber),
		zap.String("outcome", string(rec.Result.Decision.Outcome)),
	)
	return true
}

func (w *Watcher) fail(path string, cause error) {
	dst := filepath.Join(w.opts.Dir, failedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		w.log.Error("intake: move failed file", zap.String("file", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(dst+".error.txt", []byte(cause.Error()+"\n"), 0o644); err != nil {
		w.log.Warn("intake: write error note", zap.Error(err))
	}
}

// isClaimFile matches *.json files, skipping hidden and partial uploads.
func isClaimFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(strings.ToLower(name), ".json") && !strings.HasPrefix(name, ".")
}
