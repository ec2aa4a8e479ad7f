package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startWatch runs Watch in the background and returns the reload channel.
func startWatch(t *testing.T, path string) <-chan *Config {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Config, 32)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t), func(c *Config) { got <- c })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Watch did not return after cancel")
		}
	})

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	return got
}

func waitFor(t *testing.T, got <-chan *Config, ok func(*Config) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if ok(c) {
				return
			}
		case <-deadline:
			t.Fatal("no matching reload observed")
		}
	}
}

func TestWatch_ReloadsAndKeepsPreviousOnError(t *testing.T) {
	p := writeConfig(t, "retrieval:\n  top_k: 1\n")
	got := startWatch(t, p)

	require.NoError(t, os.WriteFile(p, []byte("retrieval:\n  mode: nope\n"), 0o600))
	time.Sleep(3 * reloadDelay)
	require.NoError(t, os.WriteFile(p, []byte("retrieval:\n  top_k: 4\n"), 0o600))

	waitFor(t, got, func(c *Config) bool {
		assert.NotEqual(t, "nope", c.Retrieval.Mode)
		return c.Retrieval.TopK == 4
	})
}

func TestWatch_AtomicSave(t *testing.T) {
	p := writeConfig(t, "retrieval:\n  top_k: 1\n")
	got := startWatch(t, p)

	tmp := filepath.Join(filepath.Dir(p), ".claimdesk.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("rules:\n  subrogation_min_payout: 9000\n"), 0o600))
	require.NoError(t, os.Rename(tmp, p))

	waitFor(t, got, func(c *Config) bool { return c.Rules.SubrogationMinPayout == 9000 })
}

func TestWatch_UnchangedContentIsIgnored(t *testing.T) {
	content := []byte("retrieval:\n  top_k: 3\n")
	p := writeConfig(t, string(content))
	got := startWatch(t, p)

	require.NoError(t, os.WriteFile(p, content, 0o600))
	select {
	case c := <-got:
		t.Fatalf("unexpected reload: %+v", c.Retrieval)
	case <-time.After(5 * reloadDelay):
	}
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "claimdesk.yaml"), zaptest.NewLogger(t), func(*Config) {})
	assert.Error(t, err)
}
