package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestWatcher_ReloadsValidChanges checks that valid writes are delivered and
// invalid ones are ignored.
func TestWatcher_ReloadsValidChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, Save(path, validSettings()))

	var (
		mu       sync.Mutex
		reloaded []*Config
	)

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()

		reloaded = append(reloaded, cfg)
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()

		return len(reloaded)
	}

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("layers: []\n"), DefaultFilePermissions))
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, count())

	updated := validSettings()
	updated.Behaviors[0].Timeout = 3 * time.Second

	data, err := yaml.Marshal(updated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, DefaultFilePermissions))

	require.Eventually(t, func() bool { return count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, 3*time.Second, reloaded[len(reloaded)-1].Behaviors[0].Timeout)
}
