package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, w *SeedWatcher, debounce time.Duration) {
	t.Helper()
	w.debounceDur = debounce

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
}

func TestSeedWatcher_ReloadsOnWrite(t *testing.T) {
	r := openRuntime(t, testSeed)
	w, err := r.Watcher()
	require.NoError(t, err)
	startWatcher(t, w, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(r.SeedPath(), []byte("nodes:\n  - key: x\n    label: X\n"), 0644))

	assert.Eventually(t, func() bool {
		nodes, _ := r.Graph.Stats()
		return nodes == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Stats().Reloads, 1)
}

func TestSeedWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	var calls atomic.Int32
	w, err := NewSeedWatcher(path, func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	startWatcher(t, w, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("nodes: []\n"), 0644))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSeedWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, err := NewSeedWatcher(filepath.Join(dir, "graph.yaml"), func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	startWatcher(t, w, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.Zero(t, w.Stats().Events)
}

func TestSeedWatcher_ReloadErrorCounted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	w, err := NewSeedWatcher(path, func() error { return errors.New("bad seed") })
	require.NoError(t, err)
	startWatcher(t, w, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.Eventually(t, func() bool { return w.Stats().Errors >= 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, w.Stats().Reloads)
}

func TestSeedWatcher_RunAgainAfterStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	var reloads atomic.Int32
	w, err := NewSeedWatcher(path, func() error {
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		<-w.Ready()
		// Ready stays closed from the first run, so keep writing until seen.
		want := int32(i + 1)
		assert.Eventually(t, func() bool {
			if reloads.Load() >= want {
				return true
			}
			_ = os.WriteFile(path, []byte("nodes: []\n"), 0644)
			return false
		}, 5*time.Second, 150*time.Millisecond)
		cancel()
		require.NoError(t, <-done)
	}
}

func TestSeedWatcher_MissingDirectory(t *testing.T) {
	w, err := NewSeedWatcher(filepath.Join(t.TempDir(), "nope", "graph.yaml"), func() error { return nil })
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestNewSeedWatcher_RequiresPath(t *testing.T) {
	_, err := NewSeedWatcher("", nil)
	assert.Error(t, err)
}
