package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatchChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[agent]\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := zerolog.Nop()
	events := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- WatchChanges(ctx, &log, path, events) }()

	// unrelated files in the same directory are ignored
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600)
		_ = os.WriteFile(path, []byte("[agent]\nagent_id = \"a\"\n"), 0o600)
		select {
		case <-events:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}

func TestWatchChanges_MissingDirectory(t *testing.T) {
	log := zerolog.Nop()
	err := WatchChanges(context.Background(), &log, filepath.Join(t.TempDir(), "missing", "config.toml"), make(chan struct{}, 1))
	require.Error(t, err)
}
