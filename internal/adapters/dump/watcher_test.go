package dump

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherRerunsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "recipes.json")
	require.NoError(t, os.WriteFile(target, []byte("[]"), 0o600))

	var runs atomic.Int32
	triggered := make(chan struct{}, 8)
	w, err := NewWatcher([]string{target}, func(context.Context) error {
		runs.Add(1)
		triggered <- struct{}{}
		return nil
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(target, []byte(`[{"id":"r:a"}]`), 0o600))

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a run")
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	require.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestNewWatcherValidates(t *testing.T) {
	_, err := NewWatcher(nil, func(context.Context) error { return nil })
	require.Error(t, err)
	_, err = NewWatcher([]string{"a.json"}, nil)
	require.Error(t, err)
}
