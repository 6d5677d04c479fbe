package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapunits/internal/testutil"
)

func TestNew_NoFiles(t *testing.T) {
	_, err := New(nil, func([]string) {})
	assert.Error(t, err)
}

func TestWatcher_Files(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "b.txt"), filepath.Join(dir, "a.txt")}, func([]string) {})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, w.Files())
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "units.txt")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("smoot = 1.7018 * meter\n"), 0o600))

	changes := make(chan []string, 4)
	w, err := New([]string{watched}, func(changed []string) { changes <- changed },
		WithDebounce(20*time.Millisecond),
		WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(watched, []byte("smoot = 1.70 * meter\n"), 0o600))
	require.NoError(t, os.WriteFile(watched, []byte("smoot = 1.7018 * meter\n"), 0o600))

	select {
	case changed := <-changes:
		assert.Equal(t, []string{watched}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
