package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadable(t *testing.T) {
	tests := map[string]bool{
		"scan.hspy":     true,
		"/data/a.blo":   true,
		"scan.HSPY":     true,
		"scan.mib":      false,
		"scan.hdr":      false,
		"notes.txt":     false,
		"scan.hspy.tmp": false,
	}
	for path, want := range tests {
		assert.Equal(t, want, Loadable(path), path)
	}
}

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var got []string
	w := New(dir, func(path string) {
		mu.Lock()
		got = append(got, path)
		mu.Unlock()
	}).WithDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// give fsnotify time to register the directory
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "scan.blo")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// no late duplicates
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{target}, got)
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), func(string) {})
	assert.Error(t, w.Watch(context.Background()))
}

func TestDebouncerIgnoresSupersededTimer(t *testing.T) {
	d := newDebouncer(time.Hour)
	defer d.stop()

	d.schedule("scan.blo", func() {})
	first := d.gen
	d.schedule("scan.blo", func() {})

	// the first timer fired just before the second schedule stopped it
	assert.False(t, d.fire("scan.blo", first))
	assert.Equal(t, 1, d.len(), "newer entry must survive")

	assert.True(t, d.fire("scan.blo", d.gen))
	assert.Zero(t, d.len())
}

func TestDebouncerRunsLatestOnce(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	var mu sync.Mutex
	var runs []int
	for i := range 5 {
		d.schedule("scan.hspy", func() {
			mu.Lock()
			runs = append(runs, i)
			mu.Unlock()
		})
	}

	assert.Eventually(t, func() bool { return d.len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{4}, runs)
	mu.Unlock()
}
