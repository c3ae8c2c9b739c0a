//go:build linux

package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against the real inotify-backed event source. Filesystem
// changes are made before calling Watch, so the kernel has the events queued
// and the blocking read returns immediately.

func TestIntegrationFileWatcherModify(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0644))

	w, err := NewFileWatcher(file)
	require.NoError(t, err)
	defer w.Close()

	logger, logs := newLogCapture()
	w.AttachLogger(logger)

	f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(" world")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err := w.Watch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "file modified")
	assert.Zero(t, w.Watches(), "file watchers have no registry")
}

func TestIntegrationFileWatcherConstructionFails(t *testing.T) {
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Nil(t, w)
	assert.Error(t, err)
}

func TestIntegrationRecursiveDirCreate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0755))

	w, err := NewDirWatcher(root, Recursive)
	require.NoError(t, err)
	defer w.Close()

	logger, logs := newLogCapture()
	w.AttachLogger(logger)

	require.Equal(t, 2, w.Watches())

	// A new subdirectory two levels down is picked up through the
	// pre-registered watch on root/a.
	newDir := filepath.Join(root, "a", "b")
	require.NoError(t, os.Mkdir(newDir, 0755))

	ok, err := w.Watch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "directory created")
	assert.Equal(t, 3, w.Watches())

	// And the dynamically added watch is itself live.
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "new.txt"), []byte("x"), 0644))
	ok, err = w.Watch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "file created")
}

func TestIntegrationHiddenDirCreateNotWatched(t *testing.T) {
	root := t.TempDir()

	w, err := NewDirWatcher(root, Recursive)
	require.NoError(t, err)
	defer w.Close()

	logger, logs := newLogCapture()
	w.AttachLogger(logger)

	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0755))

	ok, err := w.Watch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "directory created")
	assert.Equal(t, 1, w.Watches(), "hidden directories must not be registered")
}

func TestIntegrationHeuristicMissesNestedEvents(t *testing.T) {
	root := t.TempDir()

	w, err := NewDirWatcher(root, Heuristic)
	require.NoError(t, err)
	defer w.Close()

	logger, logs := newLogCapture()
	w.AttachLogger(logger)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	ok, err := w.Watch()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "directory created")
	assert.Zero(t, w.Watches())

	// Events inside the unwatched subdirectory never arrive.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "unseen.txt"), []byte("x"), 0644))

	done := make(chan struct{})
	go func() {
		w.Watch()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("heuristic watcher saw an event inside an unwatched subdirectory")
	case <-time.After(300 * time.Millisecond):
	}
}
