package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pydiatra/internal/config"
)

func TestDebouncerBatchesEvents(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, zap.NewNop())
	defer d.stop()

	var mu sync.Mutex
	var calls [][]string
	done := make(chan struct{}, 1)
	handler := func(files []string) error {
		mu.Lock()
		calls = append(calls, files)
		mu.Unlock()
		done <- struct{}{}
		return errors.New("logged, not fatal")
	}

	for _, p := range []string{"b.py", "a.py", "b.py"} {
		d.add(FileChangeEvent{Path: p, Operation: "WRITE", Timestamp: time.Now()}, handler)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a.py", "b.py"}}, calls)
}

func TestDebouncerStopDropsPending(t *testing.T) {
	d := newDebouncer(10*time.Millisecond, zap.NewNop())
	called := make(chan struct{}, 1)
	d.add(FileChangeEvent{Path: "a.py"}, func([]string) error {
		called <- struct{}{}
		return nil
	})
	d.stop()
	d.stop()

	select {
	case <-called:
		t.Fatal("handler called after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFileFilters(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o644))
	shell := filepath.Join(dir, "run")
	require.NoError(t, os.WriteFile(shell, []byte("#!/bin/sh\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Files.Exclude = append(cfg.Files.Exclude, "build/**")
	fw, err := NewFileWatcher(cfg, nil)
	require.NoError(t, err)
	defer fw.Close()

	assert.True(t, fw.isPythonFile("/src/a.py", fsnotify.Write))
	assert.True(t, fw.isPythonFile(script, fsnotify.Create))
	assert.False(t, fw.isPythonFile(shell, fsnotify.Create))
	assert.False(t, fw.isPythonFile(script, fsnotify.Remove))
	assert.False(t, fw.isPythonFile("/src/a.txt", fsnotify.Write))

	assert.True(t, fw.shouldSkipFile("/src/.a.py"))
	assert.True(t, fw.shouldSkipFile("/src/a.py~"))
	assert.True(t, fw.shouldSkipFile("/src/build/gen.py"))
	assert.False(t, fw.shouldSkipFile("/src/pkg/a.py"))

	assert.True(t, fw.shouldSkipDir("/src/__pycache__"))
	assert.True(t, fw.shouldSkipDir("/src/build"))
	assert.False(t, fw.shouldSkipDir("/src/pkg"))
}

func TestWatchRegistersDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	file := filepath.Join(root, "pkg", "a.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	fw, err := NewFileWatcher(nil, nil)
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, fw.Watch([]string{root, file}, func([]string) error { return nil }))
	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "pkg"),
		filepath.Join(root, "pkg", "sub"),
	}, fw.GetWatchedPaths())
}
