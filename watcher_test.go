// watcher_test.go: Tests for definitions directory hot reload
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchedBase = `
id: base
name: Base
line-length: 10
fields: [{name: core, start: 1, end: 5}]
`

func TestDefinitionWatcher_Poll(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(WithInternalCatalog(nil, nil))
	w, err := r.WatchDefinitions(dir, WatchConfig{})
	require.NoError(t, err)

	assert.Empty(t, w.Poll())

	writeFile(t, filepath.Join(dir, "a-child.yml"), `
id: child
name: Child
extends: base
fields: [{name: extra, start: 6, end: 10}]
`)
	basePath := filepath.Join(dir, "b-base.yml")
	writeFile(t, basePath, watchedBase)

	changes := w.Poll()
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"child"}, changes[0].Loaded)
	assert.Equal(t, []string{"base"}, changes[1].Loaded)
	assert.NoError(t, changes[0].Err)
	assert.Equal(t, []string{"base", "child"}, r.RegisteredIDs())
	assert.Equal(t, 2, w.WatchedFiles())

	// Nothing changed.
	assert.Empty(t, w.Poll())

	// Modify: the base layout gains a field.
	writeFile(t, basePath, `
id: base
name: Base
line-length: 12
fields: [{name: core, start: 1, end: 5}, {name: tail, start: 11, end: 12}]
`)
	changes = w.Poll()
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"base"}, changes[0].Removed)
	assert.Equal(t, []string{"base"}, changes[0].Loaded)
	base, err := r.Resolve("base")
	require.NoError(t, err)
	assert.Len(t, base.Fields(), 2)

	// Delete.
	require.NoError(t, os.Remove(basePath))
	changes = w.Poll()
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"base"}, changes[0].Removed)
	assert.Equal(t, []string{"child"}, r.RegisteredIDs())
	assert.Equal(t, int64(5), w.Polls())
	assert.False(t, w.LastPoll().IsZero())
}

func TestDefinitionWatcher_BrokenFileKeepsPreviousLayouts(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(WithInternalCatalog(nil, nil))
	w, err := r.WatchDefinitions(dir, WatchConfig{})
	require.NoError(t, err)

	path := filepath.Join(dir, "base.yaml")
	writeFile(t, path, watchedBase)
	require.Len(t, w.Poll(), 1)

	writeFile(t, path, "id: [broken yaml")
	changes := w.Poll()
	require.Len(t, changes, 1)
	assert.Error(t, changes[0].Err)
	assert.Equal(t, []string{"base"}, r.RegisteredIDs())

	// The failure is reported once, not on every scan.
	assert.Empty(t, w.Poll())
}

func TestDefinitionWatcher_InvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(WithInternalCatalog(nil, nil))
	w, err := r.WatchDefinitions(dir, WatchConfig{})
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "bad.yml"), `
layouts:
  - id: good
    name: Good
    line-length: 5
    fields: [{name: a, start: 1, end: 5}]
  - id: bad
    name: Bad
    line-length: 5
    fields: [{name: a, start: 1, end: 6}]
`)
	changes := w.Poll()
	require.Len(t, changes, 1)
	assert.Empty(t, changes[0].Loaded)
	assert.True(t, IsConfigurationError(changes[0].Err))
	assert.Empty(t, r.RegisteredIDs())

	// The failure is reported once.
	assert.Empty(t, w.Poll())
}

func TestDefinitionWatcher_InvalidModificationKeepsPreviousLayouts(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(WithInternalCatalog(nil, nil))
	w, err := r.WatchDefinitions(dir, WatchConfig{})
	require.NoError(t, err)

	path := filepath.Join(dir, "base.yml")
	writeFile(t, path, watchedBase)
	require.Len(t, w.Poll(), 1)

	writeFile(t, path, `
layouts:
  - id: base
    name: Base
    line-length: 20
    fields: [{name: core, start: 1, end: 20}]
  - id: other
    name: Other
    line-length: 5
    fields: [{name: a, start: 1, end: 6}]
`)
	changes := w.Poll()
	require.Len(t, changes, 1)
	assert.True(t, IsConfigurationError(changes[0].Err))
	assert.Empty(t, changes[0].Loaded)
	assert.Empty(t, changes[0].Removed)

	assert.Equal(t, []string{"base"}, r.RegisteredIDs())
	base, err := r.Resolve("base")
	require.NoError(t, err)
	assert.Equal(t, 5, base.Fields()[0].End())

	// Fixing the file replaces the restored layout.
	writeFile(t, path, `
id: base
name: Base
line-length: 20
fields: [{name: core, start: 1, end: 20}]
`)
	changes = w.Poll()
	require.Len(t, changes, 1)
	require.NoError(t, changes[0].Err)
	assert.Equal(t, []string{"base"}, changes[0].Removed)
	assert.Equal(t, []string{"base"}, changes[0].Loaded)
	base, err = r.Resolve("base")
	require.NoError(t, err)
	assert.Equal(t, 20, base.Fields()[0].End())
}

func TestDefinitionWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.yml"), watchedBase)

	var notified atomic.Int32
	r := NewRegistry(WithInternalCatalog(nil, nil))
	w, err := r.WatchDefinitions(dir, WatchConfig{
		PollInterval: 10 * time.Millisecond,
		OnChange:     func([]DefinitionChange) { notified.Add(1) },
	})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.Equal(t, ErrCodeWatcherBusy, ErrorCode(w.Start()))

	// The first scan runs synchronously in Start.
	assert.True(t, r.IsRegistered("base"))
	assert.Equal(t, int32(1), notified.Load())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.Equal(t, ErrCodeWatcherStopped, ErrorCode(w.Stop()))
}

func TestWatchDefinitions_InvalidDirectory(t *testing.T) {
	r := NewRegistry(WithInternalCatalog(nil, nil))

	_, err := r.WatchDefinitions(filepath.Join(t.TempDir(), "missing"), WatchConfig{})
	assert.Equal(t, ErrCodeIOError, ErrorCode(err))

	file := filepath.Join(t.TempDir(), "file.yml")
	writeFile(t, file, watchedBase)
	_, err = r.WatchDefinitions(file, WatchConfig{})
	assert.Equal(t, ErrCodeIOError, ErrorCode(err))

	_, err = r.WatchDefinitions(t.TempDir(), WatchConfig{PollInterval: -time.Second})
	assert.Equal(t, ErrCodeInvalidSettings, ErrorCode(err))
}
