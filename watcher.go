// watcher.go: Hot reload of a definitions directory
//
// A DefinitionWatcher polls a directory of YAML definition files and keeps
// the registry in step with it: new and modified files are (re)registered,
// removed files have their layouts unregistered. Change detection compares
// modification time and size. A file is applied as a whole: when it does not
// parse or one of its definitions fails to build, the layouts it held before
// stay registered.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"go.uber.org/zap"
)

// WatchConfig configures a DefinitionWatcher.
type WatchConfig struct {
	// PollInterval is how often the directory is scanned. Default: 5 seconds.
	PollInterval time.Duration

	// OnChange is called after every scan that changed something.
	OnChange func(changes []DefinitionChange)
}

// DefinitionChange reports what one scan did to one file.
type DefinitionChange struct {
	Path    string
	Loaded  []string
	Removed []string
	Err     error
}

type definitionFileState struct {
	modTime time.Time
	size    int64
	ids     []string
}

type pendingDefinition struct {
	path string
	def  Definition
}

// DefinitionWatcher keeps a registry in step with a definitions directory.
type DefinitionWatcher struct {
	registry *Registry
	dir      string
	config   WatchConfig

	pollMu   sync.Mutex
	files    map[string]*definitionFileState
	lastPoll atomic.Int64
	polls    atomic.Int64

	running   atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatchDefinitions creates a watcher for dir. Nothing is loaded until Poll
// or Start is called.
func (r *Registry) WatchDefinitions(dir string, config WatchConfig) (*DefinitionWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to access definitions directory").
			WithContext("path", dir)
	}
	if !info.IsDir() {
		return nil, errors.New(ErrCodeIOError, "definitions path is not a directory").
			WithContext("path", dir)
	}
	if config.PollInterval < 0 {
		return nil, errors.New(ErrCodeInvalidSettings, "poll interval must not be negative")
	}
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	return &DefinitionWatcher{
		registry: r,
		dir:      dir,
		config:   config,
		files:    make(map[string]*definitionFileState),
	}, nil
}

// Start polls once and then keeps polling in the background until Stop.
func (w *DefinitionWatcher) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New(ErrCodeWatcherBusy, "definition watcher is already running")
	}
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.report(w.Poll())
	go w.watchLoop()
	return nil
}

// Stop ends background polling and waits for the loop to exit.
func (w *DefinitionWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return errors.New(ErrCodeWatcherStopped, "definition watcher is not running")
	}
	close(w.stopCh)
	<-w.stoppedCh
	return nil
}

// IsRunning reports whether background polling is active.
func (w *DefinitionWatcher) IsRunning() bool { return w.running.Load() }

// WatchedFiles returns the number of definition files currently tracked.
func (w *DefinitionWatcher) WatchedFiles() int {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()
	return len(w.files)
}

// Polls returns how many scans have run.
func (w *DefinitionWatcher) Polls() int64 { return w.polls.Load() }

// LastPoll returns when the last scan ran, zero before the first one.
func (w *DefinitionWatcher) LastPoll() time.Time {
	ns := w.lastPoll.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (w *DefinitionWatcher) watchLoop() {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.report(w.Poll())
		}
	}
}

func (w *DefinitionWatcher) report(changes []DefinitionChange) {
	if len(changes) == 0 || w.config.OnChange == nil {
		return
	}
	w.config.OnChange(changes)
}

// Poll scans the directory once and applies every change to the registry.
// A failed file reports Err with empty Loaded and Removed. The returned
// changes are ordered by path.
func (w *DefinitionWatcher) Poll() []DefinitionChange {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()
	defer func() {
		w.polls.Add(1)
		w.lastPoll.Store(timecache.CachedTimeNano())
	}()

	logger := w.registry.logger
	present, err := w.scan()
	if err != nil {
		logger.Warn("definition directory scan failed", zap.String("dir", w.dir), zap.Error(err))
		return []DefinitionChange{{Path: w.dir, Err: err}}
	}

	changes := make(map[string]*DefinitionChange)
	change := func(path string) *DefinitionChange {
		c, ok := changes[path]
		if !ok {
			c = &DefinitionChange{Path: path}
			changes[path] = c
		}
		return c
	}

	// Deleted files.
	for path, state := range w.files {
		if _, ok := present[path]; ok {
			continue
		}
		c := change(path)
		for _, id := range state.ids {
			w.registry.Unregister(id)
			c.Removed = append(c.Removed, id)
		}
		delete(w.files, path)
	}

	// New and modified files.
	var pending []pendingDefinition
	previous := make(map[string][]Layout)
	for _, path := range sortedPaths(present) {
		info := present[path]
		state, known := w.files[path]
		if known && state.modTime.Equal(info.ModTime()) && state.size == info.Size() {
			continue
		}
		if !known {
			state = &definitionFileState{}
			w.files[path] = state
		}
		defs, err := LoadDefinitionFile(path)
		if err != nil {
			// The previous layouts stay registered until the file parses again.
			change(path).Err = err
			state.modTime, state.size = info.ModTime(), info.Size()
			continue
		}
		c := change(path)
		for _, id := range state.ids {
			if l, ok := w.registry.lookupRegistered(id); ok {
				previous[path] = append(previous[path], l)
			}
			w.registry.Unregister(id)
			c.Removed = append(c.Removed, id)
		}
		state.modTime, state.size, state.ids = info.ModTime(), info.Size(), nil
		for _, def := range defs {
			pending = append(pending, pendingDefinition{path: path, def: def})
		}
	}

	loaded, failed := w.registerPending(pending)
	for _, f := range failed {
		c := change(f.path)
		if c.Err == nil {
			c.Err = f.err
			w.restore(f.path, previous[f.path])
			c.Removed = nil
		}
	}
	for _, p := range loaded {
		c := change(p.path)
		if c.Err == nil {
			c.Loaded = append(c.Loaded, p.def.ID)
		}
	}

	out := make([]DefinitionChange, 0, len(changes))
	for _, path := range sortedKeysOf(changes) {
		c := changes[path]
		out = append(out, *c)
		if c.Err != nil {
			logger.Warn("definition file not fully loaded", zap.String("path", path), zap.Error(c.Err))
		} else {
			logger.Info("definition file reloaded", zap.String("path", path),
				zap.Strings("loaded", c.Loaded), zap.Strings("removed", c.Removed))
		}
	}
	return out
}

// restore withdraws the layouts just loaded from path and registers the
// ones it held before the scan.
func (w *DefinitionWatcher) restore(path string, layouts []Layout) {
	state := w.files[path]
	for _, id := range state.ids {
		w.registry.Unregister(id)
	}
	state.ids = nil
	for _, l := range layouts {
		if err := w.registry.Register(l); err != nil {
			w.registry.logger.Warn("previous layout not restored",
				zap.String("path", path), zap.String("layout_id", l.ID()), zap.Error(err))
			continue
		}
		state.ids = append(state.ids, l.ID())
	}
}

type failedDefinition struct {
	path string
	err  error
}

// registerPending registers definitions, retrying those whose parent is
// itself pending, until a pass makes no progress.
func (w *DefinitionWatcher) registerPending(pending []pendingDefinition) (loaded []pendingDefinition, failed []failedDefinition) {
	for len(pending) > 0 {
		var retry []pendingDefinition
		var retryErrs []error
		for _, p := range pending {
			if _, err := w.registry.RegisterDefinition(p.def); err != nil {
				if ErrorCode(err) == ErrCodeInvalidParent && p.def.Extends != "" && pendingIncludes(pending, p.def.Extends) {
					retry = append(retry, p)
					retryErrs = append(retryErrs, err)
					continue
				}
				failed = append(failed, failedDefinition{path: p.path, err: err})
				continue
			}
			state := w.files[p.path]
			state.ids = append(state.ids, p.def.ID)
			loaded = append(loaded, p)
		}
		if len(retry) == len(pending) {
			for i, p := range retry {
				failed = append(failed, failedDefinition{path: p.path, err: retryErrs[i]})
			}
			break
		}
		pending = retry
	}
	return loaded, failed
}

// scan lists the definition files of the directory.
func (w *DefinitionWatcher) scan() (map[string]os.FileInfo, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read definitions directory").
			WithContext("path", w.dir)
	}
	present := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		present[filepath.Join(w.dir, e.Name())] = info
	}
	return present, nil
}

func pendingIncludes(pending []pendingDefinition, id string) bool {
	for _, p := range pending {
		if p.def.ID == id {
			return true
		}
	}
	return false
}

func sortedPaths(m map[string]os.FileInfo) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func sortedKeysOf(m map[string]*DefinitionChange) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
