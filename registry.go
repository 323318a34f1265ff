// registry.go: Layout catalog with lazily built internal layouts
//
// A Registry owns two sets of layouts: internal layouts, described by a
// catalog of builders and constructed on first Resolve, and layouts
// registered by callers. Registries are plain values; tests create isolated
// instances and Default returns a lazily built process-wide one.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"go.uber.org/zap"
)

// InternalLayout is one entry of a registry's built-in catalog. Build is
// called with loadFields=false when only the signature is needed.
type InternalLayout struct {
	ID    string
	Build func(loadFields bool) (Layout, error)
}

// RegistryStats is a snapshot of registry activity.
type RegistryStats struct {
	InternalLayouts   int       `json:"internal_layouts"`
	CachedLayouts     int       `json:"cached_layouts"`
	RegisteredLayouts int       `json:"registered_layouts"`
	Aliases           int       `json:"aliases"`
	Resolves          int64     `json:"resolves"`
	LazyBuilds        int64     `json:"lazy_builds"`
	Discoveries       int64     `json:"discoveries"`
	LastChange        time.Time `json:"last_change"`
}

// Registry is a concurrency-safe catalog of layouts.
type Registry struct {
	mu sync.RWMutex

	internal      []InternalLayout
	internalIndex map[string]int
	aliases       map[string]string

	cache      map[string]Layout // constructed internal layouts
	registered map[string]Layout // externally registered layouts

	logger *zap.Logger
	audit  *AuditLogger

	resolves    atomic.Int64
	lazyBuilds  atomic.Int64
	discoveries atomic.Int64
	lastChange  atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAudit records catalog changes on audit.
func WithAudit(audit *AuditLogger) Option {
	return func(r *Registry) { r.audit = audit }
}

// WithInternalCatalog replaces the built-in catalog. Entries must be listed
// in discovery precedence order. aliases map legacy ids to canonical ids.
func WithInternalCatalog(entries []InternalLayout, aliases map[string]string) Option {
	return func(r *Registry) {
		r.internal = append([]InternalLayout(nil), entries...)
		r.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			r.aliases[k] = v
		}
	}
}

// NewRegistry creates a registry holding the NAACCR internal catalog unless
// WithInternalCatalog says otherwise.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		internal:   naaccrCatalog(),
		aliases:    naaccrAliases(),
		cache:      make(map[string]Layout),
		registered: make(map[string]Layout),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.internalIndex = make(map[string]int, len(r.internal))
	for i, entry := range r.internal {
		r.internalIndex[entry.ID] = i
	}
	r.touch()
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, created on first use.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *Registry) touch() {
	r.lastChange.Store(timecache.CachedTimeNano())
}

// canonical resolves an alias to its target id.
func (r *Registry) canonical(id string) string {
	if target, ok := r.aliases[id]; ok {
		return target
	}
	return id
}

// Resolve returns the layout registered or built under id (or its alias).
// Internal layouts are constructed with their full field table on first use
// and cached.
func (r *Registry) Resolve(id string) (Layout, error) {
	r.resolves.Add(1)

	r.mu.RLock()
	canonical := r.canonical(id)
	if l, ok := r.registered[canonical]; ok {
		r.mu.RUnlock()
		return l, nil
	}
	if l, ok := r.cache[canonical]; ok {
		r.mu.RUnlock()
		r.logger.Debug("layout cache hit", zap.String("layout_id", canonical))
		return l, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.registered[canonical]; ok {
		return l, nil
	}
	if l, ok := r.cache[canonical]; ok {
		return l, nil
	}
	idx, ok := r.internalIndex[canonical]
	if !ok {
		return nil, lookupMiss(id)
	}

	start := time.Now()
	l, err := r.internal[idx].Build(true)
	if err != nil {
		return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("failed to build internal layout %s", canonical)).
			WithContext("layout_id", canonical)
	}
	r.cache[canonical] = l
	r.lazyBuilds.Add(1)
	r.touch()
	r.logger.Debug("internal layout constructed",
		zap.String("layout_id", canonical),
		zap.Int("fields", len(l.Fields())),
		zap.Duration("elapsed", time.Since(start)))
	r.audit.Log(AuditInfo, EventLayoutResolved, canonical, map[string]interface{}{"requested_id": id})
	return l, nil
}

// Register adds an external layout. It fails when l is nil, when its id is
// already taken by an internal layout, an alias or another registration, or
// when l does not verify.
func (r *Registry) Register(l Layout) error {
	if l == nil {
		return errors.New(ErrCodeInvalidDefinition, "cannot register a nil layout")
	}
	id := l.ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.internalIndex[id]; ok {
		return errors.New(ErrCodeDuplicateID, fmt.Sprintf("layout id %s is reserved by an internal layout", id)).
			WithContext("layout_id", id)
	}
	if _, ok := r.aliases[id]; ok {
		return errors.New(ErrCodeDuplicateID, fmt.Sprintf("layout id %s is reserved as an alias", id)).
			WithContext("layout_id", id)
	}
	if _, ok := r.registered[id]; ok {
		return errors.New(ErrCodeDuplicateID, fmt.Sprintf("layout id %s is already registered", id)).
			WithContext("layout_id", id)
	}
	if err := l.Verify(); err != nil {
		return err
	}

	r.registered[id] = l
	r.touch()
	r.logger.Debug("layout registered", zap.String("layout_id", id), zap.Stringer("kind", l.Kind()))
	r.audit.Log(AuditInfo, EventLayoutRegistered, id, map[string]interface{}{
		"name":   l.Name(),
		"kind":   l.Kind().String(),
		"fields": len(l.Fields()),
	})
	return nil
}

// lookupRegistered returns the external layout registered under id.
func (r *Registry) lookupRegistered(id string) (Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.registered[id]
	return l, ok
}

// Unregister removes an external layout and drops any cached internal
// instance of the same id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, wasRegistered := r.registered[id]
	_, wasCached := r.cache[id]
	delete(r.registered, id)
	delete(r.cache, id)
	if wasRegistered || wasCached {
		r.touch()
		r.logger.Debug("layout unregistered", zap.String("layout_id", id))
		r.audit.Log(AuditWarn, EventLayoutUnregistered, id, nil)
	}
}

// UnregisterAll removes every external layout and empties the internal cache.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := len(r.registered)
	r.registered = make(map[string]Layout)
	r.cache = make(map[string]Layout)
	r.touch()
	r.logger.Debug("all layouts unregistered", zap.Int("removed", removed))
	r.audit.Log(AuditWarn, EventLayoutsCleared, "", map[string]interface{}{"removed": removed})
}

// IDs returns every resolvable id: registered ids sorted, then internal ids
// in catalog order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.registeredIDsLocked()
	for _, entry := range r.internal {
		ids = append(ids, entry.ID)
	}
	return ids
}

// InternalIDs returns the internal catalog ids in precedence order.
func (r *Registry) InternalIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.internal))
	for _, entry := range r.internal {
		ids = append(ids, entry.ID)
	}
	return ids
}

// RegisteredIDs returns the externally registered ids, sorted.
func (r *Registry) RegisteredIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registeredIDsLocked()
}

func (r *Registry) registeredIDsLocked() []string {
	ids := make([]string, 0, len(r.registered))
	for id := range r.registered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsInternal reports whether id (or its alias target) names an internal layout.
func (r *Registry) IsInternal(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.internalIndex[r.canonical(id)]
	return ok
}

// IsRegistered reports whether id names an externally registered layout.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registered[id]
	return ok
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{
		InternalLayouts:   len(r.internal),
		CachedLayouts:     len(r.cache),
		RegisteredLayouts: len(r.registered),
		Aliases:           len(r.aliases),
		Resolves:          r.resolves.Load(),
		LazyBuilds:        r.lazyBuilds.Load(),
		Discoveries:       r.discoveries.Load(),
		LastChange:        time.Unix(0, r.lastChange.Load()),
	}
}
