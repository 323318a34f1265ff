// registry_test.go: Tests for the layout registry and discovery
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// markedLayout builds a 10 column layout recognized by the given first column.
func markedLayout(t *testing.T, id, mark string) *PositionalLayout {
	t.Helper()
	return mustLayout(t, LayoutSpec{ID: id, Name: strings.ToUpper(id), LineLength: 10,
		Fields:    []FieldSpec{field("type", 1, 1), field("body", 2, 10)},
		Signature: &Signature{RecordType: &Marker{Start: 1, End: 1, Value: mark}}})
}

// countingCatalog returns internal entries that all recognize "X" lines and
// count how often they are built with and without fields.
func countingCatalog(t *testing.T, ids ...string) ([]InternalLayout, *atomic.Int64, *atomic.Int64) {
	t.Helper()
	var full, cheap atomic.Int64
	entries := make([]InternalLayout, 0, len(ids))
	for _, id := range ids {
		id := id
		entries = append(entries, InternalLayout{ID: id, Build: func(loadFields bool) (Layout, error) {
			if loadFields {
				full.Add(1)
			} else {
				cheap.Add(1)
			}
			return markedLayout(t, id, "X"), nil
		}})
	}
	return entries, &full, &cheap
}

func TestRegistry_ResolveInternalIsLazyAndCached(t *testing.T) {
	entries, full, cheap := countingCatalog(t, "int-new", "int-old")
	r := NewRegistry(WithInternalCatalog(entries, map[string]string{"legacy": "int-old"}))

	assert.Equal(t, int64(0), full.Load())

	first, err := r.Resolve("int-old")
	require.NoError(t, err)
	second, err := r.Resolve("legacy")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), full.Load())
	assert.Equal(t, int64(0), cheap.Load())
	assert.True(t, r.IsInternal("legacy"))

	stats := r.Stats()
	assert.Equal(t, 2, stats.InternalLayouts)
	assert.Equal(t, 1, stats.CachedLayouts)
	assert.Equal(t, int64(1), stats.LazyBuilds)
	assert.Equal(t, int64(2), stats.Resolves)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(WithInternalCatalog(nil, nil))

	l, err := r.Resolve("nope")
	assert.Nil(t, l)
	require.Error(t, err)
	assert.True(t, IsLookupMiss(err))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestRegistry_Register(t *testing.T) {
	entries, _, _ := countingCatalog(t, "internal")
	r := NewRegistry(WithInternalCatalog(entries, map[string]string{"old": "internal"}))

	a := markedLayout(t, "a", "A")
	require.NoError(t, r.Register(a))

	got, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	// A second registration under the same id keeps the first.
	err = r.Register(markedLayout(t, "a", "B"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateID, ErrorCode(err))
	got, _ = r.Resolve("a")
	assert.Same(t, a, got)

	err = r.Register(markedLayout(t, "internal", "A"))
	assert.Equal(t, ErrCodeDuplicateID, ErrorCode(err))
	err = r.Register(markedLayout(t, "old", "A"))
	assert.Equal(t, ErrCodeDuplicateID, ErrorCode(err))

	err = r.Register(nil)
	assert.True(t, IsConfigurationError(err))

	assert.Equal(t, []string{"a"}, r.RegisteredIDs())
	assert.Equal(t, []string{"a", "internal"}, r.IDs())
	assert.True(t, r.IsRegistered("a"))
	assert.False(t, r.IsRegistered("internal"))
}

func TestRegistry_RegisterRejectsInvalidLayout(t *testing.T) {
	r := NewRegistry(WithInternalCatalog(nil, nil))

	_, err := NewPositionalLayout(LayoutSpec{ID: "bad", Name: "Bad", LineLength: 10,
		Fields: []FieldSpec{field("f", 5, 3)}})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	// A layout violating cross-field invariants cannot be registered either.
	overlapping := &PositionalLayout{id: "bad", name: "Bad", lineLength: 10}
	fa, _ := NewField(field("a", 1, 5))
	fb, _ := NewField(field("b", 4, 10))
	overlapping.setFields([]*Field{fa, fb})
	err = r.Register(overlapping)
	assert.Equal(t, ErrCodeFieldOverlap, ErrorCode(err))
	assert.Empty(t, r.RegisteredIDs())
}

func TestRegistry_Unregister(t *testing.T) {
	entries, full, _ := countingCatalog(t, "internal")
	r := NewRegistry(WithInternalCatalog(entries, nil))

	require.NoError(t, r.Register(markedLayout(t, "a", "A")))
	r.Unregister("a")
	r.Unregister("a")
	r.Unregister("never-registered")

	_, err := r.Resolve("a")
	assert.True(t, IsLookupMiss(err))

	// Dropping a cached internal layout forces a rebuild on the next resolve.
	_, err = r.Resolve("internal")
	require.NoError(t, err)
	r.Unregister("internal")
	_, err = r.Resolve("internal")
	require.NoError(t, err)
	assert.Equal(t, int64(2), full.Load())

	require.NoError(t, r.Register(markedLayout(t, "b", "B")))
	r.UnregisterAll()
	assert.Empty(t, r.RegisteredIDs())
	assert.Equal(t, 0, r.Stats().CachedLayouts)
	assert.True(t, r.IsInternal("internal"))
}

func TestRegistry_DiscoverPrecedence(t *testing.T) {
	entries, full, cheap := countingCatalog(t, "int-new", "int-old")
	r := NewRegistry(WithInternalCatalog(entries, nil))

	require.NoError(t, r.Register(markedLayout(t, "zeta", "X")))
	require.NoError(t, r.Register(markedLayout(t, "alpha", "X")))
	require.NoError(t, r.Register(markedLayout(t, "other", "Y")))
	_, err := r.Resolve("int-old")
	require.NoError(t, err)

	line := "X" + strings.Repeat(" ", 9)
	results := r.Discover(line, DefaultDiscoveryOptions())

	ids := make([]string, len(results))
	for i, info := range results {
		ids[i] = info.LayoutID
	}
	assert.Equal(t, []string{"alpha", "zeta", "int-old", "int-new"}, ids)
	assert.Equal(t, int64(1), full.Load())
	assert.Equal(t, int64(1), cheap.Load())

	// Cheap instances are not cached, so the order is stable across runs.
	again := r.Discover(line, DefaultDiscoveryOptions())
	assert.Equal(t, results, again)
	assert.Equal(t, 1, r.Stats().CachedLayouts)
	assert.Equal(t, int64(2), r.Stats().Discoveries)
}

func TestRegistry_DiscoverNoMatch(t *testing.T) {
	entries, _, _ := countingCatalog(t, "internal")
	r := NewRegistry(WithInternalCatalog(entries, nil))

	results := r.Discover(strings.Repeat(" ", 10), DefaultDiscoveryOptions())
	assert.NotNil(t, results)
	assert.Empty(t, results)

	assert.Empty(t, r.DiscoverLines([]string{"", "   "}, DefaultDiscoveryOptions()))
	assert.Len(t, r.DiscoverLines([]string{"", "X        z"}, DefaultDiscoveryOptions()), 1)
}

func TestRegistry_DiscoverSkipsBrokenBuilders(t *testing.T) {
	broken := InternalLayout{ID: "broken", Build: func(bool) (Layout, error) {
		return nil, lookupMiss("broken")
	}}
	entries, _, _ := countingCatalog(t, "ok")
	r := NewRegistry(WithInternalCatalog(append([]InternalLayout{broken}, entries...), nil), WithLogger(zap.NewNop()))

	results := r.Discover("X         ", DefaultDiscoveryOptions())
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].LayoutID)

	_, err := r.Resolve("broken")
	assert.Error(t, err)
}

func TestRegistry_ConcurrentResolveBuildsOnce(t *testing.T) {
	entries, full, _ := countingCatalog(t, "internal")
	r := NewRegistry(WithInternalCatalog(entries, nil))

	var wg sync.WaitGroup
	layouts := make([]Layout, 16)
	for i := range layouts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := r.Resolve("internal")
			if err == nil {
				layouts[i] = l
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), full.Load())
	for _, l := range layouts {
		assert.Same(t, layouts[0], l)
	}
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.NotEmpty(t, Default().InternalIDs())
}
