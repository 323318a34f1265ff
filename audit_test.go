// audit_test.go: Tests for the audit logger
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAuditEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path) // #nosec G304 -- test file
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAuditLogger_JSONLRecordsRegistryEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := NewAuditLogger(AuditConfig{Enabled: true, OutputFile: path, BufferSize: 100})
	require.NoError(t, err)

	entries, _, _ := countingCatalog(t, "internal")
	r := NewRegistry(WithInternalCatalog(entries, nil), WithAudit(audit))

	require.NoError(t, r.Register(markedLayout(t, "a", "A")))
	_, err = r.Resolve("internal")
	require.NoError(t, err)
	r.Discover("A         ", DefaultDiscoveryOptions())
	r.Unregister("a")
	r.Unregister("a")
	r.UnregisterAll()

	require.NoError(t, audit.Close())

	events := readAuditEvents(t, path)
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Event
		assert.Equal(t, "layout", ev.Component)
		assert.Len(t, ev.Checksum, 64)
		assert.Equal(t, os.Getpid(), ev.ProcessID)
	}
	assert.Equal(t, []string{
		EventLayoutRegistered,
		EventLayoutResolved,
		EventDiscoveryRun,
		EventLayoutUnregistered,
		EventLayoutsCleared,
	}, names)
	assert.Equal(t, "a", events[0].LayoutID)
	assert.Equal(t, AuditWarn, events[3].Level)
	assert.Equal(t, "a", events[2].Context["layout_ids"])
}

func TestAuditLogger_MinLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := NewAuditLogger(AuditConfig{Enabled: true, OutputFile: path, MinLevel: AuditWarn})
	require.NoError(t, err)

	audit.Log(AuditInfo, EventLayoutResolved, "x", nil)
	audit.Log(AuditCritical, EventLayoutsCleared, "", map[string]interface{}{"removed": 3})

	stats, err := audit.Stats()
	require.NoError(t, err)
	assert.Equal(t, "jsonl", stats.Backend)
	assert.Equal(t, int64(1), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.EventsByLevel["CRITICAL"])
	require.NoError(t, audit.Close())
}

func TestAuditLogger_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	audit, err := NewAuditLogger(AuditConfig{Enabled: true, OutputFile: path, FlushInterval: time.Hour})
	require.NoError(t, err)
	defer func() { assert.NoError(t, audit.Close()) }()

	r := NewRegistry(WithAudit(audit))
	_, err = r.RegisterDefinition(Definition{ID: "custom", Name: "Custom", LineLength: 4,
		Fields: []FieldDefinition{{Name: "f", ShortLabel: "f", LongLabel: "f", Start: 1, End: 4}}})
	require.NoError(t, err)
	_, err = r.Resolve("naaccr-18-incidence")
	require.NoError(t, err)

	stats, err := audit.Stats()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, path, stats.Path)
	assert.Equal(t, auditSchemaVersion, stats.SchemaVersion)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.EventsByName[EventLayoutRegistered])
	assert.Equal(t, int64(1), stats.EventsByName[EventDefinitionLoaded])
	assert.Equal(t, int64(1), stats.EventsByName[EventLayoutResolved])
	assert.Equal(t, int64(3), stats.EventsByLevel["INFO"])
	require.NotNil(t, stats.OldestEvent)
	require.NotNil(t, stats.NewestEvent)
	assert.False(t, stats.NewestEvent.Before(*stats.OldestEvent))
}

func TestAuditLogger_NilIsSafe(t *testing.T) {
	var audit *AuditLogger
	audit.Log(AuditInfo, EventDiscoveryRun, "", nil)
	assert.NoError(t, audit.Flush())
	assert.NoError(t, audit.Close())
	stats, err := audit.Stats()
	assert.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
}

func TestAuditLogger_InvalidConfig(t *testing.T) {
	_, err := NewAuditLogger(AuditConfig{Enabled: true, BufferSize: -1})
	assert.Equal(t, ErrCodeInvalidAuditConfig, ErrorCode(err))
}

func TestAuditLogger_DisabledRecordsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := NewAuditLogger(AuditConfig{Enabled: false, OutputFile: path})
	require.NoError(t, err)
	audit.Log(AuditCritical, EventLayoutsCleared, "", nil)

	stats, err := audit.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	require.NoError(t, audit.Close())
}

func TestAuditLogger_CloseIsIdempotent(t *testing.T) {
	audit, err := NewAuditLogger(AuditConfig{Enabled: true, OutputFile: filepath.Join(t.TempDir(), "a.jsonl"), FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.NoError(t, audit.Close())
	assert.NoError(t, audit.Close())
}

func TestAuditChecksumDetectsTampering(t *testing.T) {
	ev := AuditEvent{Timestamp: time.Unix(0, 0).UTC(), Event: EventLayoutRegistered, Component: "layout", LayoutID: "a"}
	sum := generateChecksum(ev)
	ev.LayoutID = "b"
	assert.NotEqual(t, sum, generateChecksum(ev))
}
