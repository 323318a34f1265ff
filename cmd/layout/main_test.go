// main_test.go: Tests for command line splitting
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		global  []string
		command []string
	}{
		{"no globals", []string{"info"}, []string{}, []string{"info"}},
		{"separate values", []string{"--definitions", "./defs", "--audit", "discover", "x.txt"},
			[]string{"--definitions", "./defs", "--audit"}, []string{"discover", "x.txt"}},
		{"inline values", []string{"--log-level=debug", "record", "decode", "--strict", "f"},
			[]string{"--log-level=debug"}, []string{"record", "decode", "--strict", "f"}},
		{"only globals", []string{"--strict"}, []string{"--strict"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			global, command := splitArgs(tt.args)
			assert.Equal(t, tt.global, global)
			assert.Equal(t, tt.command, command)
		})
	}
}

func TestRun_InvalidSettings(t *testing.T) {
	err := run([]string{"--log-level=loud", "info"})
	require.Error(t, err)
}

func TestRun_DefinitionsDir(t *testing.T) {
	dir := t.TempDir()
	err := run([]string{"--definitions=" + filepath.Join(dir, "missing"), "info"})
	require.Error(t, err)
}
