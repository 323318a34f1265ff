// Utility functions for the layout CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	layout "github.com/imsweb/layout-sub000"
	"github.com/imsweb/layout-sub000/internal/lineio"
)

// requireArg returns the positional argument at index or a usage error.
func requireArg(ctx *orpheus.Context, index int, what string) (string, error) {
	value := strings.TrimSpace(ctx.GetArg(index))
	if value == "" {
		return "", errors.New(layout.ErrCodeInvalidSettings, fmt.Sprintf("missing %s argument", what))
	}
	return value, nil
}

// positionalLayout resolves id, or discovers the layout of dataPath when id
// is empty and takes the first match.
func (m *Manager) positionalLayout(id, dataPath string) (*layout.PositionalLayout, error) {
	if id == "" {
		if dataPath == "" {
			return nil, errors.New(layout.ErrCodeInvalidSettings, "a layout id is required")
		}
		sample, err := lineio.ReadSample(dataPath, 5)
		if err != nil {
			return nil, errors.Wrap(err, layout.ErrCodeIOError, "failed to read sample")
		}
		matches := m.registry.DiscoverLines(sample, m.settings.DiscoveryOptions())
		if len(matches) == 0 {
			return nil, errors.New(layout.ErrCodeNotFound,
				fmt.Sprintf("no layout recognizes %s, use --layout", dataPath))
		}
		id = matches[0].LayoutID
		fmt.Fprintf(m.errOut, "Using discovered layout %s\n", id)
	}

	l, err := m.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	pl, ok := l.(*layout.PositionalLayout)
	if !ok {
		return nil, errors.New(layout.ErrCodeInvalidDefinition,
			fmt.Sprintf("layout %s is a %s layout", id, l.Kind()))
	}
	return pl, nil
}

// wrapKeepCode adds context to err without changing its error code.
func wrapKeepCode(err error, msg string) error {
	code := layout.ErrorCode(err)
	if code == "" {
		code = layout.ErrCodeInvalidDefinition
	}
	return errors.Wrap(err, errors.ErrorCode(code), msg)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to write JSON")
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
