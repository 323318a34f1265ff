// discovery.go: Format discovery over the registry catalog
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"strings"

	"go.uber.org/zap"
)

// Discover asks every candidate layout whether it recognizes sample and
// returns the matches in precedence order:
//
//  1. registered layouts, by id;
//  2. internal layouts already constructed, in catalog order;
//  3. the remaining internal layouts, built without their field tables.
//
// No candidate is consulted twice. An empty result is not an error. The
// first element is the most specific, most recent compatible layout.
func (r *Registry) Discover(sample string, opts DiscoveryOptions) []LayoutInfo {
	r.discoveries.Add(1)

	type candidate struct {
		id     string
		layout Layout
		build  func(bool) (Layout, error)
	}

	r.mu.RLock()
	candidates := make([]candidate, 0, len(r.registered)+len(r.internal))
	for _, id := range r.registeredIDsLocked() {
		candidates = append(candidates, candidate{id: id, layout: r.registered[id]})
	}
	for _, entry := range r.internal {
		if l, ok := r.cache[entry.ID]; ok {
			candidates = append(candidates, candidate{id: entry.ID, layout: l})
		}
	}
	for _, entry := range r.internal {
		if _, ok := r.cache[entry.ID]; !ok {
			candidates = append(candidates, candidate{id: entry.ID, build: entry.Build})
		}
	}
	r.mu.RUnlock()

	results := make([]LayoutInfo, 0)
	visited := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, seen := visited[c.id]; seen {
			continue
		}
		visited[c.id] = struct{}{}

		l := c.layout
		if l == nil {
			built, err := c.build(false)
			if err != nil {
				r.logger.Warn("skipping internal layout during discovery",
					zap.String("layout_id", c.id), zap.Error(err))
				continue
			}
			l = built
		}
		if info := l.BuildFileInfo(sample, opts); info != nil {
			r.logger.Debug("discovery candidate matched",
				zap.String("layout_id", c.id), zap.String("error_message", info.ErrorMessage))
			results = append(results, *info)
		}
	}

	ids := make([]string, len(results))
	for i, info := range results {
		ids[i] = info.LayoutID
	}
	r.audit.Log(AuditInfo, EventDiscoveryRun, "", map[string]interface{}{
		"matches":    len(results),
		"candidates": len(visited),
		"layout_ids": strings.Join(ids, ","),
	})
	return results
}

// DiscoverLines runs Discover on the first non-blank line.
func (r *Registry) DiscoverLines(lines []string, opts DiscoveryOptions) []LayoutInfo {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return r.Discover(line, opts)
		}
	}
	return []LayoutInfo{}
}
