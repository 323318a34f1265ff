// Command handlers for the layout CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/davecgh/go-spew/spew"
	layout "github.com/imsweb/layout-sub000"
	"github.com/imsweb/layout-sub000/internal/lineio"
)

// handleLayoutList prints the resolvable layout ids.
func (m *Manager) handleLayoutList(ctx *orpheus.Context) error {
	if !ctx.GetFlagBool("internal") {
		for _, id := range m.registry.RegisteredIDs() {
			fmt.Fprintf(m.out, "%s\tregistered\n", id)
		}
	}
	for _, id := range m.registry.InternalIDs() {
		fmt.Fprintf(m.out, "%s\tinternal\n", id)
	}
	if ctx.GetFlagBool("aliases") {
		aliases := m.registry.Aliases()
		for _, alias := range sortedKeys(aliases) {
			fmt.Fprintf(m.out, "%s\talias of %s\n", alias, aliases[alias])
		}
	}
	return nil
}

// handleLayoutShow describes one layout.
func (m *Manager) handleLayoutShow(ctx *orpheus.Context) error {
	id, err := requireArg(ctx, 0, "layout id")
	if err != nil {
		return err
	}
	l, err := m.registry.Resolve(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "ID:          %s\n", l.ID())
	fmt.Fprintf(m.out, "Name:        %s\n", l.Name())
	fmt.Fprintf(m.out, "Version:     %s\n", l.Version())
	fmt.Fprintf(m.out, "Kind:        %s\n", l.Kind())
	if l.Description() != "" {
		fmt.Fprintf(m.out, "Description: %s\n", l.Description())
	}
	pl, positional := l.(*layout.PositionalLayout)
	if positional {
		fmt.Fprintf(m.out, "Line length: %d\n", pl.LineLength())
		if pl.ParentID() != "" {
			fmt.Fprintf(m.out, "Extends:     %s\n", pl.ParentID())
		}
	}
	fmt.Fprintf(m.out, "Fields:      %d\n", len(l.Fields()))

	if ctx.GetFlagBool("fields") {
		fields := l.Fields()
		if positional {
			fields = pl.AllFieldsFlattened()
		}
		for _, f := range fields {
			item := ""
			if f.ItemNumber() != 0 {
				item = fmt.Sprintf(" #%d", f.ItemNumber())
			}
			fmt.Fprintf(m.out, "  %5d-%-5d %s%s (%s)\n", f.Start(), f.End(), f.Name(), item, f.LongLabel())
		}
	}
	if ctx.GetFlagBool("dump") {
		spew.Fdump(m.out, l)
	}
	return nil
}

// handleLayoutExport writes a positional layout as YAML.
func (m *Manager) handleLayoutExport(ctx *orpheus.Context) error {
	id, err := requireArg(ctx, 0, "layout id")
	if err != nil {
		return err
	}
	l, err := m.registry.Resolve(id)
	if err != nil {
		return err
	}
	pl, ok := l.(*layout.PositionalLayout)
	if !ok {
		return errors.New(layout.ErrCodeInvalidDefinition,
			fmt.Sprintf("layout %s is a %s layout and cannot be exported", id, l.Kind()))
	}
	data, err := layout.MarshalDefinition(layout.DefinitionOf(pl))
	if err != nil {
		return err
	}

	output := ctx.GetFlagString("output")
	if output == "" {
		_, err := m.out.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0600); err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to write definition").WithContext("path", output)
	}
	fmt.Fprintf(m.out, "Exported %s to %s\n", id, output)
	return nil
}

// handleLayoutValidate builds every layout of a definition file without
// registering it.
func (m *Manager) handleLayoutValidate(ctx *orpheus.Context) error {
	path, err := requireArg(ctx, 0, "definition file")
	if err != nil {
		return err
	}
	defs, err := layout.LoadDefinitionFile(path)
	if err != nil {
		return err
	}
	for _, def := range defs {
		l, err := m.registry.BuildDefinition(def)
		if err != nil {
			return wrapKeepCode(err, fmt.Sprintf("layout %s is invalid", def.ID))
		}
		fmt.Fprintf(m.out, "OK %s (%d fields, %d columns)\n", l.ID(), len(l.Fields()), l.LineLength())
	}
	return nil
}

// handleDiscover lists the layouts matching the first line of a file.
func (m *Manager) handleDiscover(ctx *orpheus.Context) error {
	path, err := requireArg(ctx, 0, "data file")
	if err != nil {
		return err
	}
	n := ctx.GetFlagInt("lines")
	if n <= 0 {
		n = 1
	}
	lines, err := lineio.ReadSample(path, n)
	if err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to read sample")
	}

	opts := m.settings.DiscoveryOptions()
	if ctx.GetFlagBool("allow-blank-version") {
		opts.AllowBlankVersion = true
	}
	if ctx.GetFlagBool("allow-blank-record-type") {
		opts.AllowBlankRecordType = true
	}
	if ctx.GetFlagBool("ignore-line-length") {
		opts.TrustLineLength = false
	}

	matches := m.registry.DiscoverLines(lines, opts)
	if ctx.GetFlagBool("json") {
		return writeJSON(m.out, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(m.out, "No matching layout")
		return nil
	}
	for _, info := range matches {
		line := fmt.Sprintf("%s\t%s", info.LayoutID, info.LayoutName)
		if info.ErrorMessage != "" {
			line += "\t" + info.ErrorMessage
		}
		fmt.Fprintln(m.out, line)
	}
	return nil
}

// handleRecordDecode prints each line of a file as a JSON object.
func (m *Manager) handleRecordDecode(ctx *orpheus.Context) error {
	path, err := requireArg(ctx, 0, "data file")
	if err != nil {
		return err
	}
	pl, err := m.positionalLayout(ctx.GetFlagString("layout"), path)
	if err != nil {
		return err
	}

	opts := m.settings.DecodeOptions()
	if ctx.GetFlagBool("strict") {
		opts.Strict = true
	}
	opts.KeepWhitespace = ctx.GetFlagBool("keep-whitespace")

	r, err := lineio.Open(path)
	if err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to open data file")
	}
	defer func() { _ = r.Close() }()

	enc := json.NewEncoder(m.out)
	skipped := 0
	for r.Next() {
		rec, err := pl.Decode(r.Line(), r.LineNumber(), opts)
		if err != nil {
			if opts.Strict {
				return err
			}
			skipped++
			fmt.Fprintf(m.errOut, "warning: %v\n", err)
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, layout.ErrCodeIOError, "failed to write record")
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(m.errOut, "%d line(s) skipped\n", skipped)
	}
	return nil
}

// handleRecordEncode converts a JSON lines file into fixed-width lines.
func (m *Manager) handleRecordEncode(ctx *orpheus.Context) error {
	input, err := requireArg(ctx, 0, "input file")
	if err != nil {
		return err
	}
	output, err := requireArg(ctx, 1, "output file")
	if err != nil {
		return err
	}
	id := ctx.GetFlagString("layout")
	if id == "" {
		return errors.New(layout.ErrCodeInvalidSettings, "--layout is required")
	}
	pl, err := m.positionalLayout(id, "")
	if err != nil {
		return err
	}

	r, err := lineio.Open(input)
	if err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to open input file")
	}
	defer func() { _ = r.Close() }()

	w, err := lineio.Create(output, "\n")
	if err != nil {
		return errors.Wrap(err, layout.ErrCodeIOError, "failed to create output file")
	}
	if err := m.encodeRecords(r, w, pl, layout.EncodeOptions{LineLength: ctx.GetFlagInt("line-length")}); err != nil {
		_ = w.Close()
		_ = os.Remove(output)
		return err
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(output)
		return err
	}
	fmt.Fprintf(m.errOut, "Encoded %d record(s) into %s\n", w.Lines(), output)
	return nil
}

// encodeRecords writes every JSON record read from r as a line of pl.
func (m *Manager) encodeRecords(r *lineio.Reader, w *lineio.Writer, pl *layout.PositionalLayout, opts layout.EncodeOptions) error {
	for r.Next() {
		if strings.TrimSpace(r.Line()) == "" {
			continue
		}
		var rec layout.Record
		if err := json.Unmarshal([]byte(r.Line()), &rec); err != nil {
			return errors.Wrap(err, layout.ErrCodeFormatViolation,
				fmt.Sprintf("line %d: invalid JSON record", r.LineNumber()))
		}
		line, err := pl.Encode(rec, opts)
		if err != nil {
			return wrapKeepCode(err, fmt.Sprintf("line %d", r.LineNumber()))
		}
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}
	return r.Err()
}

// handleAuditStats prints the audit backend statistics.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	if m.auditLogger == nil {
		return errors.New(layout.ErrCodeInvalidAuditConfig, "audit trail is not enabled (use --audit)")
	}
	stats, err := m.auditLogger.Stats()
	if err != nil {
		return err
	}
	return writeJSON(m.out, stats)
}

// handleInfo displays registry information.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	stats := m.registry.Stats()
	fmt.Fprintf(m.out, "Layout tooling %s\n", Version)
	fmt.Fprintf(m.out, "Internal layouts:   %d\n", stats.InternalLayouts)
	fmt.Fprintf(m.out, "Registered layouts: %d\n", stats.RegisteredLayouts)
	fmt.Fprintf(m.out, "Aliases:            %d\n", stats.Aliases)
	fmt.Fprintf(m.out, "Audit trail:        %v\n", m.auditLogger != nil)

	if ctx.GetFlagBool("verbose") {
		fmt.Fprintf(m.out, "Cached layouts:     %d\n", stats.CachedLayouts)
		fmt.Fprintf(m.out, "Resolves:           %d\n", stats.Resolves)
		fmt.Fprintf(m.out, "Discoveries:        %d\n", stats.Discoveries)
		fmt.Fprintf(m.out, "Definitions dir:    %s\n", m.settings.DefinitionsDir)
		fmt.Fprintf(m.out, "Strict decoding:    %v\n", m.settings.Strict)
	}
	return nil
}
