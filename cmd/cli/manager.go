// Package cli provides the command-line interface for positional record layouts.
//
// Commands are built on the Orpheus framework:
//   - layout list|show|export|validate: inspect the catalog and definition files
//   - discover: propose layouts for a data file
//   - record decode|encode: convert between fixed-width lines and JSON
//   - audit stats, info: diagnostics
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"
	layout "github.com/imsweb/layout-sub000"
)

// Version is reported by the info command.
const Version = "1.0.0"

// Manager wires the Orpheus application to a layout registry.
type Manager struct {
	app         *orpheus.App
	registry    *layout.Registry
	auditLogger *layout.AuditLogger // optional
	settings    *layout.Settings
	out         io.Writer
	errOut      io.Writer
}

// NewManager creates a CLI manager with a fresh registry holding the
// internal catalog.
func NewManager() *Manager {
	app := orpheus.New("layout").
		SetDescription("Describe, validate, read and write fixed-width records").
		SetVersion(Version)

	m := &Manager{
		app:      app,
		registry: layout.NewRegistry(),
		settings: (&layout.Settings{TrustLineLength: true}).WithDefaults(),
		out:      os.Stdout,
		errOut:   os.Stderr,
	}

	m.setupLayoutCommands()
	m.setupDiscoverCommand()
	m.setupRecordCommands()
	m.setupUtilityCommands()
	return m
}

// WithRegistry replaces the registry the commands operate on.
func (m *Manager) WithRegistry(registry *layout.Registry) *Manager {
	if registry != nil {
		m.registry = registry
	}
	return m
}

// WithAudit enables the audit commands.
func (m *Manager) WithAudit(auditLogger *layout.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithSettings sets the defaults used by discovery and decoding commands.
func (m *Manager) WithSettings(settings *layout.Settings) *Manager {
	if settings != nil {
		m.settings = settings
	}
	return m
}

// WithOutput redirects normal and diagnostic output.
func (m *Manager) WithOutput(out, errOut io.Writer) *Manager {
	if out != nil {
		m.out = out
	}
	if errOut != nil {
		m.errOut = errOut
	}
	return m
}

// Registry returns the registry the commands operate on.
func (m *Manager) Registry() *layout.Registry { return m.registry }

// Run executes the CLI application with args (program name excluded).
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupLayoutCommands configures the 'layout' command group.
func (m *Manager) setupLayoutCommands() {
	layoutCmd := orpheus.NewCommand("layout", "Layout catalog operations")

	// layout list [--internal] [--aliases]
	listCmd := layoutCmd.Subcommand("list", "List layout ids", m.handleLayoutList)
	listCmd.AddBoolFlag("internal", "i", false, "List only internal layouts")
	listCmd.AddBoolFlag("aliases", "a", false, "Also list aliases")

	// layout show <id> [--fields] [--dump]
	showCmd := layoutCmd.Subcommand("show", "Describe a layout", m.handleLayoutShow)
	showCmd.AddBoolFlag("fields", "f", false, "List every field and subfield")
	showCmd.AddBoolFlag("dump", "d", false, "Dump the full layout structure")

	// layout export <id> [--output=file]
	exportCmd := layoutCmd.Subcommand("export", "Write a layout as a YAML definition", m.handleLayoutExport)
	exportCmd.AddFlag("output", "o", "", "Output file (default stdout)")

	// layout validate <file>
	layoutCmd.Subcommand("validate", "Validate a YAML definition file", m.handleLayoutValidate)

	m.app.AddCommand(layoutCmd)
}

// setupDiscoverCommand configures 'discover <file>'.
func (m *Manager) setupDiscoverCommand() {
	discoverCmd := orpheus.NewCommand("discover", "Propose layouts matching a data file").
		SetHandler(m.handleDiscover)
	discoverCmd.AddIntFlag("lines", "n", 10, "Number of lines to sample")
	discoverCmd.AddBoolFlag("allow-blank-version", "", false, "Accept a blank version marker")
	discoverCmd.AddBoolFlag("allow-blank-record-type", "", false, "Accept a blank record type marker")
	discoverCmd.AddBoolFlag("ignore-line-length", "", false, "Never accept a blank signature on width alone")
	discoverCmd.AddBoolFlag("json", "j", false, "Print matches as JSON")
	m.app.AddCommand(discoverCmd)
}

// setupRecordCommands configures the 'record' command group.
func (m *Manager) setupRecordCommands() {
	recordCmd := orpheus.NewCommand("record", "Record conversion")

	// record decode <file> [--layout=id] [--strict] [--keep-whitespace]
	decodeCmd := recordCmd.Subcommand("decode", "Decode fixed-width lines into JSON lines", m.handleRecordDecode)
	decodeCmd.AddFlag("layout", "l", "", "Layout id (discovered when empty)")
	decodeCmd.AddBoolFlag("strict", "s", false, "Reject lines that do not match the layout")
	decodeCmd.AddBoolFlag("keep-whitespace", "w", false, "Do not trim decoded values")

	// record encode <input.jsonl> <output> --layout=id [--line-length=n]
	encodeCmd := recordCmd.Subcommand("encode", "Encode JSON lines into fixed-width lines", m.handleRecordEncode)
	encodeCmd.AddFlag("layout", "l", "", "Layout id")
	encodeCmd.AddIntFlag("line-length", "n", 0, "Output width (default the layout width)")

	m.app.AddCommand(recordCmd)
}

// setupUtilityCommands configures diagnostics commands.
func (m *Manager) setupUtilityCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail")
	auditCmd.Subcommand("stats", "Show audit trail statistics", m.handleAuditStats)
	m.app.AddCommand(auditCmd)

	infoCmd := orpheus.NewCommand("info", "Registry information and diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Verbose information")
	m.app.AddCommand(infoCmd)
}
