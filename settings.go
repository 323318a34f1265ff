// settings.go: Runtime settings for the layout tooling
//
// Settings are read from command-line flags through flash-flags, with
// LAYOUT_ prefixed environment variables as fallback (for example
// LAYOUT_AUDIT_FILE). Validation follows the detailed-result pattern: every
// problem is collected and Validate returns the first one.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
	"go.uber.org/zap/zapcore"
)

// Settings configure the layout command-line tooling.
type Settings struct {
	// DefinitionsDir holds YAML layout definitions registered at startup.
	DefinitionsDir string `json:"definitions_dir"`

	AuditEnabled       bool          `json:"audit_enabled"`
	AuditFile          string        `json:"audit_file"`
	AuditFlushInterval time.Duration `json:"audit_flush_interval"`

	Strict               bool `json:"strict"`
	TrustLineLength      bool `json:"trust_line_length"`
	AllowBlankVersion    bool `json:"allow_blank_version"`
	AllowBlankRecordType bool `json:"allow_blank_record_type"`

	LogLevel string `json:"log_level"`
}

// Flag names understood by LoadSettings.
const (
	FlagDefinitions          = "definitions"
	FlagAudit                = "audit"
	FlagAuditFile            = "audit-file"
	FlagAuditFlushInterval   = "audit-flush-interval"
	FlagStrict               = "strict"
	FlagTrustLineLength      = "trust-line-length"
	FlagAllowBlankVersion    = "allow-blank-version"
	FlagAllowBlankRecordType = "allow-blank-record-type"
	FlagLogLevel             = "log-level"
)

// WithDefaults fills unset values.
func (s *Settings) WithDefaults() *Settings {
	if s.AuditFlushInterval == 0 {
		s.AuditFlushInterval = DefaultAuditConfig().FlushInterval
	}
	if s.LogLevel == "" {
		s.LogLevel = "warn"
	}
	return s
}

// NewSettingsFlagSet returns a flag set with every settings flag declared.
func NewSettingsFlagSet(appName string) *flashflags.FlagSet {
	fs := flashflags.New(appName)
	fs.SetDescription("Positional record layout tooling")
	fs.String(FlagDefinitions, "", "Directory of YAML layout definitions to register")
	fs.Bool(FlagAudit, false, "Record registry activity in the audit trail")
	fs.String(FlagAuditFile, "", "Audit output file (.db for SQLite, .jsonl for JSON lines)")
	fs.Duration(FlagAuditFlushInterval, DefaultAuditConfig().FlushInterval, "Audit buffer flush interval")
	fs.Bool(FlagStrict, false, "Reject lines whose width or signature do not match")
	fs.Bool(FlagTrustLineLength, true, "Let discovery accept blank signatures on exact width")
	fs.Bool(FlagAllowBlankVersion, false, "Let discovery accept a blank version marker")
	fs.Bool(FlagAllowBlankRecordType, false, "Let discovery accept a blank record type marker")
	fs.String(FlagLogLevel, "warn", "Diagnostic log level (debug, info, warn, error)")
	fs.SetEnvPrefix("LAYOUT")
	return fs
}

// LoadSettings parses args (without the program name) into Settings.
func LoadSettings(args []string) (*Settings, error) {
	fs := NewSettingsFlagSet("layout")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidSettings, "failed to parse settings flags")
	}
	s := &Settings{
		DefinitionsDir:       fs.GetString(FlagDefinitions),
		AuditEnabled:         fs.GetBool(FlagAudit),
		AuditFile:            fs.GetString(FlagAuditFile),
		AuditFlushInterval:   fs.GetDuration(FlagAuditFlushInterval),
		Strict:               fs.GetBool(FlagStrict),
		TrustLineLength:      fs.GetBool(FlagTrustLineLength),
		AllowBlankVersion:    fs.GetBool(FlagAllowBlankVersion),
		AllowBlankRecordType: fs.GetBool(FlagAllowBlankRecordType),
		LogLevel:             fs.GetString(FlagLogLevel),
	}
	s.WithDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidationResult contains every problem found in a Settings value.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		return "Settings are valid"
	}
	return fmt.Sprintf("Settings are invalid: %d error(s)", len(vr.Errors))
}

// Validate returns the first settings problem, if any.
func (s *Settings) Validate() error {
	result := s.ValidateDetailed()
	if result.Valid {
		return nil
	}
	return errors.New(ErrCodeInvalidSettings, result.Errors[0])
}

// ValidateDetailed collects every settings problem.
func (s *Settings) ValidateDetailed() ValidationResult {
	result := ValidationResult{Valid: true}
	fail := func(format string, args ...interface{}) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if s.DefinitionsDir != "" {
		info, err := os.Stat(s.DefinitionsDir)
		switch {
		case err != nil:
			fail("definitions directory %s is not accessible: %v", s.DefinitionsDir, err)
		case !info.IsDir():
			fail("definitions path %s is not a directory", s.DefinitionsDir)
		}
	}
	if s.AuditFlushInterval < 0 {
		fail("audit flush interval must not be negative")
	}
	if s.AuditFile != "" {
		switch strings.ToLower(filepath.Ext(s.AuditFile)) {
		case ".db", ".jsonl":
		default:
			fail("audit file %s must end in .db or .jsonl", s.AuditFile)
		}
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		fail("unknown log level %q", s.LogLevel)
	}
	return result
}

// DiscoveryOptions projects the discovery toggles.
func (s *Settings) DiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		TrustLineLength:      s.TrustLineLength,
		AllowBlankVersion:    s.AllowBlankVersion,
		AllowBlankRecordType: s.AllowBlankRecordType,
	}
}

// DecodeOptions projects the decode toggles.
func (s *Settings) DecodeOptions() DecodeOptions {
	return DecodeOptions{Strict: s.Strict}
}

// AuditConfig projects the audit settings.
func (s *Settings) AuditConfig() AuditConfig {
	cfg := DefaultAuditConfig()
	cfg.Enabled = s.AuditEnabled
	cfg.OutputFile = s.AuditFile
	if s.AuditFlushInterval > 0 {
		cfg.FlushInterval = s.AuditFlushInterval
	}
	return cfg
}
