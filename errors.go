// errors.go: Error codes and classification helpers for the layout library
//
// Every failure surfaced by this package is a coded go-errors value. Codes are
// grouped into four families that callers can test for:
//   - configuration errors: a Layout or Field definition is self-inconsistent
//   - format violations: a line does not have the expected shape
//   - value errors: a value does not fit its column span
//   - lookup misses: a layout id cannot be resolved
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	goerrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for layout operations
const (
	ErrCodeInvalidDefinition  = "LAYOUT_INVALID_DEFINITION"
	ErrCodeMissingID          = "LAYOUT_MISSING_ID"
	ErrCodeMissingName        = "LAYOUT_MISSING_NAME"
	ErrCodeInvalidLineLength  = "LAYOUT_INVALID_LINE_LENGTH"
	ErrCodeInvalidFieldBounds = "LAYOUT_INVALID_FIELD_BOUNDS"
	ErrCodeFieldOverlap       = "LAYOUT_FIELD_OVERLAP"
	ErrCodeSubFieldBounds     = "LAYOUT_SUBFIELD_BOUNDS"
	ErrCodeSubFieldOverlap    = "LAYOUT_SUBFIELD_OVERLAP"
	ErrCodeDuplicateName      = "LAYOUT_DUPLICATE_NAME"
	ErrCodeDuplicateShort     = "LAYOUT_DUPLICATE_SHORT_LABEL"
	ErrCodeDuplicateLong      = "LAYOUT_DUPLICATE_LONG_LABEL"
	ErrCodeDuplicateItem      = "LAYOUT_DUPLICATE_ITEM_NUMBER"
	ErrCodeDuplicateID        = "LAYOUT_DUPLICATE_ID"
	ErrCodeInvalidParent      = "LAYOUT_INVALID_PARENT"
	ErrCodeFormatViolation    = "LAYOUT_FORMAT_VIOLATION"
	ErrCodeValueTooLong       = "LAYOUT_VALUE_TOO_LONG"
	ErrCodeNotFound           = "LAYOUT_NOT_FOUND"
	ErrCodeIOError            = "LAYOUT_IO_ERROR"
	ErrCodeInvalidSettings    = "LAYOUT_INVALID_SETTINGS"
	ErrCodeInvalidAuditConfig = "LAYOUT_INVALID_AUDIT_CONFIG"
	ErrCodeWatcherBusy        = "LAYOUT_WATCHER_BUSY"
	ErrCodeWatcherStopped     = "LAYOUT_WATCHER_STOPPED"
)

// configurationCodes lists every code raised for a structurally invalid definition.
var configurationCodes = map[string]struct{}{
	ErrCodeInvalidDefinition:  {},
	ErrCodeMissingID:          {},
	ErrCodeMissingName:        {},
	ErrCodeInvalidLineLength:  {},
	ErrCodeInvalidFieldBounds: {},
	ErrCodeFieldOverlap:       {},
	ErrCodeSubFieldBounds:     {},
	ErrCodeSubFieldOverlap:    {},
	ErrCodeDuplicateName:      {},
	ErrCodeDuplicateShort:     {},
	ErrCodeDuplicateLong:      {},
	ErrCodeDuplicateItem:      {},
	ErrCodeDuplicateID:        {},
	ErrCodeInvalidParent:      {},
}

// ErrorCode returns the go-errors code carried by err (or anything it wraps).
// Returns an empty string for nil or uncoded errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// IsConfigurationError reports whether err describes an invalid Field or Layout definition.
func IsConfigurationError(err error) bool {
	_, ok := configurationCodes[ErrorCode(err)]
	return ok
}

// IsFormatViolation reports whether err describes a line that does not match its layout.
func IsFormatViolation(err error) bool {
	return ErrorCode(err) == ErrCodeFormatViolation
}

// IsValueError reports whether err describes a value wider than its column span.
func IsValueError(err error) bool {
	return ErrorCode(err) == ErrCodeValueTooLong
}

// IsLookupMiss reports whether err describes an unresolvable layout id.
func IsLookupMiss(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}

// formatViolation builds a FormatViolation for the given line number (0 when unknown).
func formatViolation(lineNumber int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if lineNumber > 0 {
		msg = fmt.Sprintf("line %d: %s", lineNumber, msg)
	}
	return errors.New(ErrCodeFormatViolation, msg).
		WithContext("line_number", lineNumber)
}

// lookupMiss builds a LookupMiss naming the unresolved id.
func lookupMiss(id string) error {
	return errors.New(ErrCodeNotFound, fmt.Sprintf("unknown layout %q", id)).
		WithContext("layout_id", id)
}

// codeOf returns the go-errors code of err, falling back to
// ErrCodeInvalidDefinition so wrapped definition errors keep a configuration code.
func codeOf(err error) errors.ErrorCode {
	if code := ErrorCode(err); code != "" {
		return errors.ErrorCode(code)
	}
	return ErrCodeInvalidDefinition
}
