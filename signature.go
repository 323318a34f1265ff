// signature.go: Signature detection for positional layouts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Marker is a fixed value expected at a known column span.
type Marker struct {
	Start int
	End   int
	Value string
}

// Width returns the number of columns the marker spans.
func (m Marker) Width() int { return m.End - m.Start + 1 }

type markerState int

const (
	markerMatch markerState = iota
	markerBlank
	markerMismatch
)

// check classifies the marker against line (as runes). A line too short to
// hold the marker counts as blank.
func (m Marker) check(line []rune) markerState {
	if m.End > len(line) {
		if m.Start > len(line) || strings.TrimSpace(string(line[m.Start-1:])) == "" {
			return markerBlank
		}
		return markerMismatch
	}
	got := strings.TrimSpace(string(line[m.Start-1 : m.End]))
	switch {
	case got == "":
		return markerBlank
	case got == strings.TrimSpace(m.Value):
		return markerMatch
	default:
		return markerMismatch
	}
}

// Signature holds the markers that identify a positional record shape.
// Either marker may be nil.
type Signature struct {
	RecordType *Marker
	Version    *Marker
}

func (s *Signature) empty() bool {
	return s == nil || (s.RecordType == nil && s.Version == nil)
}

// firstLine returns the first line of sample without its terminator.
func firstLine(sample string) string {
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	return strings.TrimSuffix(sample, "\r")
}

// BuildFileInfo applies the signature heuristic to the first line of sample.
//
// A sample whose declared markers all match is accepted; a width mismatch
// is then reported through LayoutInfo.ErrorMessage. A blank marker is only
// tolerated when the corresponding option allows it and the sample has
// exactly the declared width. Any mismatching marker rejects the sample.
func (l *PositionalLayout) BuildFileInfo(sample string, opts DiscoveryOptions) *LayoutInfo {
	line := firstLine(sample)
	if line == "" {
		return nil
	}
	runes := []rune(line)
	length := utf8.RuneCountInString(line)

	info := &LayoutInfo{
		LayoutID:   l.id,
		LayoutName: l.name,
		LineLength: l.lineLength,
		FieldCount: len(l.fields),
	}

	if l.signature.empty() {
		if opts.TrustLineLength && length == l.lineLength {
			return info
		}
		return nil
	}

	blank := false
	if m := l.signature.RecordType; m != nil {
		switch m.check(runes) {
		case markerMismatch:
			return nil
		case markerBlank:
			if !opts.AllowBlankRecordType {
				return nil
			}
			blank = true
		}
	}
	if m := l.signature.Version; m != nil {
		switch m.check(runes) {
		case markerMismatch:
			return nil
		case markerBlank:
			if !opts.AllowBlankVersion {
				return nil
			}
			blank = true
		}
	}

	if blank {
		if length != l.lineLength {
			return nil
		}
		return info
	}

	if length != l.lineLength {
		info.ErrorMessage = fmt.Sprintf("line has %d characters, expected %d", length, l.lineLength)
	}
	return info
}

// checkSignature is the strict decode form of the heuristic: every declared
// marker must be present and match.
func (l *PositionalLayout) checkSignature(line []rune, lineNumber int) error {
	if l.signature.empty() {
		return nil
	}
	for _, m := range []*Marker{l.signature.RecordType, l.signature.Version} {
		if m == nil {
			continue
		}
		if m.check(line) != markerMatch {
			got := ""
			if m.End <= len(line) {
				got = string(line[m.Start-1 : m.End])
			}
			return formatViolation(lineNumber, "expected %q at columns %d-%d, found %q", m.Value, m.Start, m.End, got)
		}
	}
	return nil
}
