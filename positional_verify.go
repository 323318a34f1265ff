// positional_verify.go: Structural invariants of positional layouts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
)

// Verify checks every structural invariant and returns the first violation.
// It never mutates the layout and may be called any number of times.
func (l *PositionalLayout) Verify() error {
	if errs := l.VerifyAll(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// VerifyAll returns every invariant violation, in check order.
func (l *PositionalLayout) VerifyAll() []error {
	var errs []error
	add := func(code errors.ErrorCode, format string, args ...interface{}) {
		errs = append(errs, errors.New(code, fmt.Sprintf(format, args...)).
			WithContext("layout_id", l.id))
	}

	if strings.TrimSpace(l.id) == "" {
		add(ErrCodeMissingID, "layout id is required")
	}
	if strings.TrimSpace(l.name) == "" {
		add(ErrCodeMissingName, "layout %s: name is required", l.id)
	}
	if l.lineLength <= 0 {
		add(ErrCodeInvalidLineLength, "layout %s: line length must be positive, got %d", l.id, l.lineLength)
	}

	if n := len(l.fields); n > 0 {
		if first := l.fields[0]; first.start < 1 {
			add(ErrCodeInvalidFieldBounds, "layout %s: field %s starts at %d, before column 1", l.id, first.name, first.start)
		}
		if last := l.fields[n-1]; l.lineLength > 0 && last.end > l.lineLength {
			add(ErrCodeInvalidFieldBounds, "layout %s: field %s ends at %d, beyond line length %d",
				l.id, last.name, last.end, l.lineLength)
		}
	}

	for i, f := range l.fields {
		if i > 0 {
			prev := l.fields[i-1]
			if prev.end >= f.start {
				add(ErrCodeFieldOverlap, "layout %s: field %s [%d-%d] overlaps field %s [%d-%d]",
					l.id, prev.name, prev.start, prev.end, f.name, f.start, f.end)
			}
		}
		if !f.HasSubFields() {
			continue
		}
		subs := f.subFields
		if subs[0].start < f.start {
			add(ErrCodeSubFieldBounds, "layout %s: subfield %s starts at %d, before parent %s start %d",
				l.id, subs[0].name, subs[0].start, f.name, f.start)
		}
		if last := subs[len(subs)-1]; last.end > f.end {
			add(ErrCodeSubFieldBounds, "layout %s: subfield %s ends at %d, after parent %s end %d",
				l.id, last.name, last.end, f.name, f.end)
		}
		for j := 1; j < len(subs); j++ {
			if subs[j-1].end >= subs[j].start {
				add(ErrCodeSubFieldOverlap, "layout %s: subfield %s [%d-%d] overlaps subfield %s [%d-%d]",
					l.id, subs[j-1].name, subs[j-1].start, subs[j-1].end, subs[j].name, subs[j].start, subs[j].end)
			}
		}
	}

	names := make(map[string]struct{})
	shorts := make(map[string]struct{})
	longs := make(map[string]struct{})
	items := make(map[int]string)
	check := func(f *Field) {
		if _, dup := names[f.name]; dup {
			add(ErrCodeDuplicateName, "layout %s: duplicate field name %s", l.id, f.name)
		}
		names[f.name] = struct{}{}
		if _, dup := shorts[f.shortLabel]; dup {
			add(ErrCodeDuplicateShort, "layout %s: duplicate short label %s (field %s)", l.id, f.shortLabel, f.name)
		}
		shorts[f.shortLabel] = struct{}{}
		if _, dup := longs[f.longLabel]; dup {
			add(ErrCodeDuplicateLong, "layout %s: duplicate long label %s (field %s)", l.id, f.longLabel, f.name)
		}
		longs[f.longLabel] = struct{}{}
		if f.itemNumber != 0 {
			if other, dup := items[f.itemNumber]; dup {
				add(ErrCodeDuplicateItem, "layout %s: item number %d used by %s and %s", l.id, f.itemNumber, other, f.name)
			}
			items[f.itemNumber] = f.name
		}
	}
	for _, f := range l.fields {
		check(f)
		for _, sub := range f.subFields {
			check(sub)
		}
	}

	if !l.signature.empty() {
		for _, m := range []*Marker{l.signature.RecordType, l.signature.Version} {
			if m == nil {
				continue
			}
			if m.Start < 1 || m.End < m.Start || (l.lineLength > 0 && m.End > l.lineLength) {
				add(ErrCodeInvalidDefinition, "layout %s: signature marker %d-%d is outside the line", l.id, m.Start, m.End)
				continue
			}
			if len([]rune(m.Value)) > m.Width() {
				add(ErrCodeInvalidDefinition, "layout %s: signature value %q is wider than columns %d-%d",
					l.id, m.Value, m.Start, m.End)
			}
		}
	}

	return errs
}
