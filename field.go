// field.go: Field model for positional layouts
//
// A Field describes one fixed column span of a positional record. Fields are
// built from a FieldSpec and are immutable afterwards; a Field may group an
// ordered list of child fields (for example a date subdivided into year,
// month and day).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agilira/go-errors"
)

// Alignment controls on which side a value is padded when encoded.
type Alignment int

const (
	// AlignLeft writes the value first and pads on the right (default).
	AlignLeft Alignment = iota
	// AlignRight pads on the left so the value ends at the last column.
	AlignRight
)

// String returns the string representation of the alignment.
func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "LEFT"
	case AlignRight:
		return "RIGHT"
	default:
		return "UNKNOWN"
	}
}

// ParseAlignment parses "left"/"right" (case-insensitive). An empty string is LEFT.
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LEFT":
		return AlignLeft, nil
	case "RIGHT":
		return AlignRight, nil
	default:
		return AlignLeft, errors.New(ErrCodeInvalidDefinition, fmt.Sprintf("unknown alignment %q", s))
	}
}

// FieldSpec is the mutable description a Field is built from.
type FieldSpec struct {
	Name       string
	ShortLabel string
	LongLabel  string

	// Start and End are 1-based inclusive column positions.
	Start int
	End   int

	// ItemNumber is an optional secondary key; 0 means none.
	ItemNumber int

	Align        Alignment
	PadChar      rune // 0 means space
	DefaultValue string

	// PreserveWhitespace disables trimming of decoded values for this field.
	PreserveWhitespace bool

	Section   string
	SubFields []FieldSpec
}

// Field is an immutable column span description.
type Field struct {
	name         string
	shortLabel   string
	longLabel    string
	start        int
	end          int
	itemNumber   int
	align        Alignment
	padChar      rune
	defaultValue string
	trim         bool
	section      string
	subFields    []*Field
}

// NewField builds an immutable Field from spec, validating its own bounds and
// those of its subfields. Cross-field invariants are checked by the layout.
func NewField(spec FieldSpec) (*Field, error) {
	return newField(spec, false)
}

func newField(spec FieldSpec, isSub bool) (*Field, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, errors.New(ErrCodeInvalidDefinition, "field name is required")
	}
	if spec.ShortLabel == "" || spec.LongLabel == "" {
		return nil, errors.New(ErrCodeInvalidDefinition,
			fmt.Sprintf("field %s: short and long labels are required", spec.Name)).
			WithContext("field", spec.Name)
	}
	if spec.Start < 1 || spec.End < spec.Start {
		return nil, errors.New(ErrCodeInvalidFieldBounds,
			fmt.Sprintf("field %s: invalid column range %d-%d", spec.Name, spec.Start, spec.End)).
			WithContext("field", spec.Name)
	}
	if spec.ItemNumber < 0 {
		return nil, errors.New(ErrCodeInvalidDefinition,
			fmt.Sprintf("field %s: negative item number %d", spec.Name, spec.ItemNumber)).
			WithContext("field", spec.Name)
	}
	if spec.Align != AlignLeft && spec.Align != AlignRight {
		return nil, errors.New(ErrCodeInvalidDefinition,
			fmt.Sprintf("field %s: unknown alignment %d", spec.Name, spec.Align)).
			WithContext("field", spec.Name)
	}
	if utf8.RuneCountInString(spec.DefaultValue) > spec.End-spec.Start+1 {
		return nil, errors.New(ErrCodeInvalidDefinition,
			fmt.Sprintf("field %s: default value %q is wider than the field", spec.Name, spec.DefaultValue)).
			WithContext("field", spec.Name)
	}

	pad := spec.PadChar
	if pad == 0 {
		pad = ' '
	}

	f := &Field{
		name:         spec.Name,
		shortLabel:   spec.ShortLabel,
		longLabel:    spec.LongLabel,
		start:        spec.Start,
		end:          spec.End,
		itemNumber:   spec.ItemNumber,
		align:        spec.Align,
		padChar:      pad,
		defaultValue: spec.DefaultValue,
		trim:         !spec.PreserveWhitespace,
		section:      spec.Section,
	}

	if len(spec.SubFields) > 0 {
		if isSub {
			return nil, errors.New(ErrCodeInvalidDefinition,
				fmt.Sprintf("subfield %s cannot declare subfields", spec.Name)).
				WithContext("field", spec.Name)
		}
		f.subFields = make([]*Field, 0, len(spec.SubFields))
		for _, childSpec := range spec.SubFields {
			child, err := newField(childSpec, true)
			if err != nil {
				return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("field %s", spec.Name))
			}
			f.subFields = append(f.subFields, child)
		}
	}

	return f, nil
}

// Name returns the field's unique key within its layout.
func (f *Field) Name() string { return f.name }

// ShortLabel returns the abbreviated label.
func (f *Field) ShortLabel() string { return f.shortLabel }

// LongLabel returns the descriptive label.
func (f *Field) LongLabel() string { return f.longLabel }

// Start returns the first (1-based) column.
func (f *Field) Start() int { return f.start }

// End returns the last (1-based, inclusive) column.
func (f *Field) End() int { return f.end }

// Width returns the number of columns the field spans.
func (f *Field) Width() int { return f.end - f.start + 1 }

// ItemNumber returns the secondary numeric key, 0 when the field has none.
func (f *Field) ItemNumber() int { return f.itemNumber }

// Alignment returns the padding side.
func (f *Field) Alignment() Alignment { return f.align }

// PadChar returns the configured filler character.
func (f *Field) PadChar() rune { return f.padChar }

// DefaultValue returns the value written when a record has no entry for the field.
func (f *Field) DefaultValue() string { return f.defaultValue }

// Trim reports whether decoded values are trimmed.
func (f *Field) Trim() bool { return f.trim }

// Section returns the optional grouping tag.
func (f *Field) Section() string { return f.section }

// HasSubFields reports whether the field is a group field.
func (f *Field) HasSubFields() bool { return len(f.subFields) > 0 }

// SubFields returns a copy of the ordered child fields.
func (f *Field) SubFields() []*Field {
	if len(f.subFields) == 0 {
		return nil
	}
	out := make([]*Field, len(f.subFields))
	copy(out, f.subFields)
	return out
}

// String returns a compact description for debugging and logging.
func (f *Field) String() string {
	return fmt.Sprintf("%s[%d-%d]", f.name, f.start, f.end)
}
