// positional.go: Fixed-width layout codec
//
// A PositionalLayout is an immutable, validated ordered set of Fields with a
// declared total width. It decodes lines into records and encodes records
// back into lines. A layout may extend a parent: the parent's effective
// fields, cleaner and documentation are captured once at construction.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agilira/go-errors"
)

// Record maps field names to values. A missing key means the field is blank.
type Record map[string]string

// ValueCleaner may override a value just before it is padded.
type ValueCleaner func(f *Field, value string) string

// DecodeOptions control line decoding.
type DecodeOptions struct {
	// Strict fails lines whose width or signature do not match the layout.
	Strict bool
	// KeepWhitespace disables trimming for every field.
	KeepWhitespace bool
}

// EncodeOptions control record encoding.
type EncodeOptions struct {
	// LineLength is the output width; 0 means the declared line length.
	LineLength int
}

// LayoutSpec is the mutable description a PositionalLayout is built from.
type LayoutSpec struct {
	ID          string
	Name        string
	Version     string
	Description string
	LineLength  int
	Fields      []FieldSpec
	Signature   *Signature
	Cleaner     ValueCleaner
	Docs        DocProvider
}

// PositionalLayout is a fixed-width record layout.
type PositionalLayout struct {
	id          string
	name        string
	version     string
	description string
	lineLength  int
	parentID    string

	fields    []*Field
	byName    map[string]*Field
	byItem    map[int]*Field
	byShort   map[string]*Field
	flattened []*Field

	signature *Signature
	cleaner   ValueCleaner
	docs      DocProvider

	parentDoc func(name string) (string, bool)
	parentCSS func() string
}

// NewPositionalLayout builds and verifies a layout. No invalid layout is
// ever returned.
func NewPositionalLayout(spec LayoutSpec) (*PositionalLayout, error) {
	fields, err := buildFields(spec.Fields)
	if err != nil {
		return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("layout %s", spec.ID)).
			WithContext("layout_id", spec.ID)
	}
	return newPositionalLayout(spec, fields)
}

// NewExtendedLayout builds a layout whose effective fields are its own plus
// every field of parent whose name it does not redeclare. Width, signature,
// cleaner and documentation are inherited when spec leaves them unset.
func NewExtendedLayout(parent Layout, spec LayoutSpec) (*PositionalLayout, error) {
	base, ok := parent.(*PositionalLayout)
	if parent == nil || (ok && base == nil) {
		return nil, errors.New(ErrCodeInvalidParent,
			fmt.Sprintf("layout %s: parent layout is required", spec.ID)).
			WithContext("layout_id", spec.ID)
	}
	if !ok || parent.Kind() != KindPositional {
		return nil, errors.New(ErrCodeInvalidParent,
			fmt.Sprintf("layout %s: parent %s is a %s layout", spec.ID, parent.ID(), parent.Kind())).
			WithContext("layout_id", spec.ID).
			WithContext("parent_id", parent.ID())
	}

	own, err := buildFields(spec.Fields)
	if err != nil {
		return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("layout %s", spec.ID)).
			WithContext("layout_id", spec.ID)
	}

	redeclared := make(map[string]struct{}, len(own))
	for _, f := range own {
		redeclared[f.name] = struct{}{}
	}
	merged := make([]*Field, 0, len(own)+len(base.fields))
	merged = append(merged, own...)
	for _, f := range base.fields {
		if _, ok := redeclared[f.name]; !ok {
			merged = append(merged, f)
		}
	}

	if spec.LineLength == 0 {
		spec.LineLength = base.lineLength
	}
	if spec.Signature == nil {
		spec.Signature = base.signature
	}
	if spec.Cleaner == nil {
		spec.Cleaner = base.cleaner
	}

	l, err := newPositionalLayout(spec, merged)
	if err != nil {
		return nil, err
	}
	l.parentID = base.id
	l.parentDoc = base.FieldDoc
	l.parentCSS = base.FieldDocDefaultCSSStyle
	return l, nil
}

func buildFields(specs []FieldSpec) ([]*Field, error) {
	fields := make([]*Field, 0, len(specs))
	for _, s := range specs {
		f, err := NewField(s)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func newPositionalLayout(spec LayoutSpec, fields []*Field) (*PositionalLayout, error) {
	l := &PositionalLayout{
		id:          strings.TrimSpace(spec.ID),
		name:        strings.TrimSpace(spec.Name),
		version:     spec.Version,
		description: spec.Description,
		lineLength:  spec.LineLength,
		signature:   spec.Signature,
		cleaner:     spec.Cleaner,
		docs:        spec.Docs,
	}
	l.setFields(fields)
	if err := l.Verify(); err != nil {
		return nil, err
	}
	return l, nil
}

// setFields sorts fields by start and rebuilds the lookup indexes.
func (l *PositionalLayout) setFields(fields []*Field) {
	sorted := make([]*Field, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	l.fields = sorted
	l.byName = make(map[string]*Field)
	l.byItem = make(map[int]*Field)
	l.byShort = make(map[string]*Field)
	l.flattened = l.flattened[:0]

	for _, f := range sorted {
		l.index(f)
		for _, sub := range f.subFields {
			l.index(sub)
		}
	}
	sort.SliceStable(l.flattened, func(i, j int) bool { return l.flattened[i].start < l.flattened[j].start })
}

func (l *PositionalLayout) index(f *Field) {
	l.flattened = append(l.flattened, f)
	if _, dup := l.byName[f.name]; !dup {
		l.byName[f.name] = f
	}
	if _, dup := l.byShort[f.shortLabel]; !dup {
		l.byShort[f.shortLabel] = f
	}
	if f.itemNumber != 0 {
		if _, dup := l.byItem[f.itemNumber]; !dup {
			l.byItem[f.itemNumber] = f
		}
	}
}

// ID returns the catalog id.
func (l *PositionalLayout) ID() string { return l.id }

// Name returns the display name.
func (l *PositionalLayout) Name() string { return l.name }

// Version returns the layout version.
func (l *PositionalLayout) Version() string { return l.version }

// Description returns the free-form description.
func (l *PositionalLayout) Description() string { return l.description }

// Kind always returns KindPositional.
func (l *PositionalLayout) Kind() Kind { return KindPositional }

// LineLength returns the declared total width.
func (l *PositionalLayout) LineLength() int { return l.lineLength }

// ParentID returns the id of the extended layout, empty when there is none.
func (l *PositionalLayout) ParentID() string { return l.parentID }

// Signature returns the identifying markers, nil when the layout has none.
func (l *PositionalLayout) Signature() *Signature { return l.signature }

// FieldByName looks a field or subfield up by name.
func (l *PositionalLayout) FieldByName(name string) (*Field, bool) {
	f, ok := l.byName[name]
	return f, ok
}

// FieldByItemNumber looks a field or subfield up by item number.
func (l *PositionalLayout) FieldByItemNumber(num int) (*Field, bool) {
	if num == 0 {
		return nil, false
	}
	f, ok := l.byItem[num]
	return f, ok
}

// FieldByShortLabel looks a field or subfield up by short label.
func (l *PositionalLayout) FieldByShortLabel(label string) (*Field, bool) {
	f, ok := l.byShort[label]
	return f, ok
}

// Fields returns the top-level fields ordered by start column.
func (l *PositionalLayout) Fields() []*Field {
	out := make([]*Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// AllFieldsFlattened returns fields and subfields ordered by start column.
// A group field precedes its first subfield.
func (l *PositionalLayout) AllFieldsFlattened() []*Field {
	out := make([]*Field, len(l.flattened))
	copy(out, l.flattened)
	return out
}

// FieldDoc returns the documentation of a field, falling back to the parent.
func (l *PositionalLayout) FieldDoc(name string) (string, bool) {
	if l.docs != nil {
		if doc, ok := l.docs.FieldDoc(l.id, name); ok {
			return doc, true
		}
	}
	if l.parentDoc != nil {
		return l.parentDoc(name)
	}
	return "", false
}

// FieldDocByItemNumber returns the documentation of the field with that item number.
func (l *PositionalLayout) FieldDocByItemNumber(num int) (string, bool) {
	f, ok := l.FieldByItemNumber(num)
	if !ok {
		return "", false
	}
	return l.FieldDoc(f.name)
}

// FieldDocDefaultCSSStyle returns the stylesheet used to render field docs.
func (l *PositionalLayout) FieldDocDefaultCSSStyle() string {
	if l.docs != nil {
		if css := l.docs.DefaultCSSStyle(); css != "" {
			return css
		}
	}
	if l.parentCSS != nil {
		return l.parentCSS()
	}
	return ""
}

// Decode splits line into a record. lineNumber is only used in error messages.
func (l *PositionalLayout) Decode(line string, lineNumber int, opts DecodeOptions) (Record, error) {
	rec := make(Record)
	if line == "" {
		if opts.Strict {
			return nil, formatViolation(lineNumber, "empty line")
		}
		return rec, nil
	}

	runes := []rune(line)
	width := len(runes)
	if opts.Strict {
		if width != l.lineLength {
			return nil, formatViolation(lineNumber, "invalid line length for layout %s: expected %d, got %d",
				l.id, l.lineLength, width)
		}
		if err := l.checkSignature(runes, lineNumber); err != nil {
			return nil, err
		}
	}

	for _, f := range l.fields {
		if f.end > width {
			break
		}
		raw := string(runes[f.start-1 : f.end])
		trimmed := strings.TrimSpace(raw)
		value := raw
		if f.trim && !opts.KeepWhitespace && (!f.HasSubFields() || trimmed == "") {
			value = trimmed
		}
		if value != "" {
			rec[f.name] = value
		}

		for _, sub := range f.subFields {
			if sub.end > width {
				break
			}
			subRaw := string(runes[sub.start-1 : sub.end])
			subValue := subRaw
			if sub.trim && !opts.KeepWhitespace {
				subValue = strings.TrimSpace(subRaw)
			}
			if subValue != "" {
				rec[sub.name] = subValue
			}
		}
	}
	return rec, nil
}

// DecodeAll decodes lines numbered from 1. Under strict options it stops at
// the first violation; otherwise violating lines are skipped and their
// errors collected.
func (l *PositionalLayout) DecodeAll(lines []string, opts DecodeOptions) ([]Record, []error) {
	records := make([]Record, 0, len(lines))
	var violations []error
	for i, line := range lines {
		rec, err := l.Decode(line, i+1, opts)
		if err != nil {
			violations = append(violations, err)
			if opts.Strict {
				break
			}
			continue
		}
		records = append(records, rec)
	}
	return records, violations
}

// Encode writes rec as a line of the requested width.
func (l *PositionalLayout) Encode(rec Record, opts EncodeOptions) (string, error) {
	width := opts.LineLength
	if width <= 0 {
		width = l.lineLength
	}

	var b strings.Builder
	b.Grow(width)
	cursor := 1

	for _, f := range l.fields {
		// A group field that does not end within width is dropped with all its subfields.
		if f.end > width {
			continue
		}
		if f.HasSubFields() {
			for _, sub := range f.subFields {
				if sub.end > f.end {
					continue
				}
				cursor = padGap(&b, cursor, sub.start)
				if err := l.writeValue(&b, sub, rec); err != nil {
					return "", err
				}
				cursor = sub.end + 1
			}
			cursor = padGap(&b, cursor, f.end+1)
			continue
		}
		cursor = padGap(&b, cursor, f.start)
		if err := l.writeValue(&b, f, rec); err != nil {
			return "", err
		}
		cursor = f.end + 1
	}
	padGap(&b, cursor, width+1)
	return b.String(), nil
}

// padGap writes spaces from cursor up to (excluding) column to.
func padGap(b *strings.Builder, cursor, to int) int {
	if to > cursor {
		b.WriteString(strings.Repeat(" ", to-cursor))
		return to
	}
	return cursor
}

func (l *PositionalLayout) writeValue(b *strings.Builder, f *Field, rec Record) error {
	value, ok := rec[f.name]
	if !ok {
		value = f.defaultValue
	}
	if l.cleaner != nil {
		value = l.cleaner(f, value)
	}

	length := utf8.RuneCountInString(value)
	width := f.Width()
	if length > width {
		return errors.New(ErrCodeValueTooLong,
			fmt.Sprintf("value for field %s is %d characters, field width is %d", f.name, length, width)).
			WithContext("layout_id", l.id).
			WithContext("field", f.name).
			WithContext("width", width).
			WithContext("value_length", length)
	}

	pad := f.padChar
	if value == "" {
		pad = ' '
	}
	filler := strings.Repeat(string(pad), width-length)
	if f.align == AlignRight {
		b.WriteString(filler)
		b.WriteString(value)
	} else {
		b.WriteString(value)
		b.WriteString(filler)
	}
	return nil
}

// String returns a compact description for debugging and logging.
func (l *PositionalLayout) String() string {
	return fmt.Sprintf("%s (%d columns, %d fields)", l.id, l.lineLength, len(l.fields))
}
