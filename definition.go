// definition.go: Declarative YAML layout definitions
//
// A definition file holds either a single layout or a "layouts:" list.
// Definitions are turned into layouts through a Registry so that "extends"
// resolves against internal and previously registered layouts.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// Definition is the YAML form of a positional layout.
type Definition struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Version     string               `yaml:"version,omitempty"`
	Description string               `yaml:"description,omitempty"`
	LineLength  int                  `yaml:"line-length,omitempty"`
	Extends     string               `yaml:"extends,omitempty"`
	Signature   *SignatureDefinition `yaml:"signature,omitempty"`
	CSS         string               `yaml:"css,omitempty"`
	Fields      []FieldDefinition    `yaml:"fields,omitempty"`
}

// SignatureDefinition is the YAML form of a Signature.
type SignatureDefinition struct {
	RecordType *MarkerDefinition `yaml:"record-type,omitempty"`
	Version    *MarkerDefinition `yaml:"version,omitempty"`
}

// MarkerDefinition is the YAML form of a Marker.
type MarkerDefinition struct {
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Value string `yaml:"value"`
}

// FieldDefinition is the YAML form of a field.
type FieldDefinition struct {
	Name       string            `yaml:"name"`
	ShortLabel string            `yaml:"short-label,omitempty"`
	LongLabel  string            `yaml:"long-label,omitempty"`
	Start      int               `yaml:"start"`
	End        int               `yaml:"end"`
	ItemNumber int               `yaml:"item-number,omitempty"`
	Align      string            `yaml:"align,omitempty"`
	PadChar    string            `yaml:"pad-char,omitempty"`
	Default    string            `yaml:"default,omitempty"`
	Trim       *bool             `yaml:"trim,omitempty"`
	Section    string            `yaml:"section,omitempty"`
	Doc        string            `yaml:"doc,omitempty"`
	SubFields  []FieldDefinition `yaml:"subfields,omitempty"`
}

type definitionFile struct {
	Layouts []Definition `yaml:"layouts"`
}

// ParseDefinitions parses YAML holding one layout or a "layouts:" list.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidDefinition, "failed to parse layout definition YAML")
	}
	if len(file.Layouts) == 0 {
		var single Definition
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidDefinition, "failed to parse layout definition YAML")
		}
		if single.ID == "" && len(single.Fields) == 0 {
			return nil, errors.New(ErrCodeInvalidDefinition, "no layout definition found")
		}
		file.Layouts = []Definition{single}
	}
	for i := range file.Layouts {
		applyDefaults(&file.Layouts[i])
	}
	return file.Layouts, nil
}

// LoadDefinitionFile reads and parses a definition file.
func LoadDefinitionFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller selected definition file
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read layout definition file").
			WithContext("path", path)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("definition file %s", path)).
			WithContext("path", path)
	}
	return defs, nil
}

// applyDefaults fills labels from the field name when they are omitted.
func applyDefaults(def *Definition) {
	var fill func(fields []FieldDefinition)
	fill = func(fields []FieldDefinition) {
		for i := range fields {
			f := &fields[i]
			if f.ShortLabel == "" {
				f.ShortLabel = f.Name
			}
			if f.LongLabel == "" {
				f.LongLabel = f.Name
			}
			fill(f.SubFields)
		}
	}
	fill(def.Fields)
}

// FieldSpec converts the definition into a FieldSpec.
func (d FieldDefinition) FieldSpec() (FieldSpec, error) {
	align, err := ParseAlignment(d.Align)
	if err != nil {
		return FieldSpec{}, errors.Wrap(err, ErrCodeInvalidDefinition, fmt.Sprintf("field %s", d.Name))
	}
	var pad rune
	if d.PadChar != "" {
		if utf8.RuneCountInString(d.PadChar) != 1 {
			return FieldSpec{}, errors.New(ErrCodeInvalidDefinition,
				fmt.Sprintf("field %s: pad-char must be a single character, got %q", d.Name, d.PadChar)).
				WithContext("field", d.Name)
		}
		pad, _ = utf8.DecodeRuneInString(d.PadChar)
	}
	spec := FieldSpec{
		Name:               d.Name,
		ShortLabel:         d.ShortLabel,
		LongLabel:          d.LongLabel,
		Start:              d.Start,
		End:                d.End,
		ItemNumber:         d.ItemNumber,
		Align:              align,
		PadChar:            pad,
		DefaultValue:       d.Default,
		PreserveWhitespace: d.Trim != nil && !*d.Trim,
		Section:            d.Section,
	}
	for _, sub := range d.SubFields {
		subSpec, err := sub.FieldSpec()
		if err != nil {
			return FieldSpec{}, errors.Wrap(err, codeOf(err), fmt.Sprintf("field %s", d.Name))
		}
		spec.SubFields = append(spec.SubFields, subSpec)
	}
	return spec, nil
}

// Spec converts the definition into a LayoutSpec. The "doc" keys become a
// StaticDocs provider.
func (d Definition) Spec() (LayoutSpec, error) {
	spec := LayoutSpec{
		ID:          d.ID,
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		LineLength:  d.LineLength,
	}
	docs := &StaticDocs{Docs: make(map[string]string), CSS: d.CSS}
	var collectDocs func(fields []FieldDefinition)
	collectDocs = func(fields []FieldDefinition) {
		for _, f := range fields {
			if f.Doc != "" {
				docs.Docs[f.Name] = f.Doc
			}
			collectDocs(f.SubFields)
		}
	}
	collectDocs(d.Fields)
	if len(docs.Docs) > 0 || docs.CSS != "" {
		spec.Docs = docs
	}

	for _, f := range d.Fields {
		fs, err := f.FieldSpec()
		if err != nil {
			return LayoutSpec{}, errors.Wrap(err, codeOf(err), fmt.Sprintf("layout %s", d.ID)).
				WithContext("layout_id", d.ID)
		}
		spec.Fields = append(spec.Fields, fs)
	}

	if d.Signature != nil {
		sig := &Signature{}
		if m := d.Signature.RecordType; m != nil {
			sig.RecordType = &Marker{Start: m.Start, End: m.End, Value: m.Value}
		}
		if m := d.Signature.Version; m != nil {
			sig.Version = &Marker{Start: m.Start, End: m.End, Value: m.Value}
		}
		spec.Signature = sig
	}
	return spec, nil
}

// DefinitionOf renders a positional layout back into its YAML form.
// Inherited fields are written out explicitly.
func DefinitionOf(l *PositionalLayout) Definition {
	def := Definition{
		ID:          l.id,
		Name:        l.name,
		Version:     l.version,
		Description: l.description,
		LineLength:  l.lineLength,
		CSS:         l.FieldDocDefaultCSSStyle(),
	}
	if sig := l.signature; !sig.empty() {
		def.Signature = &SignatureDefinition{}
		if m := sig.RecordType; m != nil {
			def.Signature.RecordType = &MarkerDefinition{Start: m.Start, End: m.End, Value: m.Value}
		}
		if m := sig.Version; m != nil {
			def.Signature.Version = &MarkerDefinition{Start: m.Start, End: m.End, Value: m.Value}
		}
	}
	var render func(f *Field) FieldDefinition
	render = func(f *Field) FieldDefinition {
		fd := FieldDefinition{
			Name:       f.name,
			ShortLabel: f.shortLabel,
			LongLabel:  f.longLabel,
			Start:      f.start,
			End:        f.end,
			ItemNumber: f.itemNumber,
			Default:    f.defaultValue,
			Section:    f.section,
		}
		if f.align == AlignRight {
			fd.Align = "right"
		}
		if f.padChar != ' ' {
			fd.PadChar = string(f.padChar)
		}
		if !f.trim {
			trim := false
			fd.Trim = &trim
		}
		if doc, ok := l.FieldDoc(f.name); ok {
			fd.Doc = doc
		}
		for _, sub := range f.subFields {
			fd.SubFields = append(fd.SubFields, render(sub))
		}
		return fd
	}
	for _, f := range l.fields {
		def.Fields = append(def.Fields, render(f))
	}
	return def
}

// MarshalDefinition serializes a definition to YAML.
func MarshalDefinition(def Definition) ([]byte, error) {
	data, err := yaml.Marshal(def)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidDefinition, "failed to marshal layout definition")
	}
	return data, nil
}

// BuildDefinition constructs the layout described by def, resolving its
// parent through the registry. The layout is not registered.
func (r *Registry) BuildDefinition(def Definition) (*PositionalLayout, error) {
	spec, err := def.Spec()
	if err != nil {
		return nil, err
	}
	if def.Extends == "" {
		return NewPositionalLayout(spec)
	}
	parent, err := r.Resolve(def.Extends)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidParent,
			fmt.Sprintf("layout %s extends unknown layout %s", def.ID, def.Extends)).
			WithContext("layout_id", def.ID).
			WithContext("parent_id", def.Extends)
	}
	return NewExtendedLayout(parent, spec)
}

// RegisterDefinition builds and registers def.
func (r *Registry) RegisterDefinition(def Definition) (*PositionalLayout, error) {
	l, err := r.BuildDefinition(def)
	if err != nil {
		return nil, err
	}
	if err := r.Register(l); err != nil {
		return nil, err
	}
	r.audit.Log(AuditInfo, EventDefinitionLoaded, l.ID(), map[string]interface{}{"extends": def.Extends})
	return l, nil
}

// LoadDefinitionsDir registers every *.yml and *.yaml file of dir. Files
// are read in name order and registration repeats until no further
// definition can be added, so a layout may extend one defined in a later
// file. The returned ids are in registration order.
func (r *Registry) LoadDefinitionsDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read definitions directory").
			WithContext("path", dir)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yml" || ext == ".yaml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var pending []Definition
	for _, path := range files {
		defs, err := LoadDefinitionFile(path)
		if err != nil {
			return nil, err
		}
		pending = append(pending, defs...)
	}

	var loaded []string
	for len(pending) > 0 {
		var retry []Definition
		var lastErr error
		for _, def := range pending {
			if _, err := r.RegisterDefinition(def); err != nil {
				if ErrorCode(err) == ErrCodeInvalidParent && def.Extends != "" && pendingHas(pending, def.Extends) {
					retry = append(retry, def)
					lastErr = err
					continue
				}
				return loaded, err
			}
			loaded = append(loaded, def.ID)
		}
		if len(retry) == len(pending) {
			return loaded, lastErr
		}
		pending = retry
	}
	return loaded, nil
}

func pendingHas(defs []Definition, id string) bool {
	for _, d := range defs {
		if d.ID == id {
			return true
		}
	}
	return false
}
