// docs.go: Field documentation lookup
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

// DocProvider resolves a field of a layout to its reference text.
type DocProvider interface {
	FieldDoc(layoutID, name string) (string, bool)
	DefaultCSSStyle() string
}

// StaticDocs is a DocProvider backed by a map of field name to text. It
// serves the same text for every layout id.
type StaticDocs struct {
	Docs map[string]string
	CSS  string
}

// FieldDoc returns the text registered for name.
func (d *StaticDocs) FieldDoc(_ string, name string) (string, bool) {
	if d == nil {
		return "", false
	}
	doc, ok := d.Docs[name]
	return doc, ok
}

// DefaultCSSStyle returns the configured stylesheet.
func (d *StaticDocs) DefaultCSSStyle() string {
	if d == nil {
		return ""
	}
	return d.CSS
}
