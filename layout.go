// layout.go: Layout capability set shared by every record format
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

// Kind identifies the concrete format family of a Layout.
type Kind int

const (
	// KindPositional is a fixed-width layout (PositionalLayout).
	KindPositional Kind = iota
	// KindDelimited is a separator based layout such as CSV.
	KindDelimited
	// KindHierarchical is a segment/component message format.
	KindHierarchical
	// KindDictionary is a dictionary driven tree format.
	KindDictionary
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPositional:
		return "positional"
	case KindDelimited:
		return "delimited"
	case KindHierarchical:
		return "hierarchical"
	case KindDictionary:
		return "dictionary"
	default:
		return "unknown"
	}
}

// Layout is the read/write capability set the Registry catalogs. Only
// positional layouts are implemented in this package; other formats can be
// registered as long as they implement this interface.
type Layout interface {
	ID() string
	Name() string
	Version() string
	Description() string
	Kind() Kind

	// FieldByName and FieldByItemNumber report absence through the bool,
	// never through an error.
	FieldByName(name string) (*Field, bool)
	FieldByItemNumber(num int) (*Field, bool)

	// Fields returns the top-level fields ordered by position.
	Fields() []*Field

	FieldDoc(name string) (string, bool)
	FieldDocByItemNumber(num int) (string, bool)
	FieldDocDefaultCSSStyle() string

	// BuildFileInfo inspects a content sample and returns nil when the
	// layout does not recognize it.
	BuildFileInfo(sample string, opts DiscoveryOptions) *LayoutInfo

	// Verify re-checks every structural invariant of the layout.
	Verify() error
}

// LayoutInfo describes a discovery candidate.
type LayoutInfo struct {
	LayoutID   string `json:"layout_id"`
	LayoutName string `json:"layout_name"`
	LineLength int    `json:"line_length,omitempty"`
	// FieldCount is the number of top-level fields; zero for candidates
	// built without their fields during discovery.
	FieldCount int `json:"field_count,omitempty"`

	// ErrorMessage is set when the sample is recognized but malformed.
	ErrorMessage string `json:"error_message,omitempty"`
}

// DiscoveryOptions tune how strictly candidate layouts judge a sample.
type DiscoveryOptions struct {
	// TrustLineLength lets a layout accept a sample on width alone when its
	// signature is blank (subject to the two toggles below).
	TrustLineLength bool

	AllowBlankVersion    bool
	AllowBlankRecordType bool
}

// DefaultDiscoveryOptions returns the options used when none are supplied.
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{TrustLineLength: true}
}
