// naaccr.go: Internal NAACCR catalog
//
// The NAACCR layouts are built from an embedded item table. Every supported
// version comes in four record types that share the same columns and differ
// only in width, so a record type keeps the items that fit in its line.
// Item columns are those of version 210 onward; versions up to 180 have
// narrower records and move the trailing item blocks left.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

//go:embed naaccr_items.yaml
var naaccrItemsYAML []byte

// NAACCRVersions lists the supported record versions, newest first.
var NAACCRVersions = []int{250, 240, 230, 220, 210, 180, 160, 150, 140}

// naaccrLegacyUntil is the last record version using the narrower record types.
const naaccrLegacyUntil = 180

// NAACCRRecordType is one of the four NAACCR record shapes.
type NAACCRRecordType struct {
	Code   string
	Suffix string
	Label  string

	// Width applies from version 210 on, LegacyWidth up to version 180.
	Width       int
	LegacyWidth int
}

// LineLength returns the record width for the given version.
func (rt NAACCRRecordType) LineLength(version int) int {
	if version <= naaccrLegacyUntil {
		return rt.LegacyWidth
	}
	return rt.Width
}

// NAACCRRecordTypes lists the record types in catalog order.
var NAACCRRecordTypes = []NAACCRRecordType{
	{Code: "A", Suffix: "abstract", Label: "Abstract", Width: 24194, LegacyWidth: 22824},
	{Code: "M", Suffix: "modified", Label: "Modified", Width: 24194, LegacyWidth: 22824},
	{Code: "C", Suffix: "confidential", Label: "Confidential", Width: 6154, LegacyWidth: 5564},
	{Code: "I", Suffix: "incidence", Label: "Incidence", Width: 4048, LegacyWidth: 3339},
}

const naaccrCSS = "body { font-family: sans-serif; font-size: 13px; } h1 { font-size: 16px; }"

var (
	recordTypeMarker = Marker{Start: 1, End: 1}
	versionMarker    = Marker{Start: 17, End: 19}
)

type naaccrItem struct {
	FieldDefinition `yaml:",inline"`
	Since           int `yaml:"since,omitempty"`
	Until           int `yaml:"until,omitempty"`
}

func (it naaccrItem) appliesTo(version int) bool {
	return (it.Since == 0 || version >= it.Since) && (it.Until == 0 || version <= it.Until)
}

// naaccrShift moves items starting at or after From left by Shift columns
// in legacy versions.
type naaccrShift struct {
	From  int `yaml:"from"`
	Shift int `yaml:"shift"`
}

// legacyOffset returns how far an item starting at start moves in version.
// Shifts are sorted by From; the last one reached wins.
func legacyOffset(shifts []naaccrShift, version, start int) int {
	if version > naaccrLegacyUntil {
		return 0
	}
	offset := 0
	for _, s := range shifts {
		if start >= s.From {
			offset = s.Shift
		}
	}
	return offset
}

func shiftFieldSpec(fs *FieldSpec, offset int) {
	fs.Start -= offset
	fs.End -= offset
	for i := range fs.SubFields {
		shiftFieldSpec(&fs.SubFields[i], offset)
	}
}

var (
	naaccrItemsOnce sync.Once
	naaccrItems     []naaccrItem
	naaccrShifts    []naaccrShift
	naaccrDocs      *StaticDocs
	naaccrItemsErr  error
)

func loadNAACCRItems() ([]naaccrItem, *StaticDocs, error) {
	naaccrItemsOnce.Do(func() {
		var table struct {
			LegacyShifts []naaccrShift `yaml:"legacy-shifts"`
			Items        []naaccrItem  `yaml:"items"`
		}
		if err := yaml.Unmarshal(naaccrItemsYAML, &table); err != nil {
			naaccrItemsErr = errors.Wrap(err, ErrCodeInvalidDefinition, "failed to parse embedded NAACCR item table")
			return
		}
		naaccrItems = table.Items
		naaccrShifts = table.LegacyShifts
		sort.Slice(naaccrShifts, func(i, j int) bool { return naaccrShifts[i].From < naaccrShifts[j].From })
		naaccrDocs = &StaticDocs{Docs: make(map[string]string), CSS: naaccrCSS}
		for _, it := range naaccrItems {
			if it.Doc != "" {
				naaccrDocs.Docs[it.Name] = it.Doc
			}
		}
	})
	return naaccrItems, naaccrDocs, naaccrItemsErr
}

// NAACCRLayoutID returns the catalog id of a NAACCR layout, for example
// naaccr-18-abstract for version 180.
func NAACCRLayoutID(version int, rt NAACCRRecordType) string {
	return fmt.Sprintf("naaccr-%d-%s", version/10, rt.Suffix)
}

// NewNAACCRLayout builds the layout of one version and record type. Without
// loadFields only the identity, width and signature are set.
func NewNAACCRLayout(version int, rt NAACCRRecordType, loadFields bool) (*PositionalLayout, error) {
	versionStr := strconv.Itoa(version)
	width := rt.LineLength(version)

	rtMarker := recordTypeMarker
	rtMarker.Value = rt.Code
	vMarker := versionMarker
	vMarker.Value = versionStr

	spec := LayoutSpec{
		ID:          NAACCRLayoutID(version, rt),
		Name:        fmt.Sprintf("NAACCR %d %s", version/10, rt.Label),
		Version:     versionStr,
		Description: fmt.Sprintf("NAACCR version %d %s record (%d characters)", version, rt.Label, width),
		LineLength:  width,
		Signature:   &Signature{RecordType: &rtMarker, Version: &vMarker},
		Cleaner: func(f *Field, value string) string {
			switch f.Name() {
			case "recordType":
				return rt.Code
			case "naaccrRecordVersion":
				return versionStr
			}
			return value
		},
	}

	if loadFields {
		items, docs, err := loadNAACCRItems()
		if err != nil {
			return nil, err
		}
		spec.Docs = docs
		for _, it := range items {
			if !it.appliesTo(version) {
				continue
			}
			fs, err := it.FieldSpec()
			if err != nil {
				return nil, errors.Wrap(err, codeOf(err), fmt.Sprintf("NAACCR item %s", it.Name))
			}
			shiftFieldSpec(&fs, legacyOffset(naaccrShifts, version, fs.Start))
			if fs.End > width {
				continue
			}
			spec.Fields = append(spec.Fields, fs)
		}
	}

	return NewPositionalLayout(spec)
}

// naaccrCatalog returns the internal catalog, newest version first.
func naaccrCatalog() []InternalLayout {
	entries := make([]InternalLayout, 0, len(NAACCRVersions)*len(NAACCRRecordTypes))
	for _, version := range NAACCRVersions {
		for _, rt := range NAACCRRecordTypes {
			entries = append(entries, InternalLayout{
				ID: NAACCRLayoutID(version, rt),
				Build: func(loadFields bool) (Layout, error) {
					l, err := NewNAACCRLayout(version, rt, loadFields)
					if err != nil {
						return nil, err
					}
					return l, nil
				},
			})
		}
	}
	return entries
}

// naaccrAliases maps naaccr-18 to the incidence layout and the long version
// form naaccr-180-abstract to naaccr-18-abstract.
func naaccrAliases() map[string]string {
	aliases := make(map[string]string)
	for _, version := range NAACCRVersions {
		for _, rt := range NAACCRRecordTypes {
			aliases[fmt.Sprintf("naaccr-%d-%s", version, rt.Suffix)] = NAACCRLayoutID(version, rt)
		}
		aliases[fmt.Sprintf("naaccr-%d", version/10)] = fmt.Sprintf("naaccr-%d-incidence", version/10)
	}
	return aliases
}
