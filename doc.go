// Package layout describes fixed-width (positional) record formats and
// converts between their text lines and field-keyed records.
//
// A layout is an ordered set of fields, each owning a span of 1-based,
// inclusive columns. Layouts read lines into records, write records back
// into lines of the exact layout width, verify their own consistency and
// recognize lines that were written with them.
//
// # Fields and Layouts
//
// Fields are built from a FieldSpec and are immutable. A field may group
// child fields, for example a date split into year, month and day:
//
//	l, err := layout.NewPositionalLayout(layout.LayoutSpec{
//		ID:         "my-extract",
//		Name:       "My Extract",
//		LineLength: 20,
//		Fields: []layout.FieldSpec{
//			{Name: "type", ShortLabel: "Type", LongLabel: "Record Type", Start: 1, End: 1},
//			{Name: "count", ShortLabel: "Cnt", LongLabel: "Count", Start: 2, End: 6,
//				Align: layout.AlignRight, PadChar: '0'},
//			{Name: "period", ShortLabel: "Period", LongLabel: "Period", Start: 8, End: 13,
//				SubFields: []layout.FieldSpec{
//					{Name: "periodYear", ShortLabel: "Year", LongLabel: "Period Year", Start: 8, End: 11},
//					{Name: "periodMonth", ShortLabel: "Month", LongLabel: "Period Month", Start: 12, End: 13},
//				}},
//		},
//	})
//
//	line, err := l.Encode(layout.Record{"type": "H", "count": "12"}, layout.EncodeOptions{})
//	rec, err := l.Decode(line, 1, layout.DecodeOptions{Strict: true})
//
// Lenient decoding accepts short lines and skips the fields they cannot
// hold; strict decoding reports a format violation instead. Encoding fails
// with a value error when a value is wider than its field.
//
// # Registry and Discovery
//
// A Registry holds the internal NAACCR catalog, built lazily on first
// Resolve, plus layouts registered by the caller. Discover proposes the
// layouts able to read a sample line, registered layouts first and the
// newest internal versions next:
//
//	r := layout.NewRegistry()
//	for _, info := range r.Discover(firstLine, layout.DefaultDiscoveryOptions()) {
//		fmt.Println(info.LayoutID, info.ErrorMessage)
//	}
//
// # Declarative Definitions
//
// Layouts can be described in YAML and may extend any resolvable layout:
//
//	id: state-18
//	name: State NAACCR 18
//	extends: naaccr-18-incidence
//	fields:
//	  - {name: stateRequestorItems, start: 2340, end: 2349, trim: false}
//	  - {name: stateCode, start: 2350, end: 2351}
//
// LoadDefinitionsDir registers a whole directory once; WatchDefinitions
// keeps the registry in step with it.
//
// # Errors
//
// Every error carries a go-errors code. IsConfigurationError,
// IsFormatViolation, IsValueError and IsLookupMiss classify them.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package layout
