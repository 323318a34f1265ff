// naaccr_test.go: Tests for the internal NAACCR catalog
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasField(l Layout, name string) bool {
	_, ok := l.FieldByName(name)
	return ok
}

func TestNAACCRCatalog(t *testing.T) {
	r := NewRegistry()

	ids := r.InternalIDs()
	require.Len(t, ids, len(NAACCRVersions)*len(NAACCRRecordTypes))
	assert.Equal(t, "naaccr-25-abstract", ids[0])
	assert.Equal(t, "naaccr-14-incidence", ids[len(ids)-1])

	for _, rt := range NAACCRRecordTypes {
		l, err := r.Resolve(NAACCRLayoutID(180, rt))
		require.NoError(t, err, rt.Suffix)
		pl := l.(*PositionalLayout)
		assert.Equal(t, rt.LegacyWidth, pl.LineLength())
		assert.NoError(t, pl.Verify())
		for _, f := range pl.AllFieldsFlattened() {
			assert.LessOrEqual(t, f.End(), rt.LegacyWidth, f.Name())
		}
	}
}

func TestNAACCRLayout_VersionBoundedItems(t *testing.T) {
	abstract := NAACCRRecordTypes[0]

	v16, err := NewNAACCRLayout(160, abstract, true)
	require.NoError(t, err)
	v18, err := NewNAACCRLayout(180, abstract, true)
	require.NoError(t, err)
	v23, err := NewNAACCRLayout(230, abstract, true)
	require.NoError(t, err)

	assert.True(t, hasField(v16, "grade"))
	assert.False(t, hasField(v16, "gradeClinical"))
	assert.True(t, hasField(v16, "csSiteSpecificFactor1"))

	assert.False(t, hasField(v18, "grade"))
	gradeClinical, ok := v18.FieldByName("gradeClinical")
	require.True(t, ok)
	assert.Equal(t, 3843, gradeClinical.ItemNumber())
	assert.True(t, hasField(v18, "gradePostTherapy"))
	assert.False(t, hasField(v18, "csSiteSpecificFactor1"))

	assert.False(t, hasField(v23, "gradePostTherapy"))
	assert.True(t, hasField(v23, "gradePostTherapyClin"))
}

func TestNAACCRLayout_RecordTypesKeepFittingItems(t *testing.T) {
	r := NewRegistry()

	incidence, err := r.Resolve("naaccr-18-incidence")
	require.NoError(t, err)
	assert.True(t, hasField(incidence, "stateRequestorItems"))
	assert.False(t, hasField(incidence, "nameLast"))

	confidential, err := r.Resolve("naaccr-18-confidential")
	require.NoError(t, err)
	assert.True(t, hasField(confidential, "nameLast"))
	assert.False(t, hasField(confidential, "textRemarks"))

	abstract, err := r.Resolve("naaccr-18-abstract")
	require.NoError(t, err)
	assert.True(t, hasField(abstract, "textRemarks"))
	assert.False(t, hasField(abstract, "rxTextOther"))

	modified, err := r.Resolve("naaccr-18-modified")
	require.NoError(t, err)
	assert.Equal(t, len(abstract.Fields()), len(modified.Fields()))
	assert.True(t, hasField(modified, "dateCaseLastChanged"))
	assert.False(t, hasField(modified, "rxTextOther"))

	abstract21, err := r.Resolve("naaccr-21-abstract")
	require.NoError(t, err)
	assert.True(t, hasField(abstract21, "rxTextOther"))
}

func TestNAACCRRecordType_LineLength(t *testing.T) {
	tests := []struct {
		rt      NAACCRRecordType
		version int
		want    int
	}{
		{NAACCRRecordTypes[0], 140, 22824},
		{NAACCRRecordTypes[0], 180, 22824},
		{NAACCRRecordTypes[0], 210, 24194},
		{NAACCRRecordTypes[1], 180, 22824},
		{NAACCRRecordTypes[1], 250, 24194},
		{NAACCRRecordTypes[2], 160, 5564},
		{NAACCRRecordTypes[2], 230, 6154},
		{NAACCRRecordTypes[3], 150, 3339},
		{NAACCRRecordTypes[3], 240, 4048},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%d", tt.rt.Suffix, tt.version), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rt.LineLength(tt.version))
		})
	}
}

func TestNAACCRLayout_LegacyColumns(t *testing.T) {
	v18, err := NewNAACCRLayout(180, NAACCRRecordTypes[0], true)
	require.NoError(t, err)
	v21, err := NewNAACCRLayout(210, NAACCRRecordTypes[0], true)
	require.NoError(t, err)

	columns := func(l *PositionalLayout, name string) [2]int {
		f, ok := l.FieldByName(name)
		require.True(t, ok, name)
		return [2]int{f.Start(), f.End()}
	}
	assert.Equal(t, [2]int{2340, 3339}, columns(v18, "stateRequestorItems"))
	assert.Equal(t, [2]int{3340, 3379}, columns(v18, "nameLast"))
	assert.Equal(t, [2]int{5565, 6564}, columns(v18, "textDxProcPe"))
	assert.Equal(t, [2]int{3040, 4039}, columns(v21, "stateRequestorItems"))
	assert.Equal(t, [2]int{4049, 4088}, columns(v21, "nameLast"))
	assert.Equal(t, [2]int{6155, 7154}, columns(v21, "textDxProcPe"))
	assert.Equal(t, columns(v18, "sex"), columns(v21, "sex"))
}

func TestNAACCRDiscovery_VersionWidths(t *testing.T) {
	r := NewRegistry()

	incidence18, err := NewNAACCRLayout(180, NAACCRRecordTypes[3], true)
	require.NoError(t, err)
	line, err := incidence18.Encode(Record{"patientIdNumber": "00000001"}, EncodeOptions{})
	require.NoError(t, err)
	require.Len(t, line, 3339)

	results := r.Discover(line, DefaultDiscoveryOptions())
	require.NotEmpty(t, results)
	assert.Equal(t, "naaccr-18-incidence", results[0].LayoutID)
	assert.Equal(t, 3339, results[0].LineLength)
	assert.Empty(t, results[0].ErrorMessage)

	abstract21, err := NewNAACCRLayout(210, NAACCRRecordTypes[0], true)
	require.NoError(t, err)
	line, err = abstract21.Encode(Record{"patientIdNumber": "00000002"}, EncodeOptions{})
	require.NoError(t, err)
	require.Len(t, line, 24194)

	results = r.Discover(line, DefaultDiscoveryOptions())
	require.NotEmpty(t, results)
	assert.Equal(t, "naaccr-21-abstract", results[0].LayoutID)
	assert.Equal(t, 24194, results[0].LineLength)
	assert.Empty(t, results[0].ErrorMessage)
}

func TestNAACCRLayout_WithoutFields(t *testing.T) {
	l, err := NewNAACCRLayout(180, NAACCRRecordTypes[3], false)
	require.NoError(t, err)
	assert.Empty(t, l.Fields())
	assert.Equal(t, 3339, l.LineLength())
	assert.Equal(t, "NAACCR 18 Incidence", l.Name())
}

func TestNAACCRLayout_EncodeAndDiscover(t *testing.T) {
	r := NewRegistry()

	l, err := r.Resolve("naaccr-18-abstract")
	require.NoError(t, err)
	pl := l.(*PositionalLayout)

	line, err := pl.Encode(Record{
		"recordType":       "Z",
		"patientIdNumber":  "00000042",
		"ageAtDiagnosis":   "7",
		"dateOfBirthYear":  "1950",
		"dateOfBirthMonth": "01",
		"dateOfBirthDay":   "15",
		"nameLast":         "DOE",
	}, EncodeOptions{})
	require.NoError(t, err)

	assert.Len(t, line, 22824)
	assert.Equal(t, "A", line[0:1])
	assert.Equal(t, "180", line[16:19])
	assert.Equal(t, "007", line[133:136])
	assert.Equal(t, "19500115", line[136:144])

	rec, err := pl.Decode(line, 1, DecodeOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, "A", rec["recordType"])
	assert.Equal(t, "19500115", rec["dateOfBirth"])
	assert.Equal(t, "01", rec["dateOfBirthMonth"])
	assert.Equal(t, "DOE", rec["nameLast"])
	assert.Equal(t, "007", rec["ageAtDiagnosis"])

	results := r.Discover(line, DefaultDiscoveryOptions())
	require.NotEmpty(t, results)
	assert.Equal(t, "naaccr-18-abstract", results[0].LayoutID)
	assert.Empty(t, results[0].ErrorMessage)

	// A truncated line is still recognized by its signature.
	results = r.Discover(line[:500], DefaultDiscoveryOptions())
	require.NotEmpty(t, results)
	assert.Equal(t, "naaccr-18-abstract", results[0].LayoutID)
	assert.Contains(t, results[0].ErrorMessage, "500")
}

func TestNAACCRLayout_BlankVersionDiscovery(t *testing.T) {
	r := NewRegistry()
	line := "I" + strings.Repeat(" ", 4047)

	assert.Empty(t, r.Discover(line, DefaultDiscoveryOptions()))

	results := r.Discover(line, DiscoveryOptions{AllowBlankVersion: true})
	require.Len(t, results, 5)
	assert.Equal(t, "naaccr-25-incidence", results[0].LayoutID)
	assert.Equal(t, "naaccr-21-incidence", results[4].LayoutID)

	legacy := "I" + strings.Repeat(" ", 3338)
	results = r.Discover(legacy, DiscoveryOptions{AllowBlankVersion: true})
	require.Len(t, results, 4)
	assert.Equal(t, "naaccr-18-incidence", results[0].LayoutID)
	assert.Equal(t, "naaccr-14-incidence", results[3].LayoutID)
}

func TestNAACCRAliases(t *testing.T) {
	r := NewRegistry()

	short, err := r.Resolve("naaccr-18")
	require.NoError(t, err)
	assert.Equal(t, "naaccr-18-incidence", short.ID())

	long, err := r.Resolve("naaccr-180-abstract")
	require.NoError(t, err)
	canonical, err := r.Resolve("naaccr-18-abstract")
	require.NoError(t, err)
	assert.Same(t, canonical, long)
}

func TestNAACCRDocs(t *testing.T) {
	l, err := NewRegistry().Resolve("naaccr-18-abstract")
	require.NoError(t, err)

	doc, ok := l.FieldDoc("sex")
	assert.True(t, ok)
	assert.NotEmpty(t, doc)

	doc, ok = l.FieldDocByItemNumber(220)
	assert.True(t, ok)
	assert.NotEmpty(t, doc)

	_, ok = l.FieldDoc("registryType")
	assert.False(t, ok)
	assert.Contains(t, l.FieldDocDefaultCSSStyle(), "font-family")
}
