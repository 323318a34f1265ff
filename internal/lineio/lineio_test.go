// lineio_test.go: Tests for line oriented file access
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package lineio

import (
	"bytes"
	"compress/gzip"
	goerrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_PlainAndCRLF(t *testing.T) {
	r, err := NewReader(strings.NewReader("first\r\nsecond\n\nlast"))
	require.NoError(t, err)

	var lines []string
	for r.Next() {
		lines = append(lines, r.Line())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"first", "second", "", "last"}, lines)
	assert.Equal(t, 4, r.LineNumber())
	assert.NoError(t, r.Close())
}

func TestReader_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("A  180\nA  180\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "data.txt.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A  180", "A  180"}, lines)
}

func TestReader_CorruptGzip(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0x1f, 0x8b, 0x00}))
	require.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeRead))
}

func TestReadSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n3\n4\n"), 0o600))

	lines, err := ReadSample(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, lines)

	lines, err = ReadSample(path, 10)
	require.NoError(t, err)
	assert.Len(t, lines, 4)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeOpen))
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "")
	require.NoError(t, w.WriteLine("abc"))
	require.NoError(t, w.WriteLine(""))
	require.NoError(t, w.Close())

	assert.Equal(t, "abc\n\n", buf.String())
	assert.Equal(t, 2, w.Lines())
}

func TestWriter_GzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt.gz")
	w, err := Create(path, "\r\n")
	require.NoError(t, err)
	require.NoError(t, w.WriteLine("one"))
	require.NoError(t, w.WriteLine("two"))
	require.NoError(t, w.Close())

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func hasCode(err error, code string) bool {
	var coder errors.ErrorCoder
	return goerrors.As(err, &coder) && string(coder.ErrorCode()) == code
}
