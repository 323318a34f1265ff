// lineio.go: Line oriented file access for positional records
//
// Files are read as a sequence of lines with their terminators removed.
// Gzip input is detected from its magic bytes; output is gzip compressed when
// the target path ends in .gz. Both \n and \r\n terminators are accepted.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package lineio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/agilira/go-errors"
)

// Error codes for line I/O
const (
	ErrCodeOpen  = "LINEIO_OPEN"
	ErrCodeRead  = "LINEIO_READ"
	ErrCodeWrite = "LINEIO_WRITE"
)

// MaxLineSize bounds the length of a single line. The widest NAACCR record
// is 24194 characters; the limit leaves room for multi-byte encodings.
const MaxLineSize = 1024 * 1024

var gzipMagic = []byte{0x1f, 0x8b}

// Reader yields the lines of a plain or gzip compressed stream.
type Reader struct {
	scanner    *bufio.Scanner
	closers    []io.Closer
	line       string
	lineNumber int
}

// Open opens path for line reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) // #nosec G304 -- caller selected input file
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeOpen, "failed to open input file").WithContext("path", path)
	}
	r, err := newReader(f, f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, ErrCodeOpen, "failed to open input file").WithContext("path", path)
	}
	return r, nil
}

// NewReader reads lines from src, transparently decompressing gzip input.
func NewReader(src io.Reader) (*Reader, error) {
	return newReader(src, nil)
}

func newReader(src io.Reader, owner io.Closer) (*Reader, error) {
	br := bufio.NewReader(src)
	r := &Reader{}
	if owner != nil {
		r.closers = append(r.closers, owner)
	}

	var in io.Reader = br
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeRead, "invalid gzip stream")
		}
		r.closers = append([]io.Closer{gz}, r.closers...)
		in = gz
	}

	r.scanner = bufio.NewScanner(in)
	r.scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return r, nil
}

// Next advances to the next line. It returns false at the end of input or
// on error; check Err afterwards.
func (r *Reader) Next() bool {
	if !r.scanner.Scan() {
		return false
	}
	r.lineNumber++
	r.line = strings.TrimSuffix(r.scanner.Text(), "\r")
	return true
}

// Line returns the current line.
func (r *Reader) Line() string { return r.line }

// LineNumber returns the 1-based number of the current line.
func (r *Reader) LineNumber() int { return r.lineNumber }

// Err returns the first read error.
func (r *Reader) Err() error {
	if err := r.scanner.Err(); err != nil {
		return errors.Wrap(err, ErrCodeRead, "failed to read line").WithContext("line_number", r.lineNumber+1)
	}
	return nil
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// ReadLines reads every line of path.
func ReadLines(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var lines []string
	for r.Next() {
		lines = append(lines, r.Line())
	}
	return lines, r.Err()
}

// ReadSample returns up to n lines from the start of path.
func ReadSample(path string, n int) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	lines := make([]string, 0, n)
	for len(lines) < n && r.Next() {
		lines = append(lines, r.Line())
	}
	return lines, r.Err()
}

// Writer writes lines with a fixed separator.
type Writer struct {
	buf     *bufio.Writer
	closers []io.Closer
	sep     string
	lines   int
}

// Create creates path for line writing. An empty sep means "\n".
func Create(path, sep string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 -- caller selected output file
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeOpen, "failed to create output file").WithContext("path", path)
	}
	var dst io.Writer = f
	closers := []io.Closer{f}
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz := gzip.NewWriter(f)
		dst = gz
		closers = []io.Closer{gz, f}
	}
	w := NewWriter(dst, sep)
	w.closers = closers
	return w, nil
}

// NewWriter writes lines to dst. An empty sep means "\n".
func NewWriter(dst io.Writer, sep string) *Writer {
	if sep == "" {
		sep = "\n"
	}
	return &Writer{buf: bufio.NewWriter(dst), sep: sep}
}

// WriteLine writes line followed by the separator.
func (w *Writer) WriteLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return errors.Wrap(err, ErrCodeWrite, "failed to write line")
	}
	if _, err := w.buf.WriteString(w.sep); err != nil {
		return errors.Wrap(err, ErrCodeWrite, "failed to write line separator")
	}
	w.lines++
	return nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int { return w.lines }

// Close flushes buffered output and closes the underlying stream.
func (w *Writer) Close() error {
	first := w.buf.Flush()
	if first != nil {
		first = errors.Wrap(first, ErrCodeWrite, "failed to flush output")
	}
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrap(err, ErrCodeWrite, "failed to close output")
		}
	}
	w.closers = nil
	return first
}
