package core

import (
	"bufio"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// =============================================================================
// Input Helpers - Shared file access for ingestors
// =============================================================================

// maxLineSize bounds a single input line. Tool outputs occasionally carry
// very long lines (base64 blobs, long DNs), so the default bufio limit is
// too small.
const maxLineSize = 4 * 1024 * 1024

// OpenInput opens path for reading, transparently decompressing .gz and
// .zst files. The caller must close the returned reader.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReadCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReadCloser{
			Reader: zr,
			closers: []func() error{
				func() error { zr.Close(); return nil },
				f.Close,
			},
		}, nil
	default:
		return f, nil
	}
}

type wrappedReadCloser struct {
	io.Reader
	closers []func() error
}

func (w *wrappedReadCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SniffPrefix returns up to n leading bytes of the file at path as a
// string. It returns "" when the file cannot be read; content-based
// format detection treats that the same as a non-match.
func SniffPrefix(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ""
	}
	return string(buf[:read])
}

// Lines yields the lines of r one at a time with trailing newlines
// stripped. Blank lines are skipped. Iteration stops early if the
// consumer breaks out of the loop.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r\n")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

// StripCompressionExt removes a trailing .gz or .zst extension so format
// detection can look at the underlying file type.
func StripCompressionExt(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	path = strings.TrimSuffix(path, ".zst")
	return path
}
