// Package archive opens database sources that may be stored compressed.
// Plain, gzip and xz files are supported.
package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/mmdb/internal/validation"
)

// Compression identifies how a source file is stored.
type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	XZ   Compression = "xz"
)

// ErrTooLarge is returned when a source exceeds validation.MaxFileSize once
// decompressed.
var ErrTooLarge = errors.New("source exceeds maximum size")

// magicBytes are the signatures checked when the file name has no known suffix.
var magicBytes = []struct {
	compression Compression
	magic       []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{XZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// DetectCompression decides from the file name, then from the leading bytes.
func DetectCompression(path string, header []byte) Compression {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xz"):
		return XZ
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	}
	for _, sig := range magicBytes {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.compression
		}
	}
	return None
}

// Reader reads a decompressed source file.
type Reader struct {
	io.Reader
	Compression Compression

	file         *os.File
	decompressor io.Closer
}

// Open opens path and wraps it in the matching decompressor.
func Open(path string) (*Reader, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	br := bufio.NewReader(f)
	header, _ := br.Peek(6)
	compression := DetectCompression(path, header)

	var reader io.Reader = br
	var decompressor io.Closer

	switch compression {
	case XZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case Gzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	}

	return &Reader{
		Reader:       &limitReader{r: reader, remaining: validation.MaxFileSize},
		Compression:  compression,
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the reader and any underlying decompressor.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ReadAll reads a whole source file, decompressing as needed.
func ReadAll(path string) ([]byte, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// limitReader fails, rather than truncating, once more than remaining bytes
// have been read.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
