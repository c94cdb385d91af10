package importer

// streaming.go provides the readers that sit between a logger file and the
// TOA5 reader. None of them buffers more than a read's worth of data:
//
//   - BOMSkippingReader: removes a UTF-8 BOM written by Windows tools
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - asciiReader: fails on the first byte outside 7-bit ASCII
//   - sizeLimitReader: fails once more than the allowed bytes were read
//   - CountingReader: tracks bytes read for the import summary
//
// Use WrapInput to apply the transforms for an Encoding in the right order.

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding is the character encoding of logger files.
type Encoding string

const (
	EncodingASCII  Encoding = "ascii"
	EncodingUTF8   Encoding = "utf8"
	EncodingLatin1 Encoding = "latin1"
)

// ParseEncoding parses an encoding name. "utf-8", "iso-8859-1" and
// "latin-1" are accepted as aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascii", "us-ascii":
		return EncodingASCII, nil
	case "utf8", "utf-8":
		return EncodingUTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// ErrEncoding is returned when the input is not valid in the configured
// encoding.
var ErrEncoding = errors.New("encoding error")

// ErrFileTooLarge is returned once an input exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming.
// Multi-byte sequences split across reads are carried over to the next read.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewUTF8Sanitizer returns a sanitizing reader over r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	// Fast path: logger files are almost always plain ASCII.
	if isAllASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, an incomplete trailing sequence is kept in pending.
func (s *UTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && read+size >= len(data) && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			// '?' keeps the rewrite in place; U+FFFD would need three bytes.
			data[write] = '?'
			write++
			read++
		} else {
			copy(data[write:], data[read:read+size])
			write += size
			read += size
		}
	}
	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data start a
// multi-byte sequence that has not been completed yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the length of a UTF-8 sequence starting with b, or 0 for
// a continuation byte.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func isIncompleteRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeLen(data[0]) > len(data)
}

// BOMSkippingReader drops a leading UTF-8 BOM (EF BB BF).
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	bufData    []byte
	bufOffset  int
}

// NewBOMSkippingReader returns a BOM-skipping reader over r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		if n == 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if len(r.bufData) > 0 {
			copied := copy(p, r.bufData[r.bufOffset:])
			r.bufOffset += copied
			if r.bufOffset >= len(r.bufData) {
				r.bufData = nil
			}
			if copied < len(p) && err != io.EOF {
				n, err2 := r.reader.Read(p[copied:])
				return copied + n, err2
			}
			return copied, err
		}
		if err == io.EOF {
			return 0, io.EOF
		}
	}

	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	return r.reader.Read(p)
}

// asciiReader fails on the first byte that is not 7-bit ASCII.
type asciiReader struct {
	reader io.Reader
	offset int64
}

func (a *asciiReader) Read(p []byte) (int, error) {
	n, err := a.reader.Read(p)
	for i, b := range p[:n] {
		if b >= utf8.RuneSelf {
			return i, fmt.Errorf("%w: byte 0x%02X at offset %d is not ASCII", ErrEncoding, b, a.offset+int64(i))
		}
	}
	a.offset += int64(n)
	return n, err
}

// sizeLimitReader fails with ErrFileTooLarge after more than max bytes.
type sizeLimitReader struct {
	reader io.Reader
	max    int64
	read   int64
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := l.reader.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// CountingReader tracks the bytes read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader returns a counting reader. total may be 0.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress in percent, or 0 if the total is
// unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// WrapInput prepares r for the TOA5 reader. The size limit and byte count
// apply to the raw input, before decoding. maxSize <= 0 disables the limit.
func WrapInput(r io.Reader, enc Encoding, maxSize, total int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	var raw io.Reader = counter
	if maxSize > 0 {
		raw = &sizeLimitReader{reader: counter, max: maxSize}
	}
	switch enc {
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().Reader(raw), counter
	case EncodingASCII:
		return &asciiReader{reader: raw}, counter
	default:
		return NewUTF8Sanitizer(NewBOMSkippingReader(raw)), counter
	}
}
