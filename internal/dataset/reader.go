package dataset

// reader.go provides streaming readers that clean raw CSV bytes before the
// csv package sees them:
//
//   - bomSkippingReader: drops a leading UTF-8 byte order mark (Excel exports)
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file
//
// Use wrapForParsing to apply both in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader removes a UTF-8 BOM from the start of the stream.
type bomSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{r: bufio.NewReader(r)}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 with '?' on the fly.
// Bytes that may begin an incomplete multi-byte sequence at the end of a
// read are held back until the next read completes or disproves them, so
// callers must read with buffers of at least utf8.UTFMax bytes (bufio and
// encoding/csv always do).
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	write := 0
	for read := 0; read < n; {
		r, size := utf8.DecodeRune(p[read:n])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(p[read:n]) {
				s.pending = append(s.pending, p[read:n]...)
				break
			}
			p[write] = '?'
			write++
			read++
			continue
		}
		copy(p[write:], p[read:read+size])
		write += size
		read += size
	}

	if write == 0 && err == nil {
		// Only held-back bytes so far; ask the caller to read again.
		return 0, nil
	}
	return write, err
}

// wrapForParsing applies BOM removal then UTF-8 sanitization.
func wrapForParsing(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkippingReader(r))
}
