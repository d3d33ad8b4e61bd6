package logtail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 4096
	defaultMaxLineBytes = 1024 * 1024
)

var (
	// ErrReaderClosed is returned by any read after Close.
	ErrReaderClosed = errors.New("reader closed")
	// ErrNotSeekable is returned by Seek when the source cannot seek.
	ErrNotSeekable = errors.New("source is not seekable")
)

// Line is one decoded line together with the byte span it occupied in the
// source, delimiter included in End.
type Line struct {
	Text      string
	Malformed bool
	Start     uint64
	End       uint64
}

// ReaderOption tunes a LineReader.
type ReaderOption func(*LineReader)

// WithChunkSize sets how many bytes are pulled from the source per read.
func WithChunkSize(n int) ReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithDelimiter replaces the default "\n" line delimiter.
func WithDelimiter(delim []byte) ReaderOption {
	return func(r *LineReader) {
		if len(delim) > 0 {
			r.delim = append([]byte(nil), delim...)
		}
	}
}

// WithMaxLineBytes bounds the length of a single line. Longer spans are cut
// at the last rune boundary and emitted as their own line.
func WithMaxLineBytes(n int) ReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// WithHoldPartial keeps an undelimited remainder at end of stream buffered
// instead of emitting it. Follow reads use this so a line that is still being
// written is picked up whole on the next poll.
func WithHoldPartial() ReaderOption {
	return func(r *LineReader) { r.holdPartial = true }
}

// WithBaseOffset declares the absolute offset of the first byte the source
// will yield, so Line spans and Offset are absolute.
func WithBaseOffset(off uint64) ReaderOption {
	return func(r *LineReader) {
		r.consumed = off
	}
}

// LineReader pulls chunks from a byte source and yields delimited lines.
// It is not safe for concurrent use.
type LineReader struct {
	src         io.Reader
	chunkSize   int
	delim       []byte
	maxLine     int
	holdPartial bool

	buf      []byte
	chunk    []byte
	consumed uint64 // absolute offset of buf[0]
	scan     int    // buf[:scan] holds no delimiter start
	atEOF    bool
	closed   bool
}

// NewLineReader wraps src. The source is read from its current position.
func NewLineReader(src io.Reader, opts ...ReaderOption) *LineReader {
	r := &LineReader{
		src:       src,
		chunkSize: defaultChunkSize,
		delim:     []byte{'\n'},
		maxLine:   defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the next line, or io.EOF once the source is exhausted. A final
// undelimited remainder is returned once unless WithHoldPartial was given.
func (r *LineReader) Next() (Line, error) {
	if r.closed {
		return Line{}, ErrReaderClosed
	}
	for {
		idx := bytes.Index(r.buf[r.scan:], r.delim)
		if idx >= 0 {
			idx += r.scan
		} else {
			r.scan = max(0, len(r.buf)-len(r.delim)+1)
		}
		if idx >= 0 && idx <= r.maxLine {
			return r.take(idx, idx+len(r.delim)), nil
		}
		if idx > r.maxLine || len(r.buf) >= r.maxLine {
			cut := runeBoundary(r.buf, r.maxLine)
			return r.take(cut, cut), nil
		}
		if r.atEOF {
			if len(r.buf) == 0 || r.holdPartial {
				return Line{}, io.EOF
			}
			n := len(r.buf)
			return r.take(n, n), nil
		}
		if err := r.fill(); err != nil {
			return Line{}, err
		}
	}
}

// Offset reports the absolute offset of the first byte not yet returned as
// part of a line. Buffered but undelivered bytes are not counted.
func (r *LineReader) Offset() uint64 {
	return r.consumed
}

// Pending reports how many buffered bytes have not been delivered.
func (r *LineReader) Pending() int {
	return len(r.buf)
}

// Seek repositions the source at the absolute offset and drops buffered data.
func (r *LineReader) Seek(offset uint64) error {
	if r.closed {
		return ErrReaderClosed
	}
	seeker, ok := r.src.(io.Seeker)
	if !ok {
		return ErrNotSeekable
	}
	if _, err := seeker.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("seek log stream: %w", err)
	}
	r.buf = r.buf[:0]
	r.scan = 0
	r.consumed = offset
	r.atEOF = false
	return nil
}

// SkipLines discards up to n lines and reports how many were skipped. It stops
// early without error when the stream ends.
func (r *LineReader) SkipLines(n int) (int, error) {
	skipped := 0
	for skipped < n {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return skipped, nil
			}
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// Close releases the source. It is safe to call more than once.
func (r *LineReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = nil
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *LineReader) fill() error {
	if r.chunk == nil {
		r.chunk = make([]byte, r.chunkSize)
	}
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		r.buf = append(r.buf, r.chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.atEOF = true
			return nil
		}
		return fmt.Errorf("read log stream: %w", err)
	}
	if n == 0 {
		// A reader returning (0, nil) is treated as having nothing more for now.
		r.atEOF = true
	}
	return nil
}

// take emits buf[:textEnd] as a line and drops buf[:spanEnd].
func (r *LineReader) take(textEnd, spanEnd int) Line {
	raw := r.buf[:textEnd]
	if bytes.Equal(r.delim, []byte{'\n'}) {
		raw = bytes.TrimSuffix(raw, []byte{'\r'})
	}
	line := Line{Start: r.consumed, End: r.consumed + uint64(spanEnd)}
	if utf8.Valid(raw) {
		line.Text = string(raw)
	} else {
		line.Text = string(bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError))))
		line.Malformed = true
	}
	r.consumed += uint64(spanEnd)
	r.buf = append(r.buf[:0], r.buf[spanEnd:]...)
	r.scan = 0
	return line
}

// runeBoundary returns the largest cut <= limit that does not split a UTF-8
// sequence. Falls back to limit when no boundary is near.
func runeBoundary(b []byte, limit int) int {
	if limit >= len(b) {
		return len(b)
	}
	for cut := limit; cut > 0 && limit-cut < utf8.UTFMax; cut-- {
		if utf8.RuneStart(b[cut]) {
			return cut
		}
	}
	return limit
}
