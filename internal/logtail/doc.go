// Package logtail reads container log streams incrementally.
//
// # Overview
//
// Container logs are append-only byte streams that can grow without bound.
// This package reads them in bounded pieces: a window near the end when a log
// view opens, whatever was appended since the last poll, and older history on
// demand. Nothing here ever loads a whole stream into memory.
//
// # Core Types
//
//  1. LineReader: chunked, UTF-8 safe delimiter splitting over any io.Reader
//  2. Bookmark: per-stream forward and backward offsets plus id counters
//  3. Window: an ordered run of identified lines with append and prepend caps
//  4. ReadTail, ReadForward, ReadBackward: the three range reads
//
// # Line Decoding
//
// LineReader pulls fixed-size chunks and splits on a delimiter ("\n" by
// default). A multi-byte character split across two chunks is reassembled
// before decoding. A line that is not valid UTF-8 is delivered with U+FFFD
// substituted and Malformed set; decoding never aborts the stream.
//
// Every Line carries the absolute byte span it occupied, which is what lets
// callers resume a read exactly where the previous one stopped:
//
//	r := logtail.NewLineReader(f, logtail.WithBaseOffset(off), logtail.WithHoldPartial())
//	for {
//		line, err := r.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
//	next := r.Offset()
//
// # Range Reads
//
// ReadTail seeks to maxLines*bytesPerLine bytes before the end, discards the
// first (possibly cut) line, and keeps the last maxLines lines in a ring. When
// the window holds too few lines it doubles, up to MaxBackwardBytes.
//
// ReadForward reads from a bookmark to the current end. A trailing line that
// has no delimiter yet is left unread so the next poll sees it whole. A stream
// shorter than the bookmark is treated as truncated and re-read from 0.
//
// ReadBackward reads a byte budget before the oldest known offset. Its Start is
// the start of the earliest line it kept, so the bytes of a discarded partial
// line are picked up by the next history load.
//
// # Line Identity
//
// Bookmark hands out forward ids 0, 1, 2, ... for appended lines and negative
// ids for history. A history batch of k lines takes the k ids just below the
// previous batch, oldest first, so ordering a window by id always matches
// display order. Ids are never reused, even after a window drops lines.
//
// # Concurrency
//
// None of the types here are safe for concurrent use. The session package
// serialises access per stream.
package logtail
