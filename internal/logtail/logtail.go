package logtail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultTailBytesPerLine sizes the first "near end of file" window.
	DefaultTailBytesPerLine = 120
	// DefaultOlderBytesPerLine sizes the byte budget of a history load.
	DefaultOlderBytesPerLine = 60
	// MaxBackwardBytes bounds how far a single read may grow its window while
	// looking for a complete line.
	MaxBackwardBytes = 1024 * 1024
)

// Chunk is the result of a range read: the decoded lines and the byte span
// [Start, End) they cover. Start is the start of the first returned line.
type Chunk struct {
	Lines     []Line
	Start     uint64
	End       uint64
	Skipped   int  // lines consumed but not returned because of maxLines
	Truncated bool // the stream shrank below the requested offset
}

// ReadForward reads from offset from to the current end of src. A trailing
// line without delimiter is left unread so the next call sees it whole. When
// maxLines > 0 only the last maxLines lines are returned but End still covers
// everything consumed. If the stream is shorter than from it is assumed to
// have been truncated and is re-read from the beginning.
func ReadForward(ctx context.Context, src io.ReadSeeker, from uint64, maxLines int, opts ...ReaderOption) (Chunk, error) {
	size, err := streamSize(src)
	if err != nil {
		return Chunk{Start: from, End: from}, err
	}
	chunk := Chunk{Start: from, End: from}
	if from > size {
		from = 0
		chunk.Truncated = true
		chunk.Start, chunk.End = 0, 0
	}
	if from == size {
		return chunk, nil
	}
	if _, err := src.Seek(int64(from), io.SeekStart); err != nil {
		return chunk, fmt.Errorf("seek log stream: %w", err)
	}

	reader := NewLineReader(src, append(opts, WithBaseOffset(from), WithHoldPartial())...)
	lines, total, err := collect(ctx, reader, false, maxLines)
	if err != nil {
		return chunk, err
	}
	chunk.Lines = lines
	chunk.Skipped = total - len(lines)
	chunk.End = reader.Offset()
	if len(lines) > 0 {
		chunk.Start = lines[0].Start
	}
	return chunk, nil
}

// ReadBackward recovers up to maxLines lines that end at offset to, reading at
// most budget bytes before it. The first line of a read that does not start at
// offset 0 may be cut and is discarded; Start reports where the earliest kept
// line begins so nothing between Start and to is lost. When the budget holds
// no complete line it is doubled up to MaxBackwardBytes, which also caps
// the starting budget.
func ReadBackward(ctx context.Context, src io.ReadSeeker, to, budget uint64, maxLines int, opts ...ReaderOption) (Chunk, error) {
	chunk := Chunk{Start: to, End: to}
	if to == 0 {
		return chunk, nil
	}
	if budget == 0 {
		budget = DefaultOlderBytesPerLine
	}
	budget = min(budget, MaxBackwardBytes)
	// keepCut is set only once a read at the largest budget found no whole
	// line; the cut line is then returned as is.
	keepCut := false
	for {
		start := to - min(to, budget)
		if _, err := src.Seek(int64(start), io.SeekStart); err != nil {
			return chunk, fmt.Errorf("seek log stream: %w", err)
		}
		dropFirst := start > 0 && !keepCut
		reader := NewLineReader(io.LimitReader(src, int64(to-start)), append(opts, WithBaseOffset(start))...)
		lines, total, err := collect(ctx, reader, dropFirst, maxLines)
		if err != nil {
			return chunk, err
		}
		if len(lines) == 0 && dropFirst {
			if budget >= MaxBackwardBytes {
				keepCut = true
			} else {
				budget = min(budget*2, MaxBackwardBytes)
			}
			continue
		}
		chunk.Lines = lines
		chunk.Skipped = total - len(lines)
		if len(lines) > 0 {
			chunk.Start = lines[0].Start
		} else {
			chunk.Start = start
		}
		return chunk, nil
	}
}

// ReadTail returns the last maxLines lines of src, reading only a window near
// the end of the stream. The window starts at maxLines*bytesPerLine bytes and
// grows while it yields fewer than maxLines complete lines. End leaves any
// undelimited trailing line for the next forward read.
func ReadTail(ctx context.Context, src io.ReadSeeker, maxLines int, bytesPerLine uint64, opts ...ReaderOption) (Chunk, error) {
	size, err := streamSize(src)
	if err != nil {
		return Chunk{}, err
	}
	if maxLines <= 0 || size == 0 {
		return Chunk{Start: size, End: size}, nil
	}
	if bytesPerLine == 0 {
		bytesPerLine = DefaultTailBytesPerLine
	}
	window := uint64(maxLines) * bytesPerLine
	for {
		start := size - min(size, window)
		if _, err := src.Seek(int64(start), io.SeekStart); err != nil {
			return Chunk{}, fmt.Errorf("seek log stream: %w", err)
		}
		reader := NewLineReader(src, append(opts, WithBaseOffset(start), WithHoldPartial())...)
		lines, total, err := collect(ctx, reader, start > 0, maxLines)
		if err != nil {
			return Chunk{}, err
		}
		if total < maxLines && start > 0 && window < MaxBackwardBytes {
			window *= 2
			continue
		}
		chunk := Chunk{Lines: lines, Skipped: total - len(lines), End: reader.Offset()}
		if len(lines) > 0 {
			chunk.Start = lines[0].Start
		} else {
			chunk.Start = chunk.End
		}
		return chunk, nil
	}
}

// ReadFile returns at most maxLines from the end of the file at path.
func ReadFile(ctx context.Context, path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	chunk, err := ReadTail(ctx, file, maxLines, DefaultTailBytesPerLine)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	lines := make([]string, len(chunk.Lines))
	for i, l := range chunk.Lines {
		lines[i] = l.Text
	}
	return lines, nil
}

// collect drains reader, optionally discarding the first line, and keeps the
// last maxLines lines in a ring. It returns the lines in order plus how many
// lines were seen after the optional discard.
func collect(ctx context.Context, reader *LineReader, dropFirst bool, maxLines int) ([]Line, int, error) {
	var all []Line
	var ring []Line
	if maxLines > 0 {
		ring = make([]Line, maxLines)
	}
	count := 0
	idx := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if dropFirst {
			dropFirst = false
			continue
		}
		count++
		if ring == nil {
			all = append(all, line)
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % maxLines
	}
	if ring == nil {
		return all, count, nil
	}

	kept := min(count, maxLines)
	lines := make([]Line, kept)
	if count >= maxLines {
		for i := 0; i < kept; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:kept])
	}
	return lines, count, nil
}

func streamSize(src io.Seeker) (uint64, error) {
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek log stream: %w", err)
	}
	return uint64(end), nil
}
