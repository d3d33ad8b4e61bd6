package logtail

// Bookmark tracks how much of one stream has been consumed and hands out line
// ids.
//
// Forward ids count up from 0 and are assigned to tail-appended lines.
// Backward ids count down from -1 and are assigned to lines recovered by
// history loads, so every line prepended later sorts before every line already
// in the window. Ids are never reused.
type Bookmark struct {
	Stream int
	// Forward is the next unread byte for tail reads.
	Forward uint64
	// Backward is the oldest byte already represented in the window.
	Backward uint64

	nextID int64
	prevID int64
}

// NewBookmark returns a bookmark for stream positioned at offset 0.
func NewBookmark(stream int) *Bookmark {
	return &Bookmark{Stream: stream, prevID: -1}
}

// HasHistory reports whether bytes exist before the current window.
func (b *Bookmark) HasHistory() bool {
	return b.Backward > 0
}

// Seed positions the bookmark after an initial read that covered
// [start, end).
func (b *Bookmark) Seed(start, end uint64) {
	b.Backward = start
	b.Forward = end
}

// Advance moves the forward offset to end. Offsets never move backwards.
func (b *Bookmark) Advance(end uint64) {
	if end > b.Forward {
		b.Forward = end
	}
}

// Retreat moves the backward marker to start. It never moves forwards.
func (b *Bookmark) Retreat(start uint64) {
	if start < b.Backward {
		b.Backward = start
	}
}

// NextID returns the next forward id.
func (b *Bookmark) NextID() int64 {
	id := b.nextID
	b.nextID++
	return id
}

// PeekID returns the id NextID would return without consuming it.
func (b *Bookmark) PeekID() int64 {
	return b.nextID
}

// BackwardIDs reserves n ids for a prepended batch, returned oldest first.
// The whole batch sorts before any id handed out earlier.
func (b *Bookmark) BackwardIDs(n int) []int64 {
	if n <= 0 {
		return nil
	}
	ids := make([]int64, n)
	first := b.prevID - int64(n) + 1
	for i := range ids {
		ids[i] = first + int64(i)
	}
	b.prevID = first - 1
	return ids
}

// Stamp converts decoded lines into forward-identified log lines.
func (b *Bookmark) Stamp(lines []Line) []LogLine {
	out := make([]LogLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, LogLine{ID: b.NextID(), Text: l.Text, Malformed: l.Malformed})
	}
	return out
}

// StampBackward converts decoded lines recovered by a history load into log
// lines carrying backward ids.
func (b *Bookmark) StampBackward(lines []Line) []LogLine {
	ids := b.BackwardIDs(len(lines))
	out := make([]LogLine, 0, len(lines))
	for i, l := range lines {
		out = append(out, LogLine{ID: ids[i], Text: l.Text, Malformed: l.Malformed})
	}
	return out
}
