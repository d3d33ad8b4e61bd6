package logtail

// Default window caps. Appends keep the newest DefaultAppendCap lines, history
// loads keep the oldest DefaultPrependCap.
const (
	DefaultAppendCap  = 2000
	DefaultPrependCap = 1000
)

// LogLine is one identified line held by a Window.
type LogLine struct {
	ID        int64
	Text      string
	Malformed bool
}

// Window is an ordered, capacity-bounded run of log lines, oldest first.
// It is not safe for concurrent use; sessions guard it with their own lock.
type Window struct {
	lines      []LogLine
	appendCap  int
	prependCap int
}

// NewWindow builds a window. Non-positive caps fall back to the defaults.
func NewWindow(appendCap, prependCap int) *Window {
	if appendCap <= 0 {
		appendCap = DefaultAppendCap
	}
	if prependCap <= 0 {
		prependCap = DefaultPrependCap
	}
	return &Window{appendCap: appendCap, prependCap: prependCap}
}

// Append adds lines at the tail and drops the oldest lines beyond the append
// cap. It returns how many lines were dropped.
func (w *Window) Append(lines ...LogLine) int {
	if len(lines) == 0 {
		return 0
	}
	w.lines = append(w.lines, lines...)
	overflow := len(w.lines) - w.appendCap
	if overflow <= 0 {
		return 0
	}
	w.lines = append([]LogLine(nil), w.lines[overflow:]...)
	return overflow
}

// Prepend inserts lines at the head and drops the newest lines beyond the
// prepend cap. It returns how many lines were dropped.
func (w *Window) Prepend(lines ...LogLine) int {
	if len(lines) == 0 {
		return 0
	}
	merged := make([]LogLine, 0, len(lines)+len(w.lines))
	merged = append(merged, lines...)
	merged = append(merged, w.lines...)
	dropped := 0
	if len(merged) > w.prependCap {
		dropped = len(merged) - w.prependCap
		merged = merged[:w.prependCap]
	}
	w.lines = merged
	return dropped
}

// Lines returns a copy of the window contents.
func (w *Window) Lines() []LogLine {
	if len(w.lines) == 0 {
		return nil
	}
	dup := make([]LogLine, len(w.lines))
	copy(dup, w.lines)
	return dup
}

// Len reports the number of retained lines.
func (w *Window) Len() int {
	return len(w.lines)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.lines = nil
}
