package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/runtime"
)

// memStream is an in-memory LogStream that can grow, fail and block.
type memStream struct {
	mu       sync.Mutex
	name     string
	data     []byte
	pos      int64
	closes   int
	readErr  error
	gate     chan struct{}
	entered  chan struct{}
}

func newMemStream(name, content string) *memStream {
	return &memStream{name: name, data: []byte(content)}
}

func (s *memStream) Name() string { return s.name }

func (s *memStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return 0, os.ErrClosed
	}
	if s.readErr != nil {
		return 0, s.readErr
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *memStream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return 0, errors.New("bad whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = abs
	return abs, nil
}

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *memStream) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, text...)
}

func (s *memStream) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *memStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

// Block makes every Read wait until the returned release func is called. The
// entered channel receives once a read is parked.
func (s *memStream) Block() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate
	s.entered = make(chan struct{}, 1)
	var once sync.Once
	return s.entered, func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// fakeOpener hands out prepared streams per container.
type fakeOpener struct {
	mu      sync.Mutex
	streams map[string]func() []runtime.LogStream
	err     error
	opens   map[string]int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		streams: make(map[string]func() []runtime.LogStream),
		opens:   make(map[string]int),
	}
}

func (f *fakeOpener) set(id string, streams ...*memStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[id] = func() []runtime.LogStream {
		out := make([]runtime.LogStream, len(streams))
		for i, s := range streams {
			out[i] = s
		}
		return out
	}
}

func (f *fakeOpener) OpenLogStreams(_ context.Context, id string) ([]runtime.LogStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[id]++
	if f.err != nil {
		return nil, f.err
	}
	fn, ok := f.streams[id]
	if !ok {
		return nil, fmt.Errorf("open logs %s: %w", id, runtime.ErrNotFound)
	}
	return fn(), nil
}

func (f *fakeOpener) openCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[id]
}

func numberedLines(prefix string, from, to int) string {
	var b strings.Builder
	for i := from; i <= to; i++ {
		fmt.Fprintf(&b, "%s%d\n", prefix, i)
	}
	return b.String()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	return cfg
}

// openQuiet opens id and turns follow off on every stream so that only
// explicit requests read.
func openQuiet(t *testing.T, m *Manager, id string) {
	t.Helper()
	m.Track(id)
	if err := m.Open(context.Background(), id); err != nil {
		t.Fatalf("Open(%q) error = %v", id, err)
	}
	snap, ok := m.Snapshot(id)
	if !ok {
		t.Fatalf("Snapshot(%q) missing", id)
	}
	for i := range snap.Streams {
		m.SetFollow(id, i, false)
	}
	if snap, _ := m.Snapshot(id); snap.Polling {
		t.Fatalf("session %q still polling after follow off", id)
	}
}

func texts(lines []logtail.LogLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func lineIDs(lines []logtail.LogLine) []int64 {
	out := make([]int64, len(lines))
	for i, l := range lines {
		out[i] = l.ID
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitSignal(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
