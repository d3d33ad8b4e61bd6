package session

import (
	"context"
	"sync"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/runtime"
)

// session is the log state of one container. mu guards every field below it
// and is never held across I/O. A session object is never reused: once
// Closed it only discards results.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	// reconcileMu serialises poll task replacement.
	reconcileMu sync.Mutex

	mu           sync.Mutex
	state        State
	streams      []*stream
	active       int
	loadingOlder bool
	openErr      error
	poll         *pollTask
}

// stream is one log handle of a session. io serialises seek and read on the
// handle; the remaining fields are guarded by the owning session's mu.
type stream struct {
	name    string
	handle  runtime.LogStream
	decoder runtime.LineDecoder
	io      sync.Mutex

	bookmark *logtail.Bookmark
	window   *logtail.Window
	follow   bool
	scrolled bool
	busy     bool
	lastErr  error
}

type pollTask struct {
	stream int
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(parent context.Context, id string) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{id: id, ctx: ctx, cancel: cancel}
}

// Snapshot is a point-in-time view of a session for presentation.
type Snapshot struct {
	ContainerID  string
	State        State
	Active       int
	LoadingOlder bool
	Polling      bool
	OpenErr      error
	Streams      []StreamSnapshot
}

// StreamSnapshot describes one stream of a Snapshot.
type StreamSnapshot struct {
	Name         string
	Lines        int
	Follow       bool
	UserScrolled bool
	HasHistory   bool
	Forward      uint64
	Backward     uint64
	Err          error
}

// HasHistory reports whether any stream has bytes before its window.
func (s Snapshot) HasHistory() bool {
	for _, st := range s.Streams {
		if st.HasHistory {
			return true
		}
	}
	return false
}

func (s *session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ContainerID:  s.id,
		State:        s.state,
		Active:       s.active,
		LoadingOlder: s.loadingOlder,
		Polling:      s.poll != nil,
		OpenErr:      s.openErr,
		Streams:      make([]StreamSnapshot, 0, len(s.streams)),
	}
	for _, st := range s.streams {
		snap.Streams = append(snap.Streams, StreamSnapshot{
			Name:         st.name,
			Lines:        st.window.Len(),
			Follow:       st.follow,
			UserScrolled: st.scrolled,
			HasHistory:   st.bookmark.HasHistory(),
			Forward:      st.bookmark.Forward,
			Backward:     st.bookmark.Backward,
			Err:          st.lastErr,
		})
	}
	return snap
}

// shouldPollLocked reports whether the active stream wants a follow task.
func (s *session) shouldPollLocked() bool {
	if s.state != Ready || s.active < 0 || s.active >= len(s.streams) {
		return false
	}
	st := s.streams[s.active]
	return st.follow && !st.scrolled
}

func (s *session) streamLocked(idx int) *stream {
	if idx < 0 || idx >= len(s.streams) {
		return nil
	}
	return s.streams[idx]
}

// teardown marks the session Closed, cancels its context, waits for the poll
// task to exit, then closes every handle once no read holds it.
func (s *session) teardown() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	task := s.poll
	s.poll = nil
	streams := s.streams
	s.mu.Unlock()

	s.cancel()
	if task != nil {
		task.cancel()
		<-task.done
	}
	for _, st := range streams {
		st.io.Lock()
		_ = st.handle.Close()
		st.io.Unlock()
	}
}

// mergeContext returns a context cancelled when either ctx or the session
// ends.
func (s *session) mergeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
