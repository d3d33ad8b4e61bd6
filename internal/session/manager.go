package session

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/runtime"
)

// Opener opens the log streams of a container. runtime.Client satisfies it.
type Opener interface {
	OpenLogStreams(ctx context.Context, id string) ([]runtime.LogStream, error)
}

const changesBuffer = 64

// Manager owns one log session per known container id. All methods are safe
// for concurrent use. Operations on unknown ids are silent no-ops.
type Manager struct {
	opener Opener
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	changes chan string
}

// NewManager builds a manager. A nil logger discards output.
func NewManager(opener Opener, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opener:   opener,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
		changes:  make(chan string, changesBuffer),
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Changes delivers the id of a container whenever its log state changed.
// Notifications are dropped rather than blocking when nobody reads.
func (m *Manager) Changes() <-chan string {
	return m.changes
}

func (m *Manager) publish(id string) {
	select {
	case m.changes <- id:
	default:
	}
}

func (m *Manager) lookup(id string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Track creates an Uninitialized session for id if none exists.
func (m *Manager) Track(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || id == "" {
		return
	}
	if _, ok := m.sessions[id]; !ok {
		m.sessions[id] = newSession(m.ctx, id)
	}
}

// Sync reconciles sessions with the latest container listing: new ids get a
// session, ids that disappeared are torn down.
func (m *Manager) Sync(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	var gone []*session
	for id, s := range m.sessions {
		if _, ok := seen[id]; !ok {
			gone = append(gone, s)
			delete(m.sessions, id)
		}
	}
	for id := range seen {
		if id == "" {
			continue
		}
		if _, ok := m.sessions[id]; !ok {
			m.sessions[id] = newSession(m.ctx, id)
		}
	}
	m.mu.Unlock()

	for _, s := range gone {
		s.teardown()
		m.logger.Debug("log session removed", "container", s.id)
		m.publish(s.id)
	}
}

// Remove tears down the session of id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.teardown()
	m.logger.Debug("log session removed", "container", id)
	m.publish(id)
}

// Reload replaces the session of id with a fresh one and opens it. It is used
// after a container restarts, when its streams may have been recreated. An
// untracked id is left alone.
func (m *Manager) Reload(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.closed || id == "" {
		m.mu.Unlock()
		return nil
	}
	old := m.sessions[id]
	if old == nil {
		m.mu.Unlock()
		return nil
	}
	m.sessions[id] = newSession(m.ctx, id)
	m.mu.Unlock()
	old.teardown()
	return m.Open(ctx, id)
}

// Close tears down every session. The manager ignores all later commands.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	m.cancel()
	for _, s := range all {
		s.teardown()
	}
}

// IDs returns the tracked container ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Lines returns a copy of the window of stream idx of container id.
func (m *Manager) Lines(id string, idx int) []logtail.LogLine {
	s := m.lookup(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.streamLocked(idx)
	if st == nil {
		return nil
	}
	return st.window.Lines()
}

// Snapshot describes the session of id. ok is false for unknown ids.
func (m *Manager) Snapshot(id string) (snap Snapshot, ok bool) {
	s := m.lookup(id)
	if s == nil {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), true
}

// SelectStream makes idx the active stream; only it is follow-polled.
func (m *Manager) SelectStream(id string, idx int) {
	m.update(id, idx, func(s *session, _ *stream) bool {
		if s.active == idx {
			return false
		}
		s.active = idx
		return true
	})
}

// SetFollow toggles follow mode of stream idx.
func (m *Manager) SetFollow(id string, idx int, on bool) {
	m.update(id, idx, func(_ *session, st *stream) bool {
		if st.follow == on {
			return false
		}
		st.follow = on
		return true
	})
}

// SetUserScrolled records whether the viewer scrolled away from the newest
// line of stream idx. While set, the stream is not follow-polled.
func (m *Manager) SetUserScrolled(id string, idx int, scrolled bool) {
	m.update(id, idx, func(_ *session, st *stream) bool {
		if st.scrolled == scrolled {
			return false
		}
		st.scrolled = scrolled
		return true
	})
}

func (m *Manager) update(id string, idx int, fn func(*session, *stream) bool) {
	s := m.lookup(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	st := s.streamLocked(idx)
	if st == nil || s.state == Closed {
		s.mu.Unlock()
		return
	}
	changed := fn(s, st)
	s.mu.Unlock()
	if changed {
		m.reconcile(s)
		m.publish(id)
	}
}
