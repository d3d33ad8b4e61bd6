package session

import (
	"context"
	"time"
)

// reconcile makes the running poll task match the session: one task for the
// active stream iff it follows and the viewer has not scrolled away. The old
// task is cancelled and has exited before a new one is installed.
func (m *Manager) reconcile(s *session) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	s.mu.Lock()
	old := s.poll
	want := s.shouldPollLocked()
	if old != nil && want && old.stream == s.active {
		s.mu.Unlock()
		return
	}
	s.poll = nil
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}
	if !want {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shouldPollLocked() {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	task := &pollTask{stream: s.active, cancel: cancel, done: make(chan struct{})}
	s.poll = task
	go m.runPoll(ctx, s, task)
}

// runPoll tails one stream right away and then every PollInterval.
func (m *Manager) runPoll(ctx context.Context, s *session, task *pollTask) {
	defer close(task.done)
	m.logger.Debug("log poll started", "container", s.id, "stream", task.stream)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		m.tail(ctx, s, []int{task.stream})
		select {
		case <-ctx.Done():
			m.logger.Debug("log poll stopped", "container", s.id, "stream", task.stream)
			return
		case <-ticker.C:
		}
	}
}
