package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/runtime"
)

// Open performs the first "view logs" of id: it opens the container's streams
// and loads the last InitialLines lines of each concurrently. The session is
// Ready afterwards even when opening failed; the failure is kept as OpenErr.
// Calling Open on a session that is loading or loaded does nothing.
func (m *Manager) Open(ctx context.Context, id string) error {
	s := m.lookup(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.state != Uninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = LoadingInitial
	s.mu.Unlock()
	m.publish(id)

	ctx, cancel := s.mergeContext(ctx)
	defer cancel()

	handles, err := m.opener.OpenLogStreams(ctx, id)
	if err == nil && len(handles) == 0 {
		err = fmt.Errorf("open logs %s: %w", id, runtime.ErrNoLogs)
	}
	if err != nil {
		m.logger.Warn("open log streams failed", "container", id, "error", err)
		s.mu.Lock()
		if s.state != Closed {
			s.openErr = err
			s.state = Ready
		}
		s.mu.Unlock()
		m.publish(id)
		return nil
	}

	streams := make([]*stream, len(handles))
	chunks := make([]logtail.Chunk, len(handles))
	errs := make([]error, len(handles))
	for i, h := range handles {
		name := h.Name()
		if name == "" {
			name = runtime.StreamName(i, len(handles))
		}
		st := &stream{
			name:     name,
			handle:   h,
			bookmark: logtail.NewBookmark(i),
			window:   logtail.NewWindow(m.cfg.AppendCap, m.cfg.PrependCap),
			follow:   true,
		}
		if dec, ok := h.(runtime.LineDecoder); ok {
			st.decoder = dec
		}
		streams[i] = st
	}

	var g errgroup.Group
	for i, st := range streams {
		g.Go(func() error {
			st.io.Lock()
			defer st.io.Unlock()
			chunks[i], errs[i] = logtail.ReadTail(ctx, st.handle, m.cfg.InitialLines, m.cfg.InitialBytesPerLine, m.readerOpts()...)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		_ = runtime.CloseAll(handles)
		return nil
	}
	for i, st := range streams {
		if errs[i] != nil {
			st.lastErr = errs[i]
			m.logger.Warn("initial log read failed", "container", id, "stream", st.name, "error", errs[i])
			continue
		}
		st.bookmark.Seed(chunks[i].Start, chunks[i].End)
		st.window.Append(st.bookmark.Stamp(m.decode(st, chunks[i].Lines))...)
	}
	s.streams = streams
	s.active = 0
	s.state = Ready
	s.mu.Unlock()

	m.logger.Debug("log session ready", "container", id, "streams", len(streams))
	m.reconcile(s)
	m.publish(id)
	return nil
}

// RequestTail reads whatever was appended to every stream of id since the
// last read. Streams with a read already in flight are skipped, so repeated
// calls never stack up. A failing stream keeps its bookmark and records the
// error without affecting the others.
func (m *Manager) RequestTail(ctx context.Context, id string) error {
	s := m.lookup(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	indexes := make([]int, len(s.streams))
	for i := range s.streams {
		indexes[i] = i
	}
	s.mu.Unlock()
	m.tail(ctx, s, indexes)
	return nil
}

type tailJob struct {
	st   *stream
	from uint64
}

func (m *Manager) tail(ctx context.Context, s *session, indexes []int) {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return
	}
	var jobs []tailJob
	for _, idx := range indexes {
		st := s.streamLocked(idx)
		if st == nil || st.busy {
			continue
		}
		st.busy = true
		jobs = append(jobs, tailJob{st: st, from: st.bookmark.Forward})
	}
	s.mu.Unlock()
	if len(jobs) == 0 {
		return
	}

	ctx, cancel := s.mergeContext(ctx)
	defer cancel()

	chunks := make([]logtail.Chunk, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			job.st.io.Lock()
			defer job.st.io.Unlock()
			chunks[i], errs[i] = logtail.ReadForward(ctx, job.st.handle, job.from, m.cfg.AppendCap, m.readerOpts()...)
			return nil
		})
	}
	_ = g.Wait()

	changed := false
	s.mu.Lock()
	for i, job := range jobs {
		job.st.busy = false
		if s.state == Closed {
			continue
		}
		if errs[i] != nil {
			if !errors.Is(errs[i], context.Canceled) {
				job.st.lastErr = fmt.Errorf("tail %s: %w", job.st.name, errs[i])
				changed = true
				m.logger.Warn("log tail failed", "container", s.id, "stream", job.st.name, "error", errs[i])
			}
			continue
		}
		if job.st.bookmark.Forward != job.from {
			continue
		}
		chunk := chunks[i]
		if job.st.lastErr != nil {
			job.st.lastErr = nil
			changed = true
		}
		if chunk.Truncated {
			m.logger.Info("log stream truncated", "container", s.id, "stream", job.st.name)
			job.st.bookmark.Seed(0, chunk.End)
			changed = true
		} else {
			job.st.bookmark.Advance(chunk.End)
		}
		if len(chunk.Lines) > 0 {
			job.st.window.Append(job.st.bookmark.Stamp(m.decode(job.st, chunk.Lines))...)
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		m.publish(s.id)
	}
}

// RequestOlder extends every stream that has history backwards by up to
// OlderLines lines. At most one history load runs per session; a call made
// while one is in flight, or when no stream has history, returns at once.
func (m *Manager) RequestOlder(ctx context.Context, id string) error {
	s := m.lookup(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.state != Ready || s.loadingOlder {
		s.mu.Unlock()
		return nil
	}
	var jobs []tailJob
	for _, st := range s.streams {
		if st.bookmark.HasHistory() {
			jobs = append(jobs, tailJob{st: st, from: st.bookmark.Backward})
		}
	}
	if len(jobs) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.loadingOlder = true
	s.mu.Unlock()
	m.publish(id)

	defer func() {
		s.mu.Lock()
		s.loadingOlder = false
		s.mu.Unlock()
		m.publish(id)
	}()

	ctx, cancel := s.mergeContext(ctx)
	defer cancel()

	budget := m.cfg.olderBudget()
	chunks := make([]logtail.Chunk, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			job.st.io.Lock()
			defer job.st.io.Unlock()
			chunks[i], errs[i] = logtail.ReadBackward(ctx, job.st.handle, job.from, budget, m.cfg.OlderLines, m.readerOpts()...)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	for i, job := range jobs {
		if errs[i] != nil {
			if !errors.Is(errs[i], context.Canceled) {
				job.st.lastErr = fmt.Errorf("load older %s: %w", job.st.name, errs[i])
				m.logger.Warn("log history load failed", "container", id, "stream", job.st.name, "error", errs[i])
			}
			continue
		}
		if job.st.bookmark.Backward != job.from {
			continue
		}
		chunk := chunks[i]
		dropped := job.st.window.Prepend(job.st.bookmark.StampBackward(m.decode(job.st, chunk.Lines))...)
		job.st.bookmark.Retreat(chunk.Start)
		m.logger.Debug("log history loaded", "container", id, "stream", job.st.name,
			"lines", len(chunk.Lines), "dropped", dropped, "backward", chunk.Start)
	}
	return nil
}

func (m *Manager) readerOpts() []logtail.ReaderOption {
	return []logtail.ReaderOption{logtail.WithChunkSize(m.cfg.ChunkSize)}
}

// decode unwraps framed lines. A line the decoder rejects keeps its raw text
// and is flagged malformed.
func (m *Manager) decode(st *stream, lines []logtail.Line) []logtail.Line {
	if st.decoder == nil {
		return lines
	}
	out := make([]logtail.Line, len(lines))
	for i, l := range lines {
		text, err := st.decoder.DecodeLine(l.Text)
		if err != nil {
			l.Malformed = true
		} else {
			l.Text = text
		}
		out[i] = l
	}
	return out
}
