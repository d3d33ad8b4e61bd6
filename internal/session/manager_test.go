package session

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crane-app/crane/internal/runtime"
)

func TestOpen_LoadsLastLinesWithForwardIDs(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("", numberedLines("L", 1, 120)))
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()

	openQuiet(t, m, "web")

	lines := m.Lines("web", 0)
	if len(lines) != 100 {
		t.Fatalf("got %d lines, want 100", len(lines))
	}
	if lines[0].Text != "L21" || lines[99].Text != "L120" {
		t.Fatalf("window = %s..%s, want L21..L120", lines[0].Text, lines[99].Text)
	}
	for i, l := range lines {
		if l.ID != int64(i) {
			t.Fatalf("line %d id = %d, want %d", i, l.ID, i)
		}
	}

	snap, _ := m.Snapshot("web")
	if snap.State != Ready {
		t.Fatalf("State = %v, want ready", snap.State)
	}
	if snap.Streams[0].Name != "Process" {
		t.Fatalf("stream name = %q, want Process", snap.Streams[0].Name)
	}
	if !snap.HasHistory() || snap.Streams[0].Backward != 71 || snap.Streams[0].Forward != 492 {
		t.Fatalf("bookmark = %+v", snap.Streams[0])
	}
}

func TestRequestOlder_RecoversHistoryInOrder(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("Process", numberedLines("L", 1, 120)))
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	if err := m.RequestOlder(context.Background(), "web"); err != nil {
		t.Fatalf("RequestOlder() error = %v", err)
	}
	lines := m.Lines("web", 0)
	if len(lines) != 120 {
		t.Fatalf("got %d lines, want 120", len(lines))
	}
	want := strings.Split(strings.TrimSuffix(numberedLines("L", 1, 120), "\n"), "\n")
	if got := texts(lines); !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %v", got)
	}
	ids := lineIDs(lines)
	if !sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }) {
		t.Fatalf("ids not in display order: %v", ids)
	}
	if ids[0] != -20 || ids[19] != -1 || ids[20] != 0 {
		t.Fatalf("ids around boundary = %v", ids[:22])
	}

	snap, _ := m.Snapshot("web")
	if snap.HasHistory() || snap.LoadingOlder {
		t.Fatalf("snapshot after full history = %+v", snap)
	}

	if err := m.RequestOlder(context.Background(), "web"); err != nil {
		t.Fatalf("second RequestOlder() error = %v", err)
	}
	if got := len(m.Lines("web", 0)); got != 120 {
		t.Fatalf("second RequestOlder changed window: %d lines", got)
	}
}

func TestRequestOlder_RespectsPrependCap(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("Process", numberedLines("L", 1, 120)))
	cfg := testConfig()
	cfg.PrependCap = 110
	m := NewManager(opener, cfg, nil)
	defer m.Close()
	openQuiet(t, m, "web")

	if err := m.RequestOlder(context.Background(), "web"); err != nil {
		t.Fatalf("RequestOlder() error = %v", err)
	}
	lines := m.Lines("web", 0)
	if len(lines) != 110 {
		t.Fatalf("got %d lines, want prepend cap 110", len(lines))
	}
	if lines[0].Text != "L1" || lines[109].Text != "L110" {
		t.Fatalf("window = %s..%s, want L1..L110", lines[0].Text, lines[109].Text)
	}
}

func TestRequestOlder_NoHistoryIsNoop(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "a\nb\n")
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	before, _ := m.Snapshot("web")
	if err := m.RequestOlder(context.Background(), "web"); err != nil {
		t.Fatalf("RequestOlder() error = %v", err)
	}
	after, _ := m.Snapshot("web")
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("snapshot changed: %+v -> %+v", before, after)
	}
}

func TestRequestOlder_ConcurrentCallsApplyOnce(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", numberedLines("L", 1, 120))
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	entered, release := stream.Block()
	defer release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.RequestOlder(context.Background(), "web")
	}()
	waitSignal(t, "history read to start", entered)

	snap, _ := m.Snapshot("web")
	if !snap.LoadingOlder {
		t.Fatal("LoadingOlder = false while a history load is in flight")
	}
	done := make(chan struct{})
	go func() {
		_ = m.RequestOlder(context.Background(), "web")
		close(done)
	}()
	waitSignal(t, "second RequestOlder to return", done)

	release()
	wg.Wait()

	lines := m.Lines("web", 0)
	if len(lines) != 120 {
		t.Fatalf("got %d lines, want 120 after one history load", len(lines))
	}
	seen := make(map[int64]bool)
	for _, l := range lines {
		if seen[l.ID] {
			t.Fatalf("duplicate id %d", l.ID)
		}
		seen[l.ID] = true
	}
	if snap, _ := m.Snapshot("web"); snap.LoadingOlder {
		t.Fatal("LoadingOlder still set after load finished")
	}
}

func TestRequestTail_QuiescentAndIncremental(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", numberedLines("L", 1, 120))
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")
	ctx := context.Background()

	before, _ := m.Snapshot("web")
	beforeLines := m.Lines("web", 0)
	for i := 0; i < 3; i++ {
		if err := m.RequestTail(ctx, "web"); err != nil {
			t.Fatalf("RequestTail() error = %v", err)
		}
	}
	after, _ := m.Snapshot("web")
	if !reflect.DeepEqual(before, after) || !reflect.DeepEqual(beforeLines, m.Lines("web", 0)) {
		t.Fatal("polling a quiescent stream changed the session")
	}

	stream.Append("L121\nL12")
	if err := m.RequestTail(ctx, "web"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}
	lines := m.Lines("web", 0)
	last := lines[len(lines)-1]
	if last.Text != "L121" || last.ID != 100 {
		t.Fatalf("last = %+v, want L121 with id 100", last)
	}
	snap, _ := m.Snapshot("web")
	if snap.Streams[0].Forward != 497 {
		t.Fatalf("Forward = %d, want 497 with partial line held", snap.Streams[0].Forward)
	}

	stream.Append("2\n")
	if err := m.RequestTail(ctx, "web"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}
	lines = m.Lines("web", 0)
	last = lines[len(lines)-1]
	if last.Text != "L122" || last.ID != 101 {
		t.Fatalf("last = %+v, want L122 with id 101", last)
	}
}

func TestRequestTail_AppendCapNeverReusesIDs(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "")
	opener.set("web", stream)
	cfg := testConfig()
	cfg.AppendCap = 5
	m := NewManager(opener, cfg, nil)
	defer m.Close()
	openQuiet(t, m, "web")

	var maxSeen int64 = -1
	for batch := 0; batch < 4; batch++ {
		stream.Append(numberedLines("b", batch*3, batch*3+2))
		if err := m.RequestTail(context.Background(), "web"); err != nil {
			t.Fatalf("RequestTail() error = %v", err)
		}
		lines := m.Lines("web", 0)
		if len(lines) > 5 {
			t.Fatalf("window holds %d lines, want at most 5", len(lines))
		}
		newest := lines[len(lines)-1].ID
		if newest <= maxSeen {
			t.Fatalf("batch %d newest id %d not above %d", batch, newest, maxSeen)
		}
		maxSeen = newest
	}
	want := []string{"b7", "b8", "b9", "b10", "b11"}
	if got := texts(m.Lines("web", 0)); !reflect.DeepEqual(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if maxSeen != 11 {
		t.Fatalf("newest id = %d, want 11", maxSeen)
	}
}

func TestRequestTail_StreamFailureIsIsolated(t *testing.T) {
	opener := newFakeOpener()
	proc := newMemStream("", "p1\n")
	sys := newMemStream("", "s1\n")
	opener.set("web", proc, sys)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	snap, _ := m.Snapshot("web")
	if snap.Streams[0].Name != "Process" || snap.Streams[1].Name != "System" {
		t.Fatalf("names = %q, %q", snap.Streams[0].Name, snap.Streams[1].Name)
	}

	proc.Append("p2\n")
	proc.FailReads(errors.New("disk gone"))
	sys.Append("s2\n")
	if err := m.RequestTail(context.Background(), "web"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}

	snap, _ = m.Snapshot("web")
	if snap.Streams[0].Err == nil {
		t.Fatal("failing stream has no error recorded")
	}
	if snap.Streams[0].Forward != 3 {
		t.Fatalf("failing stream Forward = %d, want unchanged 3", snap.Streams[0].Forward)
	}
	if got := texts(m.Lines("web", 1)); !reflect.DeepEqual(got, []string{"s1", "s2"}) {
		t.Fatalf("healthy stream = %v, want [s1 s2]", got)
	}

	proc.FailReads(nil)
	if err := m.RequestTail(context.Background(), "web"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}
	snap, _ = m.Snapshot("web")
	if snap.Streams[0].Err != nil {
		t.Fatalf("error not cleared after recovery: %v", snap.Streams[0].Err)
	}
	if got := texts(m.Lines("web", 0)); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Fatalf("recovered stream = %v, want [p1 p2]", got)
	}
}

func TestRequestTail_TruncatedStreamRestarts(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "old-1\nold-2\n")
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	stream.mu.Lock()
	stream.data = []byte("new\n")
	stream.mu.Unlock()
	if err := m.RequestTail(context.Background(), "web"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}
	if got := texts(m.Lines("web", 0)); !reflect.DeepEqual(got, []string{"old-1", "old-2", "new"}) {
		t.Fatalf("lines = %v", got)
	}
	snap, _ := m.Snapshot("web")
	if snap.Streams[0].Forward != 4 || snap.Streams[0].HasHistory {
		t.Fatalf("bookmark after truncation = %+v", snap.Streams[0])
	}
}

func TestMalformedLineKeepsOtherLines(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("Process", "ok-1\nbad \xff\nok-2\n"))
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	lines := m.Lines("web", 0)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0].Malformed || !lines[1].Malformed || lines[2].Malformed {
		t.Fatalf("malformed flags = %v %v %v", lines[0].Malformed, lines[1].Malformed, lines[2].Malformed)
	}
	if lines[2].Text != "ok-2" {
		t.Fatalf("last line = %q, want ok-2", lines[2].Text)
	}
}

type framedStream struct {
	*memStream
}

func (framedStream) DecodeLine(raw string) (string, error) {
	text, ok := strings.CutPrefix(raw, "msg=")
	if !ok {
		return raw, errors.New("unframed line")
	}
	return text, nil
}

type framedOpener struct {
	stream framedStream
}

func (o framedOpener) OpenLogStreams(context.Context, string) ([]runtime.LogStream, error) {
	return []runtime.LogStream{o.stream}, nil
}

func TestOpen_UsesLineDecoder(t *testing.T) {
	opener := framedOpener{stream: framedStream{newMemStream("Process", "msg=hello\ngarbage\nmsg=bye\n")}}
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	lines := m.Lines("web", 0)
	if got := texts(lines); !reflect.DeepEqual(got, []string{"hello", "garbage", "bye"}) {
		t.Fatalf("lines = %v", got)
	}
	if !lines[1].Malformed || lines[0].Malformed {
		t.Fatalf("malformed flags wrong: %+v", lines)
	}
}

func TestOpen_FailureIsRecorded(t *testing.T) {
	opener := newFakeOpener()
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	m.Track("ghost")

	if err := m.Open(context.Background(), "ghost"); err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	snap, ok := m.Snapshot("ghost")
	if !ok || snap.State != Ready {
		t.Fatalf("snapshot = %+v, %v", snap, ok)
	}
	if !errors.Is(snap.OpenErr, runtime.ErrNotFound) {
		t.Fatalf("OpenErr = %v, want ErrNotFound", snap.OpenErr)
	}
	if m.Lines("ghost", 0) != nil {
		t.Fatal("failed session should have no lines")
	}

	if err := m.Open(context.Background(), "ghost"); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if opener.openCount("ghost") != 1 {
		t.Fatalf("streams opened %d times, want 1", opener.openCount("ghost"))
	}
}

func TestOpen_NoStreamsIsNoLogs(t *testing.T) {
	opener := newFakeOpener()
	opener.set("empty")
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	m.Track("empty")
	_ = m.Open(context.Background(), "empty")

	snap, _ := m.Snapshot("empty")
	if !errors.Is(snap.OpenErr, runtime.ErrNoLogs) {
		t.Fatalf("OpenErr = %v, want ErrNoLogs", snap.OpenErr)
	}
}

func TestUnknownIDsAreNoops(t *testing.T) {
	m := NewManager(newFakeOpener(), testConfig(), nil)
	defer m.Close()
	ctx := context.Background()

	if err := m.Open(ctx, "nope"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.RequestTail(ctx, "nope"); err != nil {
		t.Fatalf("RequestTail() error = %v", err)
	}
	if err := m.RequestOlder(ctx, "nope"); err != nil {
		t.Fatalf("RequestOlder() error = %v", err)
	}
	m.SelectStream("nope", 1)
	m.SetFollow("nope", 0, false)
	m.SetUserScrolled("nope", 0, true)
	m.Remove("nope")
	if m.Lines("nope", 0) != nil {
		t.Fatal("Lines() for unknown id should be nil")
	}
	if _, ok := m.Snapshot("nope"); ok {
		t.Fatal("Snapshot() for unknown id should report !ok")
	}
}

func TestSync_TracksAndTearsDown(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "a\n")
	opener.set("a", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()

	m.Sync([]string{"a", "b"})
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("IDs() = %v, want [a b]", got)
	}
	snap, _ := m.Snapshot("b")
	if snap.State != Uninitialized {
		t.Fatalf("new session state = %v, want uninitialized", snap.State)
	}

	if err := m.Open(context.Background(), "a"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	m.Sync([]string{"b"})
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("IDs() = %v, want [b]", got)
	}
	if !stream.Closed() {
		t.Fatal("stream of removed container was not closed")
	}
}

func TestFollowPolling(t *testing.T) {
	opener := newFakeOpener()
	proc := newMemStream("", "p0\n")
	sys := newMemStream("", "s0\n")
	opener.set("web", proc, sys)
	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond
	m := NewManager(opener, cfg, nil)
	defer m.Close()
	m.Track("web")
	if err := m.Open(context.Background(), "web"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	snap, _ := m.Snapshot("web")
	if !snap.Polling {
		t.Fatal("poll task not running for a followed active stream")
	}
	proc.Append("p1\n")
	waitFor(t, "p1 to be polled", func() bool { return len(m.Lines("web", 0)) == 2 })

	m.SetUserScrolled("web", 0, true)
	if snap, _ := m.Snapshot("web"); snap.Polling {
		t.Fatal("poll task still running after user scrolled away")
	}
	proc.Append("p2\n")
	time.Sleep(50 * time.Millisecond)
	if got := len(m.Lines("web", 0)); got != 2 {
		t.Fatalf("scrolled-away stream polled: %d lines", got)
	}

	m.SetUserScrolled("web", 0, false)
	waitFor(t, "p2 after resuming follow", func() bool { return len(m.Lines("web", 0)) == 3 })

	m.SelectStream("web", 1)
	sys.Append("s1\n")
	proc.Append("p3\n")
	waitFor(t, "s1 on the selected stream", func() bool { return len(m.Lines("web", 1)) == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := len(m.Lines("web", 0)); got != 3 {
		t.Fatalf("inactive stream polled: %d lines", got)
	}

	m.SetFollow("web", 1, false)
	if snap, _ := m.Snapshot("web"); snap.Polling {
		t.Fatal("poll task running with follow off")
	}
}

func TestRemove_DiscardsInFlightTail(t *testing.T) {
	opener := newFakeOpener()
	stale := newMemStream("Process", "first\n")
	opener.set("web", stale)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	stale.Append("late\n")
	entered, release := stale.Block()
	defer release()

	tailDone := make(chan struct{})
	go func() {
		_ = m.RequestTail(context.Background(), "web")
		close(tailDone)
	}()
	waitSignal(t, "tail read to start", entered)

	removed := make(chan struct{})
	go func() {
		m.Remove("web")
		close(removed)
	}()
	waitFor(t, "session to leave the manager", func() bool {
		_, ok := m.Snapshot("web")
		return !ok
	})

	fresh := newMemStream("Process", "fresh\n")
	opener.set("web", fresh)
	m.Track("web")

	release()
	waitSignal(t, "tail to finish", tailDone)
	waitSignal(t, "remove to finish", removed)

	if err := m.Open(context.Background(), "web"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := texts(m.Lines("web", 0)); !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Fatalf("recreated session lines = %v, want [fresh]", got)
	}
	if !stale.Closed() {
		t.Fatal("removed session's stream was not closed")
	}
}

func TestRemove_DuringInitialLoad(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "a\nb\n")
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	m.Track("web")

	entered, release := stream.Block()
	defer release()
	opened := make(chan struct{})
	go func() {
		_ = m.Open(context.Background(), "web")
		close(opened)
	}()
	waitSignal(t, "initial read to start", entered)

	snap, _ := m.Snapshot("web")
	if snap.State != LoadingInitial {
		t.Fatalf("State = %v, want loading", snap.State)
	}
	m.Remove("web")
	release()
	waitSignal(t, "Open to return", opened)

	if !stream.Closed() {
		t.Fatal("handles opened by a torn-down session were not closed")
	}
	if _, ok := m.Snapshot("web"); ok {
		t.Fatal("removed session reappeared")
	}
}

func TestReload_ReplacesSession(t *testing.T) {
	opener := newFakeOpener()
	first := newMemStream("Process", "before\n")
	opener.set("web", first)
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	openQuiet(t, m, "web")

	second := newMemStream("Process", "after\n")
	opener.set("web", second)
	if err := m.Reload(context.Background(), "web"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !first.Closed() {
		t.Fatal("old stream not closed on reload")
	}
	if got := texts(m.Lines("web", 0)); !reflect.DeepEqual(got, []string{"after"}) {
		t.Fatalf("lines = %v, want [after]", got)
	}
	if opener.openCount("web") != 2 {
		t.Fatalf("opens = %d, want 2", opener.openCount("web"))
	}
}

func TestReload_UntrackedIDIsNoop(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("Process", "line\n"))
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()

	if err := m.Reload(context.Background(), "web"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if ids := m.IDs(); len(ids) != 0 {
		t.Fatalf("IDs() = %v, want none", ids)
	}
	if n := opener.openCount("web"); n != 0 {
		t.Fatalf("opens = %d, want 0", n)
	}
}

func TestChanges_Notifies(t *testing.T) {
	opener := newFakeOpener()
	opener.set("web", newMemStream("Process", "a\n"))
	m := NewManager(opener, testConfig(), nil)
	defer m.Close()
	m.Track("web")
	if err := m.Open(context.Background(), "web"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	select {
	case id := <-m.Changes():
		if id != "web" {
			t.Fatalf("change id = %q, want web", id)
		}
	case <-time.After(time.Second):
		t.Fatal("no change published after Open")
	}
}

func TestClose_TearsDownEverything(t *testing.T) {
	opener := newFakeOpener()
	stream := newMemStream("Process", "a\n")
	opener.set("web", stream)
	m := NewManager(opener, testConfig(), nil)
	m.Track("web")
	if err := m.Open(context.Background(), "web"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	m.Close()
	m.Close()
	if !stream.Closed() {
		t.Fatal("stream not closed by Close")
	}
	m.Track("other")
	if ids := m.IDs(); len(ids) != 0 {
		t.Fatalf("IDs() after Close = %v, want none", ids)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Uninitialized:  "uninitialized",
		LoadingInitial: "loading",
		Ready:          "ready",
		Closed:         "closed",
		State(42):      "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
