package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clockbot/internal/store"
	logx "clockbot/pkg/logx"
)

// ---- fakes ----

type fakeTasks struct {
	mu      sync.Mutex
	pending []store.Task
	marks   []mark
}

type mark struct {
	id      string
	errText string
}

func (f *fakeTasks) Pending() []store.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Task(nil), f.pending...)
}

func (f *fakeTasks) MarkExecuted(id, errText string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, mark{id: id, errText: errText})
	kept := f.pending[:0]
	for _, t := range f.pending {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	f.pending = kept
	return true
}

func (f *fakeTasks) allMarks() []mark {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mark(nil), f.marks...)
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[int64]store.Session
	removed  []int64
}

func (f *fakeSessions) Get(chatID int64) (store.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[chatID]
	return s, ok
}

func (f *fakeSessions) Remove(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, chatID)
	f.removed = append(f.removed, chatID)
}

type fakeAction struct {
	mu      sync.Mutex
	err     error
	block   chan struct{} // when non-nil, ClockIn waits for it
	clocked []int64
}

func (f *fakeAction) ClockIn(ctx context.Context, sess store.Session) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clocked = append(f.clocked, sess.UserID)
	return f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) Send(ctx context.Context, chatID int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
}

func (f *fakeNotifier) allSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// ---- helpers ----

var fixedNow = time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC)

func dueTask(id string, userID int64) store.Task {
	return store.Task{
		ID:            id,
		UserID:        userID,
		Lang:          "en",
		TimeZone:      "Europe/Madrid",
		ScheduledTime: fixedNow.Add(-time.Minute),
		Status:        store.StatusPending,
	}
}

func freshSession(userID int64) store.Session {
	return store.Session{
		UserID:  userID,
		Cookies: store.Cookies{Expires: fixedNow.Add(time.Hour).UnixMilli(), Domain: "acme.bizneo.com"},
	}
}

func newTestRunner(tasks *fakeTasks, sessions *fakeSessions, action *fakeAction, notify *fakeNotifier) *Runner {
	r := New(Config{}, tasks, sessions, action, notify, nil, logx.Nop())
	r.now = func() time.Time { return fixedNow }
	return r
}

// ---- tests ----

func TestSweepExecutesDueTasks(t *testing.T) {
	t.Parallel()
	tasks := &fakeTasks{pending: []store.Task{
		dueTask("due-1", 10),
		{ID: "future", UserID: 10, Lang: "en", ScheduledTime: fixedNow.Add(time.Hour), Status: store.StatusPending},
	}}
	sessions := &fakeSessions{sessions: map[int64]store.Session{10: freshSession(10)}}
	action := &fakeAction{}
	notify := &fakeNotifier{}

	r := newTestRunner(tasks, sessions, action, notify)
	if n := r.Sweep(context.Background()); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}

	marks := tasks.allMarks()
	if len(marks) != 1 || marks[0].id != "due-1" || marks[0].errText != "" {
		t.Fatalf("marks = %+v", marks)
	}
	if len(action.clocked) != 1 || action.clocked[0] != 10 {
		t.Fatalf("clocked = %v", action.clocked)
	}
	sent := notify.allSent()
	if len(sent) != 1 || !strings.Contains(sent[0], "Clocked in as scheduled") {
		t.Fatalf("sent = %v", sent)
	}
}

func TestSweepMissingSession(t *testing.T) {
	t.Parallel()
	tasks := &fakeTasks{pending: []store.Task{dueTask("t1", 77)}}
	sessions := &fakeSessions{sessions: map[int64]store.Session{}}
	action := &fakeAction{}
	notify := &fakeNotifier{}

	r := newTestRunner(tasks, sessions, action, notify)
	r.Sweep(context.Background())

	marks := tasks.allMarks()
	if len(marks) != 1 || marks[0].errText != "User not found" {
		t.Fatalf("marks = %+v", marks)
	}
	if len(action.clocked) != 0 {
		t.Fatalf("action ran without a session: %v", action.clocked)
	}
}

func TestSweepExpiredSession(t *testing.T) {
	t.Parallel()
	stale := freshSession(10)
	stale.Cookies.Expires = fixedNow.Add(-time.Minute).UnixMilli()

	tasks := &fakeTasks{pending: []store.Task{dueTask("t1", 10)}}
	sessions := &fakeSessions{sessions: map[int64]store.Session{10: stale}}
	action := &fakeAction{}
	notify := &fakeNotifier{}

	r := newTestRunner(tasks, sessions, action, notify)
	r.Sweep(context.Background())

	marks := tasks.allMarks()
	if len(marks) != 1 || marks[0].errText != "Session expired" {
		t.Fatalf("marks = %+v", marks)
	}
	if len(sessions.removed) != 1 || sessions.removed[0] != 10 {
		t.Fatalf("removed = %v", sessions.removed)
	}
	sent := notify.allSent()
	if len(sent) != 1 || !strings.Contains(sent[0], "expired") {
		t.Fatalf("sent = %v", sent)
	}
	if len(action.clocked) != 0 {
		t.Fatal("action ran with an expired session")
	}
}

func TestSweepActionFailureDoesNotAbortOthers(t *testing.T) {
	t.Parallel()
	tasks := &fakeTasks{pending: []store.Task{dueTask("t1", 10), dueTask("t2", 20)}}
	sessions := &fakeSessions{sessions: map[int64]store.Session{
		10: freshSession(10),
		20: freshSession(20),
	}}
	action := &fakeAction{err: errors.New("HTTP 403")}
	notify := &fakeNotifier{}

	r := newTestRunner(tasks, sessions, action, notify)
	if n := r.Sweep(context.Background()); n != 2 {
		t.Fatalf("Sweep = %d, want 2", n)
	}

	marks := tasks.allMarks()
	if len(marks) != 2 {
		t.Fatalf("marks = %+v", marks)
	}
	for _, m := range marks {
		if m.errText != "HTTP 403" {
			t.Fatalf("mark = %+v, want HTTP 403", m)
		}
	}
	sent := notify.allSent()
	if len(sent) != 2 || !strings.Contains(sent[0], "HTTP 403") {
		t.Fatalf("sent = %v", sent)
	}
}

func TestSweepGuardExcludesConcurrentSweeps(t *testing.T) {
	t.Parallel()
	tasks := &fakeTasks{pending: []store.Task{dueTask("t1", 10)}}
	sessions := &fakeSessions{sessions: map[int64]store.Session{10: freshSession(10)}}
	action := &fakeAction{block: make(chan struct{})}
	notify := &fakeNotifier{}

	r := newTestRunner(tasks, sessions, action, notify)

	firstDone := make(chan int, 1)
	go func() { firstDone <- r.Sweep(context.Background()) }()

	// Wait until the first sweep is parked inside the action call.
	deadline := time.After(2 * time.Second)
	for !r.Sweeping() {
		select {
		case <-deadline:
			t.Fatal("first sweep never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if n := r.Sweep(context.Background()); n != -1 {
		t.Fatalf("second Sweep = %d, want -1 (skipped)", n)
	}
	if got := len(tasks.allMarks()); got != 0 {
		t.Fatalf("second sweep processed tasks: %d marks", got)
	}

	close(action.block)
	if n := <-firstDone; n != 1 {
		t.Fatalf("first Sweep = %d, want 1", n)
	}
	if r.Sweeping() {
		t.Fatal("guard not released after sweep")
	}

	// Guard is usable again.
	if n := r.Sweep(context.Background()); n != 0 {
		t.Fatalf("third Sweep = %d, want 0", n)
	}
}

func TestSweepGuardReleasedOnEmptySweep(t *testing.T) {
	t.Parallel()
	r := newTestRunner(&fakeTasks{}, &fakeSessions{}, &fakeAction{}, &fakeNotifier{})
	if n := r.Sweep(context.Background()); n != 0 {
		t.Fatalf("Sweep = %d, want 0", n)
	}
	if r.Sweeping() {
		t.Fatal("guard left set")
	}
}
