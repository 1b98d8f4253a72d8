package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "clockbot/pkg/logx"
)

// TaskStore owns the scheduled-task collection and its backing JSON file
// (one array of Task records, rewritten wholesale on every mutation).
type TaskStore struct {
	mu    sync.Mutex
	path  string
	log   logx.Logger
	tasks []Task

	now func() time.Time
}

func NewTaskStore(path string, log logx.Logger) (*TaskStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &TaskStore{path: path, log: log, now: time.Now}
	loadJSONFile(path, &s.tasks, log)
	return s, nil
}

// Add creates a pending task and persists. It never fails on valid input.
func (s *TaskStore) Add(userID int64, scheduledAt time.Time, lang, locale, timeZone string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{
		ID:            uuid.NewString(),
		UserID:        userID,
		Lang:          lang,
		Locale:        locale,
		TimeZone:      timeZone,
		ScheduledTime: scheduledAt.UTC(),
		CreatedAt:     s.now().UTC(),
		Status:        StatusPending,
	}
	s.tasks = append(s.tasks, t)
	saveJSONFile(s.path, s.tasks, s.log)
	return t
}

// Pending returns all pending tasks, earliest due first.
func (s *TaskStore) Pending() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t Task) bool { return t.Status == StatusPending })
}

// ByUser returns one owner's tasks in scheduled order.
func (s *TaskStore) ByUser(userID int64) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(t Task) bool { return t.UserID == userID })
}

func (s *TaskStore) filterLocked(keep func(Task) bool) []Task {
	var out []Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// MarkExecuted records the terminal outcome of a task. An empty errText
// means success (executed, executedAt stamped); otherwise the task is
// failed with errText. Returns false when id is unknown. Re-invoking on a
// terminal task overwrites its state; the runner never does that within
// one sweep.
func (s *TaskStore) MarkExecuted(id string, errText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return false
	}

	if errText != "" {
		t.Status = StatusFailed
		t.Error = &errText
	} else {
		t.Status = StatusExecuted
		now := s.now().UTC()
		t.ExecutedAt = &now
		t.Error = nil
	}
	saveJSONFile(s.path, s.tasks, s.log)
	return true
}

// Cancel retires a task with the cancellation sentinel. Returns false when
// id is unknown.
func (s *TaskStore) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return false
	}
	sentinel := CancelledError
	t.Status = StatusFailed
	t.Error = &sentinel
	saveJSONFile(s.path, s.tasks, s.log)
	return true
}

func (s *TaskStore) findLocked(id string) *Task {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return &s.tasks[i]
		}
	}
	return nil
}
