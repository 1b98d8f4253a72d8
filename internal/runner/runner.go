// Package runner owns the recurring sweep that executes due scheduled
// clock-ins. Sweeps never overlap: a compare-and-set guard makes a tick
// that arrives mid-sweep a silent no-op, and a missed tick's due tasks are
// simply picked up by the next one.
package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"clockbot/internal/i18n"
	"clockbot/internal/schedule"
	"clockbot/internal/storage"
	"clockbot/internal/store"
	logx "clockbot/pkg/logx"
)

// Collaborator contracts. The runner borrows task snapshots and owns no
// state of its own beyond the sweep guard.

type Tasks interface {
	Pending() []store.Task
	MarkExecuted(id, errText string) bool
}

type Sessions interface {
	Get(chatID int64) (store.Session, bool)
	Remove(chatID int64)
}

// Action is the injected "perform the clock-in" capability.
type Action interface {
	ClockIn(ctx context.Context, sess store.Session) error
}

// Notifier delivers best-effort user messages; failures are its problem.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string)
}

// Terminal error texts recorded on consumed tasks.
const (
	errUserNotFound   = "User not found"
	errSessionExpired = "Session expired"
)

type Config struct {
	SweepInterval time.Duration // default 5m
	ActionTimeout time.Duration // per clock-in call; 0 leaves the HTTP client's timeout
}

type Runner struct {
	cfg      Config
	tasks    Tasks
	sessions Sessions
	action   Action
	notify   Notifier
	audit    storage.Store // optional
	log      logx.Logger

	now      func() time.Time
	sweeping atomic.Bool
	cron     *cron.Cron
}

func New(cfg Config, tasks Tasks, sessions Sessions, action Action, notify Notifier, audit storage.Store, log logx.Logger) *Runner {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:      cfg,
		tasks:    tasks,
		sessions: sessions,
		action:   action,
		notify:   notify,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// Start schedules the sweep on a fixed interval. Idempotent Stop required.
func (r *Runner) Start() {
	if r.cron != nil {
		return
	}
	r.cron = cron.New()
	r.cron.Schedule(cron.Every(r.cfg.SweepInterval), cron.FuncJob(func() {
		r.Sweep(context.Background())
	}))
	r.cron.Start()
	r.log.Info("runner started", logx.Duration("interval", r.cfg.SweepInterval))
}

// Stop halts the trigger and waits for an in-flight sweep, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	done := r.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("stop timed out with a sweep in flight")
	}
	r.cron = nil
}

// Sweep runs one execution pass over all currently-due pending tasks and
// reports how many it processed. A pass already in flight makes this call
// return immediately with -1.
func (r *Runner) Sweep(ctx context.Context) int {
	if !r.sweeping.CompareAndSwap(false, true) {
		return -1
	}
	defer r.sweeping.Store(false)

	now := r.now()
	var due []store.Task
	for _, t := range r.tasks.Pending() {
		if !t.ScheduledTime.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return 0
	}

	r.log.Debug("sweep starting", logx.Int("due", len(due)))
	for _, task := range due {
		r.processTask(ctx, task)
	}
	return len(due)
}

// processTask resolves the owner session and folds the outcome back into
// the task store. Each task is independent; a failure here never aborts
// the rest of the sweep.
func (r *Runner) processTask(ctx context.Context, task store.Task) {
	texts := i18n.For(i18n.FromLanguageCode(task.Lang))

	sess, ok := r.sessions.Get(task.UserID)
	if !ok {
		r.tasks.MarkExecuted(task.ID, errUserNotFound)
		r.log.Warn("task owner has no session", logx.String("task", task.ID), logx.Int64("chat_id", task.UserID))
		r.recordAudit(ctx, task, 0, errUserNotFound)
		return
	}

	if sess.Expired(r.now()) {
		r.sessions.Remove(task.UserID)
		r.tasks.MarkExecuted(task.ID, errSessionExpired)
		r.notify.Send(ctx, task.UserID, texts.SessionExpired)
		r.log.Info("task owner session expired", logx.String("task", task.ID), logx.Int64("chat_id", task.UserID))
		r.recordAudit(ctx, task, 0, errSessionExpired)
		return
	}

	actionCtx := ctx
	if r.cfg.ActionTimeout > 0 {
		var cancel context.CancelFunc
		actionCtx, cancel = context.WithTimeout(ctx, r.cfg.ActionTimeout)
		defer cancel()
	}

	start := time.Now()
	err := r.action.ClockIn(actionCtx, sess)
	took := time.Since(start)

	if err != nil {
		r.tasks.MarkExecuted(task.ID, err.Error())
		r.notify.Send(ctx, task.UserID, i18n.Format(texts.ScheduledFailed, map[string]string{
			"error": err.Error(),
		}))
		r.log.Warn("scheduled clock-in failed", logx.String("task", task.ID), logx.Int64("chat_id", task.UserID), logx.Err(err), logx.Duration("took", took))
		r.recordAudit(ctx, task, took, err.Error())
		return
	}

	r.tasks.MarkExecuted(task.ID, "")
	r.notify.Send(ctx, task.UserID, i18n.Format(texts.ClockedInScheduled, map[string]string{
		"time": schedule.FormatScheduleTime(task.ScheduledTime, task.TimeZone),
	}))
	r.log.Info("scheduled clock-in done", logx.String("task", task.ID), logx.Int64("chat_id", task.UserID), logx.Duration("took", took))
	r.recordAudit(ctx, task, took, "")
}

func (r *Runner) recordAudit(ctx context.Context, task store.Task, took time.Duration, errText string) {
	if r.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:     r.now().UTC(),
		ChatID: task.UserID,
		UserID: task.UserID,
		Action: "sweep",
		TaskID: task.ID,
		OK:     errText == "",
		Error:  errText,
		TookMS: took.Milliseconds(),
	}
	if err := r.audit.AppendAudit(ctx, e); err != nil {
		r.log.Warn("audit append failed", logx.String("task", task.ID), logx.Err(err))
	}
}

// Sweeping reports whether a sweep is currently in flight. Diagnostic only.
func (r *Runner) Sweeping() bool { return r.sweeping.Load() }
