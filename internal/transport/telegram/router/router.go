// Package router dispatches normalized chat updates to the bot's command
// handlers. It is the thin glue between the Telegram adapter and the core
// stores, scheduler and clock-in client.
package router

import (
	"context"
	"strings"
	"time"

	"clockbot/internal/i18n"
	"clockbot/internal/storage"
	"clockbot/internal/store"
	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

// Action performs the clock-in; *bizneo.Client satisfies it.
type Action interface {
	ClockIn(ctx context.Context, sess store.Session) error
}

// Notifier sends best-effort replies; *notify.Service satisfies it.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string)
}

type Config struct {
	DefaultTimeZone string
	ActionTimeout   time.Duration
	MaxDocBytes     int64
	HistoryLimit    int
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeZone == "" {
		c.DefaultTimeZone = "Europe/Madrid"
	}
	if c.MaxDocBytes <= 0 {
		c.MaxDocBytes = 5 << 20
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	return c
}

type Router struct {
	cfg      Config
	adapter  kit.Adapter
	notify   Notifier
	sessions *store.SessionStore
	tasks    *store.TaskStore
	action   Action
	audit    storage.Store // optional
	log      logx.Logger

	now func() time.Time
}

func New(cfg Config, adapter kit.Adapter, notify Notifier, sessions *store.SessionStore, tasks *store.TaskStore, action Action, audit storage.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cfg:      cfg.withDefaults(),
		adapter:  adapter,
		notify:   notify,
		sessions: sessions,
		tasks:    tasks,
		action:   action,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// Run consumes updates until ctx is done.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message != nil {
				r.dispatch(ctx, up.Message)
			}
		}
	}
}

func (r *Router) dispatch(ctx context.Context, msg *kit.Message) {
	lang := i18n.FromLanguageCode(msg.LanguageCode)
	texts := i18n.For(lang)

	if msg.Document != nil {
		r.handleDocument(ctx, msg, lang, texts)
		return
	}
	if msg.Location != nil {
		r.handleLocation(ctx, msg, texts)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	cmd := firstToken(msg.Text)
	cmd = strings.ToLower(cmd)
	// Group chats suffix commands with the bot name.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		r.notify.Send(ctx, msg.ChatID, texts.Start)
	case "/clocknow":
		r.handleClockNow(ctx, msg, texts)
	case "/clockin":
		r.handleClockIn(ctx, msg, lang, texts)
	case "/list":
		r.handleList(ctx, msg, texts)
	case "/cancel":
		r.handleCancel(ctx, msg, texts)
	case "/data":
		r.handleData(ctx, msg, texts)
	case "/location":
		r.handleShowLocation(ctx, msg, texts)
	case "/settimezone":
		r.handleSetTimezone(ctx, msg, texts)
	case "/history":
		r.handleHistory(ctx, msg, texts)
	default:
		if strings.HasPrefix(cmd, "/") {
			return
		}
		r.log.Debug("unhandled message", logx.String("from", msg.FromUsername))
	}
}

// requireSession resolves a fresh session for the chat, replying with the
// appropriate prompt when there is none or it has expired.
func (r *Router) requireSession(ctx context.Context, chatID int64, texts i18n.Texts) (store.Session, bool) {
	sess, ok := r.sessions.Get(chatID)
	if !ok {
		r.notify.Send(ctx, chatID, texts.LoginRequired)
		return store.Session{}, false
	}
	if sess.Expired(r.now()) {
		r.sessions.Remove(chatID)
		r.notify.Send(ctx, chatID, texts.SessionExpired)
		return store.Session{}, false
	}
	return sess, true
}

func (r *Router) userTimeZone(sess store.Session) string {
	if strings.TrimSpace(sess.TimeZone) != "" {
		return sess.TimeZone
	}
	return r.cfg.DefaultTimeZone
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// commandArg returns everything after the command token, trimmed.
func commandArg(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[i:])
}
