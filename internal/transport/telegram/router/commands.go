package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clockbot/internal/i18n"
	"clockbot/internal/schedule"
	"clockbot/internal/storage"
	"clockbot/internal/store"
	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

func localeFor(lang i18n.Lang) string {
	if lang == i18n.LangES {
		return "es-ES"
	}
	return "en-US"
}

func mapsLink(geo store.GeoData) string {
	return fmt.Sprintf("https://www.google.com/search?q=%s%%2C+%s",
		strconv.FormatFloat(geo.Lat, 'f', -1, 64),
		strconv.FormatFloat(geo.Long, 'f', -1, 64))
}

func (r *Router) handleClockNow(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}

	actionCtx := ctx
	if r.cfg.ActionTimeout > 0 {
		var cancel context.CancelFunc
		actionCtx, cancel = context.WithTimeout(ctx, r.cfg.ActionTimeout)
		defer cancel()
	}

	started := r.now()
	err := r.action.ClockIn(actionCtx, sess)
	r.recordAudit(ctx, storage.AuditEntry{
		At:     started,
		ChatID: msg.ChatID,
		UserID: sess.UserID,
		Action: "clocknow",
		OK:     err == nil,
		Error:  errText(err),
		TookMS: r.now().Sub(started).Milliseconds(),
	})
	if err != nil {
		r.log.Warn("clocknow failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.ClockNowError, map[string]string{"error": err.Error()}))
		return
	}
	r.notify.Send(ctx, msg.ChatID, texts.ClockedInNow)
}

func (r *Router) handleClockIn(ctx context.Context, msg *kit.Message, lang i18n.Lang, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}

	arg := commandArg(msg.Text)
	if arg == "" {
		r.notify.Send(ctx, msg.ChatID, texts.UsageClockIn)
		return
	}
	hour, minute, ok := schedule.ParseClockTime(arg)
	if !ok {
		r.notify.Send(ctx, msg.ChatID, texts.InvalidClockIn)
		return
	}

	zone := r.userTimeZone(sess)
	at, err := schedule.NextOccurrence(hour, minute, zone, r.now())
	if err != nil {
		r.log.Warn("schedule failed", logx.Int64("chat", msg.ChatID), logx.String("zone", zone), logx.Err(err))
		r.notify.Send(ctx, msg.ChatID, texts.InvalidClockIn)
		return
	}

	task := r.tasks.Add(msg.ChatID, at, string(lang), localeFor(lang), zone)
	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.ScheduledClockIn, map[string]string{
		"time": schedule.FormatScheduleTime(task.ScheduledTime, zone),
		"id":   task.ID,
	}))
}

func (r *Router) handleList(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	zone := r.cfg.DefaultTimeZone
	if sess, ok := r.sessions.Get(msg.ChatID); ok {
		if sess.Expired(r.now()) {
			r.sessions.Remove(msg.ChatID)
			r.notify.Send(ctx, msg.ChatID, texts.SessionExpired)
		} else {
			zone = r.userTimeZone(sess)
		}
	}

	tasks := r.tasks.ByUser(msg.ChatID)
	if len(tasks) == 0 {
		r.notify.Send(ctx, msg.ChatID, texts.ListEmpty)
		return
	}

	var b strings.Builder
	b.WriteString(texts.ListHeader)
	for _, t := range tasks {
		b.WriteString("\n")
		b.WriteString(statusEmoji(t.Status))
		b.WriteString(" ")
		b.WriteString(schedule.FormatScheduleTime(t.ScheduledTime, zone))
		b.WriteString(" - ")
		b.WriteString(statusText(t.Status, texts))
		if t.Status == store.StatusFailed && t.Error != nil && *t.Error != store.CancelledError {
			b.WriteString(" (")
			b.WriteString(*t.Error)
			b.WriteString(")")
		}
		b.WriteString("\n  id: ")
		b.WriteString(t.ID)
	}
	r.notify.Send(ctx, msg.ChatID, b.String())
}

func statusEmoji(s store.TaskStatus) string {
	switch s {
	case store.StatusExecuted:
		return "✅"
	case store.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

func statusText(s store.TaskStatus, texts i18n.Texts) string {
	switch s {
	case store.StatusExecuted:
		return texts.StatusExecuted
	case store.StatusFailed:
		return texts.StatusFailed
	default:
		return texts.StatusPending
	}
}

func (r *Router) handleCancel(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	arg := commandArg(msg.Text)
	if arg == "" {
		r.notify.Send(ctx, msg.ChatID, texts.CancelUsage)
		return
	}

	if strings.EqualFold(arg, "all") {
		count := 0
		for _, t := range r.tasks.ByUser(msg.ChatID) {
			if t.Status == store.StatusPending && r.tasks.Cancel(t.ID) {
				count++
			}
		}
		if count == 0 {
			r.notify.Send(ctx, msg.ChatID, texts.CancelAllNone)
			return
		}
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.CancelAllOK, map[string]string{"count": strconv.Itoa(count)}))
		return
	}

	owned := false
	for _, t := range r.tasks.ByUser(msg.ChatID) {
		if t.ID == arg {
			owned = true
			break
		}
	}
	if !owned {
		r.notify.Send(ctx, msg.ChatID, texts.CancelNotFound)
		return
	}
	if !r.tasks.Cancel(arg) {
		r.notify.Send(ctx, msg.ChatID, texts.CancelFail)
		return
	}
	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.CancelOK, map[string]string{"id": arg}))
}

func (r *Router) handleData(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}

	cookieStatus := func(set bool) string {
		if set {
			return texts.StatusSet
		}
		return texts.StatusMissing
	}

	lines := []string{
		texts.DataHeader,
		i18n.Format(texts.DataUserID, map[string]string{"userId": strconv.FormatInt(sess.UserID, 10)}),
		i18n.Format(texts.DataLocation, map[string]string{
			"lat":      strconv.FormatFloat(sess.Geo.Lat, 'f', -1, 64),
			"long":     strconv.FormatFloat(sess.Geo.Long, 'f', -1, 64),
			"accuracy": strconv.FormatInt(sess.Geo.Accuracy, 10),
		}),
		i18n.Format(texts.DataDomain, map[string]string{"domain": sess.Cookies.Domain}),
		texts.DataCookies,
		i18n.Format(texts.DataCookieHcmex, map[string]string{"status": cookieStatus(sess.Cookies.Hcmex != "")}),
		i18n.Format(texts.DataCookieDevice, map[string]string{"status": cookieStatus(sess.Cookies.DeviceID != "")}),
		i18n.Format(texts.DataCookieGeo, map[string]string{"status": cookieStatus(sess.Cookies.Geo != "")}),
		i18n.Format(texts.DataExpires, map[string]string{
			"expires": schedule.FormatScheduleTime(time.UnixMilli(sess.Cookies.Expires), r.userTimeZone(sess)),
		}),
	}
	r.notify.Send(ctx, msg.ChatID, strings.Join(lines, "\n"))
}

func (r *Router) handleShowLocation(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}
	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.LocationUpdated, map[string]string{"link": mapsLink(sess.Geo)}))
}

func (r *Router) handleSetTimezone(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}

	arg := commandArg(msg.Text)
	if arg == "" {
		r.notify.Send(ctx, msg.ChatID, texts.SetTimezoneUsage)
		return
	}
	if _, err := time.LoadLocation(arg); err != nil {
		r.notify.Send(ctx, msg.ChatID, texts.SetTimezoneInvalid)
		return
	}

	sess.TimeZone = arg
	r.sessions.Put(msg.ChatID, sess)
	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.SetTimezoneOK, map[string]string{"tz": arg}))
}

func (r *Router) handleHistory(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	if r.audit == nil {
		r.notify.Send(ctx, msg.ChatID, texts.HistoryEmpty)
		return
	}
	entries, err := r.audit.Recent(ctx, msg.ChatID, r.cfg.HistoryLimit)
	if err != nil {
		r.log.Warn("history read failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		r.notify.Send(ctx, msg.ChatID, texts.HistoryEmpty)
		return
	}
	if len(entries) == 0 {
		r.notify.Send(ctx, msg.ChatID, texts.HistoryEmpty)
		return
	}

	zone := r.cfg.DefaultTimeZone
	if sess, ok := r.sessions.Get(msg.ChatID); ok {
		zone = r.userTimeZone(sess)
	}

	var b strings.Builder
	b.WriteString(texts.HistoryHeader)
	for _, e := range entries {
		b.WriteString("\n")
		if e.OK {
			b.WriteString("✅ ")
		} else {
			b.WriteString("❌ ")
		}
		b.WriteString(schedule.FormatScheduleTime(e.At, zone))
		b.WriteString(" ")
		b.WriteString(e.Action)
		if e.Error != "" {
			b.WriteString(" (")
			b.WriteString(e.Error)
			b.WriteString(")")
		}
	}
	r.notify.Send(ctx, msg.ChatID, b.String())
}

func (r *Router) recordAudit(ctx context.Context, e storage.AuditEntry) {
	if r.audit == nil {
		return
	}
	if err := r.audit.AppendAudit(ctx, e); err != nil {
		r.log.Warn("audit append failed", logx.Err(err))
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
