package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"clockbot/internal/bizneo"
	"clockbot/internal/i18n"
	"clockbot/internal/phxtoken"
	"clockbot/internal/schedule"
	"clockbot/internal/store"
	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

// handleDocument ingests a cookie-editor JSON export and turns it into a
// saved session for the chat.
func (r *Router) handleDocument(ctx context.Context, msg *kit.Message, lang i18n.Lang, texts i18n.Texts) {
	doc := msg.Document
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".json") {
		r.notify.Send(ctx, msg.ChatID, texts.DocInvalid)
		return
	}
	if doc.Size > r.cfg.MaxDocBytes {
		r.notify.Send(ctx, msg.ChatID, texts.DocTooLarge)
		return
	}

	raw, err := r.adapter.DownloadDocument(ctx, doc.FileID)
	if err != nil {
		r.log.Warn("document download failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.DocError, map[string]string{"error": err.Error()}))
		return
	}
	if int64(len(raw)) > r.cfg.MaxDocBytes {
		r.notify.Send(ctx, msg.ChatID, texts.DocTooLarge)
		return
	}

	cookies, err := bizneo.ParseCookieExport(raw)
	if err != nil {
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.DocError, map[string]string{"error": err.Error()}))
		return
	}
	geo, err := bizneo.DecodeGeoBlob(cookies.Geo)
	if err != nil {
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.DocError, map[string]string{"error": err.Error()}))
		return
	}
	userID, err := phxtoken.UserID(cookies.Hcmex)
	if err != nil {
		r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.DocError, map[string]string{"error": err.Error()}))
		return
	}

	// A re-uploaded export keeps the chat's chosen time zone.
	zone := r.cfg.DefaultTimeZone
	if prev, ok := r.sessions.Get(msg.ChatID); ok && prev.TimeZone != "" {
		zone = prev.TimeZone
	}

	sess := store.Session{
		UserID:   userID,
		Geo:      geo,
		TimeZone: zone,
		Cookies:  cookies,
	}
	r.sessions.Put(msg.ChatID, sess)
	r.log.Info("session saved",
		logx.Int64("chat", msg.ChatID),
		logx.Int64("user", userID),
		logx.String("domain", cookies.Domain))

	details := i18n.Format(texts.DocDetails, map[string]string{
		"lat":     strconv.FormatFloat(geo.Lat, 'f', -1, 64),
		"long":    strconv.FormatFloat(geo.Long, 'f', -1, 64),
		"link":    mapsLink(geo),
		"domain":  cookies.Domain,
		"expires": schedule.FormatScheduleTime(time.UnixMilli(cookies.Expires), zone),
	})
	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.DocParsed, map[string]string{"details": details}))
}

// handleLocation overwrites the session's geolocation with a shared pin.
func (r *Router) handleLocation(ctx context.Context, msg *kit.Message, texts i18n.Texts) {
	sess, ok := r.requireSession(ctx, msg.ChatID, texts)
	if !ok {
		return
	}

	geo := store.GeoData{
		Lat:      msg.Location.Lat,
		Long:     msg.Location.Long,
		Accuracy: sess.Geo.Accuracy,
	}
	blob, err := bizneo.EncodeGeoBlob(geo)
	if err != nil {
		r.log.Warn("geo encode failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		return
	}
	sess.Geo = geo
	sess.Cookies.Geo = blob
	r.sessions.Put(msg.ChatID, sess)

	r.notify.Send(ctx, msg.ChatID, i18n.Format(texts.LocationUpdated, map[string]string{"link": mapsLink(geo)}))
}
