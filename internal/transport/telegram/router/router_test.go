package router

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clockbot/internal/i18n"
	"clockbot/internal/notify"
	"clockbot/internal/store"
	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeAdapter struct {
	mu    sync.Mutex
	sent  []sentMessage
	docs  map[string][]byte
	menus map[string][]kit.BotCommand

	downloadErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		docs:  map[string][]byte{},
		menus: map[string][]kit.BotCommand{},
	}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeAdapter) DownloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	raw, ok := f.docs[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return raw, nil
}

func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, languageCode string, cmds []kit.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus[languageCode] = cmds
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAction struct {
	mu    sync.Mutex
	calls []store.Session
	err   error
}

func (a *fakeAction) ClockIn(ctx context.Context, sess store.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, sess)
	return a.err
}

func (a *fakeAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

var routerNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	router   *Router
	adapter  *fakeAdapter
	sessions *store.SessionStore
	tasks    *store.TaskStore
	action   *fakeAction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logx.Nop()

	sessions, err := store.NewSessionStore(filepath.Join(dir, "users.json"), log)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	tasks, err := store.NewTaskStore(filepath.Join(dir, "tasks.json"), log)
	if err != nil {
		t.Fatalf("NewTaskStore: %v", err)
	}

	adapter := newFakeAdapter()
	action := &fakeAction{}
	r := New(Config{DefaultTimeZone: "UTC"}, adapter, notify.New(notify.Config{}, adapter, log), sessions, tasks, action, nil, log)
	r.now = func() time.Time { return routerNow }

	return &fixture{router: r, adapter: adapter, sessions: sessions, tasks: tasks, action: action}
}

func (f *fixture) putSession(chatID int64) store.Session {
	sess := store.Session{
		UserID:   42,
		Geo:      store.GeoData{Lat: 40.4, Long: -3.7, Accuracy: 20},
		TimeZone: "UTC",
		Cookies: store.Cookies{
			Geo:      "blob",
			Hcmex:    "token",
			DeviceID: "dev-1",
			Domain:   "acme.bizneo.com",
			Expires:  routerNow.Add(24 * time.Hour).UnixMilli(),
		},
	}
	f.sessions.Put(chatID, sess)
	return sess
}

func textMessage(chatID int64, text string) *kit.Message {
	return &kit.Message{ID: 1, ChatID: chatID, FromID: chatID, LanguageCode: "en", Text: text}
}

func TestStartCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), textMessage(7, "/start"))

	got := f.adapter.lastSent(t)
	if got.chatID != 7 {
		t.Fatalf("chatID = %d, want 7", got.chatID)
	}
	if got.text != i18n.For(i18n.LangEN).Start {
		t.Fatalf("text = %q, want start text", got.text)
	}
}

func TestStartCommandSpanish(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg := textMessage(7, "/start")
	msg.LanguageCode = "es-ES"
	f.router.dispatch(context.Background(), msg)

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangES).Start {
		t.Fatalf("text = %q, want spanish start text", got.text)
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), textMessage(7, "/start@clockbot"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).Start {
		t.Fatalf("text = %q, want start text", got.text)
	}
}

func TestClockNowWithoutSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), textMessage(7, "/clocknow"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).LoginRequired {
		t.Fatalf("text = %q, want login prompt", got.text)
	}
	if f.action.callCount() != 0 {
		t.Fatal("action called without a session")
	}
}

func TestClockNowExpiredSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.putSession(7)
	sess.Cookies.Expires = routerNow.Add(-time.Hour).UnixMilli()
	f.sessions.Put(7, sess)

	f.router.dispatch(context.Background(), textMessage(7, "/clocknow"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).SessionExpired {
		t.Fatalf("text = %q, want session-expired", got.text)
	}
	if _, ok := f.sessions.Get(7); ok {
		t.Fatal("expired session not removed")
	}
}

func TestClockNowSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/clocknow"))

	if f.action.callCount() != 1 {
		t.Fatalf("action calls = %d, want 1", f.action.callCount())
	}
	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).ClockedInNow {
		t.Fatalf("text = %q, want success text", got.text)
	}
}

func TestClockNowFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)
	f.action.err = errors.New("HTTP 403")

	f.router.dispatch(context.Background(), textMessage(7, "/clocknow"))

	got := f.adapter.lastSent(t)
	if !strings.Contains(got.text, "HTTP 403") {
		t.Fatalf("text = %q, want the action error echoed", got.text)
	}
}

func TestClockInSchedulesTask(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/clockin 09:30"))

	pending := f.tasks.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	task := pending[0]
	if task.UserID != 7 {
		t.Fatalf("task.UserID = %d, want 7", task.UserID)
	}
	want := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	if !task.ScheduledTime.Equal(want) {
		t.Fatalf("ScheduledTime = %v, want %v", task.ScheduledTime, want)
	}
	if got := f.adapter.lastSent(t); !strings.Contains(got.text, task.ID) {
		t.Fatalf("reply %q does not mention the task id", got.text)
	}
}

func TestClockInBadTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/clockin soon"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).InvalidClockIn {
		t.Fatalf("text = %q, want invalid-time text", got.text)
	}
	if len(f.tasks.Pending()) != 0 {
		t.Fatal("task scheduled from a bad time")
	}
}

func TestClockInWithoutArgument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/clockin"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).UsageClockIn {
		t.Fatalf("text = %q, want usage text", got.text)
	}
}

func TestCancelByID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)
	task := f.tasks.Add(7, routerNow.Add(time.Hour), "en", "en-US", "UTC")

	f.router.dispatch(context.Background(), textMessage(7, "/cancel "+task.ID))

	got := f.tasks.ByUser(7)
	if len(got) != 1 || got[0].Status != store.StatusFailed {
		t.Fatalf("task not cancelled: %+v", got)
	}
	if got[0].Error == nil || *got[0].Error != store.CancelledError {
		t.Fatalf("error = %v, want cancelled sentinel", got[0].Error)
	}
}

func TestCancelForeignTask(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)
	other := f.tasks.Add(99, routerNow.Add(time.Hour), "en", "en-US", "UTC")

	f.router.dispatch(context.Background(), textMessage(7, "/cancel "+other.ID))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).CancelNotFound {
		t.Fatalf("text = %q, want not-found text", got.text)
	}
	if got := f.tasks.ByUser(99); got[0].Status != store.StatusPending {
		t.Fatal("foreign task was cancelled")
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)
	f.tasks.Add(7, routerNow.Add(time.Hour), "en", "en-US", "UTC")
	f.tasks.Add(7, routerNow.Add(2*time.Hour), "en", "en-US", "UTC")
	f.tasks.MarkExecuted(f.tasks.Add(7, routerNow.Add(3*time.Hour), "en", "en-US", "UTC").ID, "")

	f.router.dispatch(context.Background(), textMessage(7, "/cancel all"))

	if got := f.adapter.lastSent(t); !strings.Contains(got.text, "2") {
		t.Fatalf("text = %q, want 2 cancellations reported", got.text)
	}
	if left := f.tasks.Pending(); len(left) != 0 {
		t.Fatalf("pending after cancel all = %d", len(left))
	}
}

func TestCancelAllNothingPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/cancel all"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).CancelAllNone {
		t.Fatalf("text = %q, want nothing-pending text", got.text)
	}
}

func TestListShowsTasks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)
	pending := f.tasks.Add(7, routerNow.Add(time.Hour), "en", "en-US", "UTC")
	failed := f.tasks.Add(7, routerNow.Add(2*time.Hour), "en", "en-US", "UTC")
	f.tasks.MarkExecuted(failed.ID, "HTTP 500")

	f.router.dispatch(context.Background(), textMessage(7, "/list"))

	got := f.adapter.lastSent(t).text
	for _, want := range []string{pending.ID, failed.ID, "⏳", "❌", "HTTP 500"} {
		if !strings.Contains(got, want) {
			t.Fatalf("list %q missing %q", got, want)
		}
	}
}

func TestListEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), textMessage(7, "/list"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).ListEmpty {
		t.Fatalf("text = %q, want empty-list text", got.text)
	}
}

func TestSetTimezone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/settimezone Europe/Madrid"))

	sess, ok := f.sessions.Get(7)
	if !ok || sess.TimeZone != "Europe/Madrid" {
		t.Fatalf("time zone not saved: %+v", sess)
	}
}

func TestSetTimezoneInvalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/settimezone Mars/Olympus"))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).SetTimezoneInvalid {
		t.Fatalf("text = %q, want invalid-zone text", got.text)
	}
	if sess, _ := f.sessions.Get(7); sess.TimeZone != "UTC" {
		t.Fatalf("time zone changed to %q", sess.TimeZone)
	}
}

// etfSessionToken builds a signed-looking Phoenix token whose payload is a
// map with a single integer user_id.
func etfSessionToken(userID int32) string {
	key := "user_id"
	var b []byte
	b = append(b, 131)
	b = append(b, 116, 0, 0, 0, 1)
	b = append(b, 109, 0, 0, 0, byte(len(key)))
	b = append(b, key...)
	b = append(b, 98)
	b = binary.BigEndian.AppendUint32(b, uint32(userID))
	return "SFMyNTY." + base64.StdEncoding.EncodeToString(b) + ".c2ln"
}

func cookieExport(userID int32, expires time.Time) []byte {
	geo := base64.StdEncoding.EncodeToString([]byte(`{"lat":40.4,"long":-3.7,"accuracy":20}`))
	return []byte(fmt.Sprintf(`[
		{"name":"geo","value":%q,"domain":"acme.bizneo.com"},
		{"name":"_hcmex_key","value":%q,"domain":"acme.bizneo.com","expirationDate":%f},
		{"name":"device_id","value":"dev-1","domain":"acme.bizneo.com"}
	]`, geo, etfSessionToken(userID), float64(expires.Unix())))
}

func documentMessage(chatID int64, fileName string, size int64) *kit.Message {
	msg := textMessage(chatID, "")
	msg.Document = &kit.Document{FileID: "file-1", FileName: fileName, Size: size}
	return msg
}

func TestDocumentUploadCreatesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.adapter.docs["file-1"] = cookieExport(314, routerNow.Add(48*time.Hour))

	f.router.dispatch(context.Background(), documentMessage(7, "cookies.json", 512))

	sess, ok := f.sessions.Get(7)
	if !ok {
		t.Fatal("no session saved")
	}
	if sess.UserID != 314 {
		t.Fatalf("UserID = %d, want 314", sess.UserID)
	}
	if sess.Geo.Lat != 40.4 || sess.Geo.Long != -3.7 {
		t.Fatalf("geo = %+v", sess.Geo)
	}
	if sess.TimeZone != "UTC" {
		t.Fatalf("TimeZone = %q, want config default", sess.TimeZone)
	}
	if got := f.adapter.lastSent(t); !strings.Contains(got.text, "acme.bizneo.com") {
		t.Fatalf("reply %q does not mention the domain", got.text)
	}
}

func TestDocumentUploadKeepsChosenTimezone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.putSession(7)
	sess.TimeZone = "America/Bogota"
	f.sessions.Put(7, sess)
	f.adapter.docs["file-1"] = cookieExport(314, routerNow.Add(48*time.Hour))

	f.router.dispatch(context.Background(), documentMessage(7, "cookies.json", 512))

	if got, _ := f.sessions.Get(7); got.TimeZone != "America/Bogota" {
		t.Fatalf("TimeZone = %q, want preserved zone", got.TimeZone)
	}
}

func TestDocumentWrongExtension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), documentMessage(7, "cookies.txt", 512))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).DocInvalid {
		t.Fatalf("text = %q, want invalid-doc text", got.text)
	}
}

func TestDocumentTooLarge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), documentMessage(7, "cookies.json", 6<<20))

	if got := f.adapter.lastSent(t); got.text != i18n.For(i18n.LangEN).DocTooLarge {
		t.Fatalf("text = %q, want too-large text", got.text)
	}
}

func TestDocumentWithoutSessionCookie(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.adapter.docs["file-1"] = []byte(`[{"name":"geo","value":"x"}]`)

	f.router.dispatch(context.Background(), documentMessage(7, "cookies.json", 64))

	got := f.adapter.lastSent(t)
	if !strings.Contains(got.text, "_hcmex_key") {
		t.Fatalf("text = %q, want parse error echoed", got.text)
	}
	if _, ok := f.sessions.Get(7); ok {
		t.Fatal("session saved from a bad export")
	}
}

func TestLocationUpdatesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	msg := textMessage(7, "")
	msg.Location = &kit.Location{Lat: 41.38, Long: 2.17}
	f.router.dispatch(context.Background(), msg)

	sess, _ := f.sessions.Get(7)
	if sess.Geo.Lat != 41.38 || sess.Geo.Long != 2.17 {
		t.Fatalf("geo = %+v", sess.Geo)
	}
	if sess.Geo.Accuracy != 20 {
		t.Fatalf("accuracy = %d, want preserved", sess.Geo.Accuracy)
	}
	blob, err := base64.StdEncoding.DecodeString(sess.Cookies.Geo)
	if err != nil {
		t.Fatalf("geo cookie not re-encoded: %v", err)
	}
	if !strings.Contains(string(blob), "41.38") {
		t.Fatalf("geo cookie %q missing new latitude", blob)
	}
}

func TestDataSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.putSession(7)

	f.router.dispatch(context.Background(), textMessage(7, "/data"))

	got := f.adapter.lastSent(t).text
	for _, want := range []string{"42", "acme.bizneo.com", "40.4", "-3.7"} {
		if !strings.Contains(got, want) {
			t.Fatalf("data %q missing %q", got, want)
		}
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.dispatch(context.Background(), textMessage(7, "/frobnicate"))

	if n := f.adapter.sentCount(); n != 0 {
		t.Fatalf("sent %d messages for an unknown command", n)
	}
}

func TestRegisterMenus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.RegisterMenus(context.Background())

	f.adapter.mu.Lock()
	defer f.adapter.mu.Unlock()
	if len(f.adapter.menus[""]) == 0 || len(f.adapter.menus["es"]) == 0 {
		t.Fatalf("menus = %v, want default and es lists", f.adapter.menus)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 1)
	updates <- kit.Update{Message: textMessage(7, "/start")}

	done := make(chan struct{})
	go func() {
		f.router.Run(ctx, updates)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for f.adapter.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("update never dispatched")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
