// Package adapter implements the Telegram transport over telebot's long
// poller. It normalizes incoming messages into kit.Update values and
// forwards them to the router's channel; a full channel drops updates and
// reports the count periodically instead of logging per update.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	stopped chan struct{}

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the Telegram poll loop.
	droppedUpdates uint64

	http *http.Client
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b, http: &http.Client{Timeout: 8 * time.Second}}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	forward := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		msg := &kit.Message{
			ID:           m.ID,
			ChatID:       m.Chat.ID,
			FromID:       m.Sender.ID,
			FromUsername: m.Sender.Username,
			LanguageCode: m.Sender.LanguageCode,
			Text:         m.Text,
		}
		if m.Document != nil {
			msg.Document = &kit.Document{
				FileID:   m.Document.FileID,
				FileName: m.Document.FileName,
				Size:     m.Document.FileSize,
			}
		}
		if m.Location != nil {
			msg.Location = &kit.Location{
				Lat:  float64(m.Location.Lat),
				Long: float64(m.Location.Lng),
			}
		}
		a.sendUpdate(kit.Update{Message: msg})
		return nil
	}

	a.bot.Handle(tele.OnText, forward)
	a.bot.Handle(tele.OnDocument, forward)
	a.bot.Handle(tele.OnLocation, forward)
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.stopped = make(chan struct{})
	stopped := a.stopped
	a.runMu.Unlock()

	// Periodic summary for dropped updates (avoid noisy per-update logs).
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopped:
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	}()

	// Stop telebot when the context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			a.bot.Stop()
		case <-stopped:
		}
	}()

	go func() {
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop()
		a.log.Info("polling stopped")
	}()

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	close(a.stopped)

	// telebot Stop is expected to be fast; run it async just in case.
	go a.bot.Stop()
	return nil
}

const telegramTextLimit = 4000

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len([]rune(text)) > telegramTextLimit {
		text = string([]rune(text)[:telegramTextLimit])
	}
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

// DownloadDocument fetches an uploaded file's bytes through the bot API.
func (a *Adapter) DownloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := a.bot.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// UpdateMenuCommands updates Telegram's /menu command list (setMyCommands)
// for one language.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, languageCode string, cmds []kit.BotCommand) error {
	type cmd struct {
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	payload := struct {
		Commands     []cmd  `json:"commands"`
		LanguageCode string `json:"language_code,omitempty"`
	}{LanguageCode: languageCode}

	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if len(d) > 256 {
			d = d[:256]
		}
		payload.Commands = append(payload.Commands, cmd{Command: c.Command, Description: d})
		if len(payload.Commands) >= 100 {
			break
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := "https://api.telegram.org/bot" + strings.TrimSpace(a.cfg.Token) + "/setMyCommands"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode/100 != 2 || !out.OK {
		if out.Description != "" {
			return fmt.Errorf("telegram setMyCommands failed: %s (code=%d http=%d)", out.Description, out.ErrorCode, resp.StatusCode)
		}
		return fmt.Errorf("telegram setMyCommands failed: http=%d", resp.StatusCode)
	}

	a.log.Info("menu commands updated", logx.String("lang", languageCode), logx.Int("count", len(payload.Commands)))
	return nil
}
