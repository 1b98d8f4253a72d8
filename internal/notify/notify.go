// Package notify delivers user-facing messages, best-effort. Send never
// returns an error: delivery failures are logged and dropped, so callers
// (the runner mid-sweep in particular) are never coupled to Telegram's
// availability.
package notify

import (
	"context"

	"golang.org/x/time/rate"

	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

type Config struct {
	// RatePerSec caps outbound sends (Telegram throttles bots around 30/s
	// globally). 0 disables the limiter.
	RatePerSec int
}

type Service struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Service{adapter: adapter, limiter: limiter, log: log}
}

func (s *Service) Send(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Debug("send dropped while waiting on rate limit", logx.Int64("chat_id", chatID), logx.Err(err))
			return
		}
	}
	if err := s.adapter.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
