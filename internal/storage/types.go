package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "clockbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free append-only JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one clock-in attempt, manual or scheduled.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time `json:"at"`
	ChatID int64     `json:"chatId"`
	UserID int64     `json:"userId"`
	Action string    `json:"action"` // "clocknow" | "sweep"
	TaskID string    `json:"taskId,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"tookMs"`
}

// Store is the audit API used by the runner and the command handlers.
// Appends are best-effort: callers log failures and move on.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// Recent returns up to limit entries for one chat, newest first.
	Recent(ctx context.Context, chatID int64, limit int) ([]AuditEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
