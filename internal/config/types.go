package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "clockbot/pkg/logx"
)

// TokenEnvVar overrides telegram.token when set. Keeps the token out of the
// config file on shared machines.
const TokenEnvVar = "TELEGRAM_BOT_TOKEN"

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// DataDir holds the task and session JSON files.
	DataDir string `json:"data_dir,omitempty"`

	// DefaultTimeZone is used for chats that never ran /settimezone.
	DefaultTimeZone string `json:"default_time_zone,omitempty"`

	Runner   RunnerConfig    `json:"runner"`
	Bizneo   BizneoConfig    `json:"bizneo,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RunnerConfig controls the due-task sweep.
// Durations are Go duration strings (e.g. "5m", "30s").
type RunnerConfig struct {
	SweepInterval string `json:"sweep_interval,omitempty"`
	ActionTimeout string `json:"action_timeout,omitempty"`
}

type BizneoConfig struct {
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// NotifierConfig controls outbound message pacing. Nil means defaults.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the optional clock-in audit log. Nil means disabled.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./clockbot_audit.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate checks the fields main cannot start without and fills defaults.
func (c *Config) Validate() error {
	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		c.Telegram.Token = env
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", TokenEnvVar)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.DefaultTimeZone) == "" {
		c.DefaultTimeZone = "Europe/Madrid"
	}
	if _, err := time.LoadLocation(c.DefaultTimeZone); err != nil {
		return fmt.Errorf("default_time_zone: unknown zone %q", c.DefaultTimeZone)
	}
	return nil
}

func (c *Config) TasksPath() string { return filepath.Join(c.DataDir, "tasks.json") }
func (c *Config) UsersPath() string { return filepath.Join(c.DataDir, "users.json") }

func (c *Config) LogxConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
}

func (c *Config) SweepInterval() (time.Duration, error) {
	return ParseDurationOrDefault("runner.sweep_interval", c.Runner.SweepInterval, 5*time.Minute)
}

func (c *Config) ActionTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("runner.action_timeout", c.Runner.ActionTimeout, 30*time.Second)
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("bizneo.request_timeout", c.Bizneo.RequestTimeout, 15*time.Second)
}
