package config

import (
	"sort"
	"strings"

	logx "clockbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging. The Telegram token is never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Runner != newCfg.Runner {
		changed = append(changed, "runner")
		attrs = append(attrs,
			logx.String("runner.sweep_interval", strings.TrimSpace(newCfg.Runner.SweepInterval)),
			logx.String("runner.action_timeout", strings.TrimSpace(newCfg.Runner.ActionTimeout)),
		)
	}

	if oldCfg.Bizneo != newCfg.Bizneo {
		changed = append(changed, "bizneo")
		attrs = append(attrs,
			logx.String("bizneo.request_timeout", strings.TrimSpace(newCfg.Bizneo.RequestTimeout)),
		)
	}

	oldRate, newRate := 0, 0
	if oldCfg.Notifier != nil {
		oldRate = oldCfg.Notifier.RatePerSec
	}
	if newCfg.Notifier != nil {
		newRate = newCfg.Notifier.RatePerSec
	}
	if oldRate != newRate {
		changed = append(changed, "notifier")
		attrs = append(attrs, logx.Int("notifier.rate_per_sec", newRate))
	}

	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	if strings.TrimSpace(oldCfg.DataDir) != strings.TrimSpace(newCfg.DataDir) ||
		strings.TrimSpace(oldCfg.DefaultTimeZone) != strings.TrimSpace(newCfg.DefaultTimeZone) {
		changed = append(changed, "general")
		attrs = append(attrs,
			logx.String("data_dir", strings.TrimSpace(newCfg.DataDir)),
			logx.String("default_time_zone", strings.TrimSpace(newCfg.DefaultTimeZone)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
