package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	logx "clockbot/pkg/logx"
)

// The stores are file-as-database on purpose: every mutation rewrites the
// whole backing file so the on-disk state always matches memory. I/O
// failures are logged and swallowed; the in-memory copy stays authoritative
// for the process lifetime.

func loadJSONFile(path string, out any, log logx.Logger) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("read failed, starting empty", logx.String("path", path), logx.Err(err))
		}
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Error("parse failed, starting empty", logx.String("path", path), logx.Err(err))
	}
}

func saveJSONFile(path string, v any, log logx.Logger) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("marshal failed", logx.String("path", path), logx.Err(err))
		return
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		log.Error("write failed", logx.String("path", path), logx.Err(err))
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
