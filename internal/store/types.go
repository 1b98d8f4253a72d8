package store

import "time"

// TaskStatus is the terminal-state machine of a scheduled clock-in.
// Transitions only ever go pending -> executed or pending -> failed.
type TaskStatus string

const (
	StatusPending  TaskStatus = "pending"
	StatusExecuted TaskStatus = "executed"
	StatusFailed   TaskStatus = "failed"
)

// CancelledError is the sentinel stored when a user cancels a task.
// Cancellation shares the failed status; downstream listing keys off
// exactly three status values.
const CancelledError = "cancelled"

// Task is one requested future clock-in. Field names are a stable file
// contract; external readers depend on them.
type Task struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"userId"`
	Lang          string     `json:"lang"`
	Locale        string     `json:"locale"`
	TimeZone      string     `json:"timeZone"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExecutedAt    *time.Time `json:"executedAt"`
	Status        TaskStatus `json:"status"`
	Error         *string    `json:"error"`
}

// GeoData is the decoded geolocation blob from the cookie export.
type GeoData struct {
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
	Accuracy int64   `json:"accuracy"`
}

// Cookies carries the replayable browser session. Expires is a millisecond
// epoch taken from the cookie's expirationDate.
type Cookies struct {
	Geo      string `json:"geo"`
	Hcmex    string `json:"hcmex"`
	DeviceID string `json:"deviceId"`
	Domain   string `json:"domain"`
	Expires  int64  `json:"expires"`
}

// Session binds a chat to a replayable credential and display data.
// UserID is decoded from the credential once, when the session is created.
type Session struct {
	UserID   int64   `json:"userId"`
	Geo      GeoData `json:"geo"`
	TimeZone string  `json:"timeZone,omitempty"`
	Cookies  Cookies `json:"cookies"`
}

// Expired reports whether the session's cookie deadline has passed.
func (s Session) Expired(now time.Time) bool {
	return s.Cookies.Expires <= now.UnixMilli()
}
