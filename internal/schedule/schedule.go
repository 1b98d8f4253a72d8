// Package schedule resolves user-supplied wall-clock times to absolute
// instants and formats instants back for display.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeZone is used when a session carries no zone of its own.
const DefaultTimeZone = "Europe/Madrid"

var (
	ErrUnknownZone      = errors.New("schedule: unknown time zone")
	ErrInvalidClockTime = errors.New("schedule: invalid clock time")
)

const displayFormat = "Mon, 2006-01-02 15:04 MST"

// ParseClockTime parses "H", "H:MM", "3pm", "11:30 am" or a bare 24-hour
// value into a 24-hour (hour, minute) pair. With an am/pm suffix the hour
// must be 1-12; without one it must be 0-23.
func ParseClockTime(raw string) (hour, minute int, ok bool) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "")
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	if strings.HasSuffix(s, "am") {
		meridiem = "am"
		s = strings.TrimSuffix(s, "am")
	} else if strings.HasSuffix(s, "pm") {
		meridiem = "pm"
		s = strings.TrimSuffix(s, "pm")
	}

	hpart, mpart, hasMinute := strings.Cut(s, ":")
	h, err := strconv.Atoi(hpart)
	if err != nil {
		return 0, 0, false
	}
	m := 0
	if hasMinute {
		m, err = strconv.Atoi(mpart)
		if err != nil || strings.Contains(mpart, ":") {
			return 0, 0, false
		}
	}
	if m < 0 || m > 59 {
		return 0, 0, false
	}

	switch meridiem {
	case "am":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		return h % 12, m, true
	case "pm":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		return h%12 + 12, m, true
	default:
		if h < 0 || h > 23 {
			return 0, 0, false
		}
		return h, m, true
	}
}

// NextOccurrence returns the next instant strictly after now at which local
// wall-clock time in zone reads hour:minute:00. A target already passed
// today rolls over to tomorrow.
func NextOccurrence(hour, minute int, zone string, now time.Time) (time.Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidClockTime, hour, minute)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownZone, zone)
	}

	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}

	// A spring-forward gap makes time.Date normalize to a different wall
	// clock than requested; treat that as unschedulable rather than firing
	// at a surprise time.
	if target.Hour() != hour || target.Minute() != minute {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d does not exist in %s on %s",
			ErrInvalidClockTime, hour, minute, zone, target.Format("2006-01-02"))
	}

	return target.UTC(), nil
}

// FormatScheduleTime renders t in zone for user display. The zone was
// validated at scheduling time; if it no longer resolves we fall back to
// the default zone rather than failing a listing.
func FormatScheduleTime(t time.Time, zone string) string {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc, err = time.LoadLocation(DefaultTimeZone)
		if err != nil {
			loc = time.UTC
		}
	}
	return t.In(loc).Format(displayFormat)
}
