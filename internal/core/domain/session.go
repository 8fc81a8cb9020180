package domain

import "time"

type Provider string

const (
	// ProviderOpenF1 serves calendar, timing and telemetry data.
	ProviderOpenF1 Provider = "openf1"
	// ProviderJolpica serves championship standings.
	ProviderJolpica Provider = "jolpica"
)

type Meeting struct {
	MeetingKey  int    `json:"meeting_key"`
	MeetingName string `json:"meeting_name"`
	Year        int    `json:"year"`
}

type Session struct {
	SessionKey  int       `json:"session_key"`
	MeetingKey  int       `json:"meeting_key"`
	SessionName string    `json:"session_name"`
	SessionType string    `json:"session_type"`
	DateStart   time.Time `json:"date_start"`
	DateEnd     time.Time `json:"date_end"`
	Year        int       `json:"year"`
}

// LiveWindow is the polling range of a session expanded by grace periods.
type LiveWindow struct {
	SessionKey  int
	Start       time.Time
	End         time.Time
	BeforeStart time.Duration
	AfterEnd    time.Duration
}

func NewLiveWindow(s *Session, beforeStart, afterEnd time.Duration) LiveWindow {
	return LiveWindow{
		SessionKey:  s.SessionKey,
		Start:       s.DateStart,
		End:         s.DateEnd,
		BeforeStart: beforeStart,
		AfterEnd:    afterEnd,
	}
}

// Contains is inclusive at both boundaries.
func (w LiveWindow) Contains(now time.Time) bool {
	from := w.Start.Add(-w.BeforeStart)
	to := w.End.Add(w.AfterEnd)
	return !now.Before(from) && !now.After(to)
}

// IsSessionInLiveWindow reports false for sessions without timing.
func IsSessionInLiveWindow(s *Session, now time.Time, beforeStart, afterEnd time.Duration) bool {
	if s == nil || s.DateStart.IsZero() || s.DateEnd.IsZero() {
		return false
	}
	return NewLiveWindow(s, beforeStart, afterEnd).Contains(now)
}

// InStandingsWindow is true from Friday 00:00 through the end of Monday, UTC.
func InStandingsWindow(now time.Time) bool {
	switch now.UTC().Weekday() {
	case time.Friday, time.Saturday, time.Sunday, time.Monday:
		return true
	default:
		return false
	}
}
