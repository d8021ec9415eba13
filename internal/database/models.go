package database

import (
	"time"

	"jordanella.com/imagecenter/internal/cv"
)

// MatchSession is one FindImage or GetDuring call
type MatchSession struct {
	ID         int64      `db:"id"`
	Kind       string     `db:"kind"`
	Templates  []string   `db:"templates"`
	Outcome    string     `db:"outcome"` // 'running' until finished
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// MatchAttempt is one capture-and-match cycle inside a session
type MatchAttempt struct {
	ID            int64      `db:"id"`
	SessionID     int64      `db:"session_id"`
	Template      string     `db:"template"`
	AttemptNumber int        `db:"attempt_number"`
	Outcome       string     `db:"outcome"`
	Points        []cv.Point `db:"points"`
	DurationMs    int64      `db:"duration_ms"`
	ErrorMessage  *string    `db:"error_message"`
	RecordedAt    time.Time  `db:"recorded_at"`
}

// TemplateStatistics summarizes every attempt made for one template
type TemplateStatistics struct {
	Template      string  `db:"template"`
	Attempts      int64   `db:"attempts"`
	Found         int64   `db:"found"`
	CaptureErrors int64   `db:"capture_errors"`
	AvgDurationMs float64 `db:"avg_duration_ms"`
}

// HitRate returns the fraction of attempts that found the template
func (s TemplateStatistics) HitRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Attempts)
}

// SessionRunning is the outcome of a session that has not finished
const SessionRunning = "running"
