package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jordanella.com/imagecenter/internal/cv"
)

// ErrSessionNotFound is returned for an unknown session ID
var ErrSessionNotFound = errors.New("match session not found")

// History stores polling sessions and attempts. It implements cv.Recorder.
type History struct {
	db  *DB
	now func() time.Time
}

// NewHistory creates a recorder over a migrated database
func NewHistory(db *DB) *History {
	return &History{db: db, now: time.Now}
}

// BeginSession inserts a running session and returns its ID
func (h *History) BeginSession(kind string, templates []string) (int64, error) {
	names, err := json.Marshal(templates)
	if err != nil {
		return 0, fmt.Errorf("failed to encode templates: %w", err)
	}

	var id int64
	err = h.db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO match_sessions (kind, templates, outcome, started_at)
			VALUES (?, ?, ?, ?)
		`, kind, string(names), SessionRunning, h.now())
		if err != nil {
			return fmt.Errorf("failed to insert match session: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecordAttempt appends an attempt to a session
func (h *History) RecordAttempt(sessionID int64, a cv.Attempt) error {
	points := a.Points
	if points == nil {
		points = []cv.Point{}
	}
	encoded, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}

	var errMsg *string
	if a.Err != nil {
		msg := a.Err.Error()
		errMsg = &msg
	}

	_, err = h.db.conn.Exec(`
		INSERT INTO match_attempts (
			session_id, template, attempt_number, outcome,
			points, duration_ms, error_message, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, a.Template, a.Number, a.Outcome,
		string(encoded), a.Duration.Milliseconds(), errMsg, h.now())
	if err != nil {
		return fmt.Errorf("failed to insert match attempt: %w", err)
	}
	return nil
}

// FinishSession stores the final outcome of a session
func (h *History) FinishSession(sessionID int64, outcome string) error {
	result, err := h.db.conn.Exec(`
		UPDATE match_sessions
		SET outcome = ?, finished_at = ?
		WHERE id = ?
	`, outcome, h.now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish match session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// GetSession retrieves a session by ID
func (h *History) GetSession(id int64) (*MatchSession, error) {
	row := h.db.conn.QueryRow(`
		SELECT id, kind, templates, outcome, started_at, finished_at
		FROM match_sessions
		WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions, newest first
func (h *History) ListSessions(limit int) ([]*MatchSession, error) {
	rows, err := h.db.conn.Query(`
		SELECT id, kind, templates, outcome, started_at, finished_at
		FROM match_sessions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list match sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*MatchSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ListAttempts returns a session's attempts in the order they were made
func (h *History) ListAttempts(sessionID int64) ([]*MatchAttempt, error) {
	rows, err := h.db.conn.Query(`
		SELECT id, session_id, template, attempt_number, outcome,
			points, duration_ms, error_message, recorded_at
		FROM match_attempts
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*MatchAttempt
	for rows.Next() {
		var a MatchAttempt
		var points string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Template, &a.AttemptNumber, &a.Outcome,
			&points, &a.DurationMs, &a.ErrorMessage, &a.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &a.Points); err != nil {
			return nil, fmt.Errorf("attempt %d: bad points: %w", a.ID, err)
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// TemplateStats returns per-template totals ordered by template name
func (h *History) TemplateStats() ([]TemplateStatistics, error) {
	rows, err := h.db.conn.Query(`
		SELECT template, attempts, found, capture_errors, avg_duration_ms
		FROM v_template_statistics
		ORDER BY template
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query template statistics: %w", err)
	}
	defer rows.Close()

	var stats []TemplateStatistics
	for rows.Next() {
		var s TemplateStatistics
		if err := rows.Scan(&s.Template, &s.Attempts, &s.Found, &s.CaptureErrors, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan template statistics: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// PruneBefore deletes sessions started before cutoff together with their attempts
func (h *History) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := h.db.conn.Exec(`DELETE FROM match_sessions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune match sessions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*MatchSession, error) {
	var s MatchSession
	var templates string
	var finished sql.NullTime
	if err := row.Scan(&s.ID, &s.Kind, &templates, &s.Outcome, &s.StartedAt, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(templates), &s.Templates); err != nil {
		return nil, fmt.Errorf("session %d: bad templates: %w", s.ID, err)
	}
	if finished.Valid {
		t := finished.Time
		s.FinishedAt = &t
	}
	return &s, nil
}
