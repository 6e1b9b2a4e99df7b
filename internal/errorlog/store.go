// Package errorlog implements the Error Event Log (C7): a SQLite-backed,
// append-only catalog of structured errors, queryable by recency,
// severity, component, job, and resolution state.
package errorlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"go.uber.org/zap"
)

// Store is the C7 repository. One Store per process, opened against the
// data directory's logs.db.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating and migrating if necessary) the error event
// database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&_fk=1", path))
	if err != nil {
		return nil, fmt.Errorf("open error log database: %w", err)
	}
	if err := runMigrations(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogError inserts a new error event and returns its assigned ID. Failures
// here are logged but never raised further: the error log must not become
// a new source of crashes for the component reporting into it.
func (s *Store) LogError(event model.ErrorEvent) int64 {
	res, err := s.db.Exec(`
		INSERT INTO error_events (
			timestamp, severity, component, error_type,
			message, details, job_id, job_name,
			stack_trace, resolved, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp, event.Severity, event.Component, event.ErrorType,
		event.Message, event.Details, event.JobID, event.JobName,
		event.StackTrace, event.Resolved, event.ResolvedAt,
	)
	if err != nil {
		s.log.Error("failed to log error event", zap.Error(err))
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

const selectColumns = `id, timestamp, severity, component, error_type, message, details, job_id, job_name, stack_trace, resolved, resolved_at`

func scanEvent(row interface{ Scan(...any) error }) (model.ErrorEvent, error) {
	var e model.ErrorEvent
	err := row.Scan(&e.ID, &e.Timestamp, &e.Severity, &e.Component, &e.ErrorType,
		&e.Message, &e.Details, &e.JobID, &e.JobName, &e.StackTrace, &e.Resolved, &e.ResolvedAt)
	return e, err
}

// Get returns a single error event by ID.
func (s *Store) Get(id int64) (model.ErrorEvent, bool, error) {
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM error_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return model.ErrorEvent{}, false, nil
	}
	if err != nil {
		return model.ErrorEvent{}, false, err
	}
	return e, true, nil
}

// Recent returns the most recent events, optionally filtered by resolved
// state; resolved == nil means "all".
func (s *Store) Recent(limit int, resolved *bool) ([]model.ErrorEvent, error) {
	var rows *sql.Rows
	var err error
	if resolved == nil {
		rows, err = s.db.Query(`SELECT `+selectColumns+` FROM error_events ORDER BY timestamp DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(`SELECT `+selectColumns+` FROM error_events WHERE resolved = ? ORDER BY timestamp DESC LIMIT ?`, *resolved, limit)
	}
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ByJob returns events associated with jobID, most recent first.
func (s *Store) ByJob(jobID string, limit int) ([]model.ErrorEvent, error) {
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM error_events WHERE job_id = ? ORDER BY timestamp DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// BySeverity returns events at the given severity, most recent first.
func (s *Store) BySeverity(severity model.Severity, limit int) ([]model.ErrorEvent, error) {
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM error_events WHERE severity = ? ORDER BY timestamp DESC LIMIT ?`, severity, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.ErrorEvent, error) {
	defer rows.Close()
	var events []model.ErrorEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkResolved flips an event's resolved flag and stamps resolved_at.
func (s *Store) MarkResolved(id int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE error_events SET resolved = 1, resolved_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats summarizes the log for health checks and dashboards.
func (s *Store) Stats() (model.Stats, error) {
	var stats model.Stats
	stats.BySeverity = make(map[string]int)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM error_events`).Scan(&stats.Total); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM error_events WHERE resolved = 0`).Scan(&stats.Unresolved); err != nil {
		return stats, err
	}
	stats.Resolved = stats.Total - stats.Unresolved

	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM error_events WHERE resolved = 0 GROUP BY severity`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.BySeverity[severity] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM error_events WHERE timestamp >= datetime('now', '-1 day')`).Scan(&stats.Recent24h); err != nil {
		return stats, err
	}
	return stats, nil
}

// DeleteOld removes resolved (by default) events older than the given
// number of days, returning the count removed.
func (s *Store) DeleteOld(days int, resolvedOnly bool) (int64, error) {
	query := `DELETE FROM error_events WHERE timestamp < datetime('now', '-' || ? || ' days')`
	if resolvedOnly {
		query = `DELETE FROM error_events WHERE resolved = 1 AND timestamp < datetime('now', '-' || ? || ' days')`
	}
	res, err := s.db.Exec(query, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
