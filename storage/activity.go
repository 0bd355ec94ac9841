package storage

import (
	"fmt"
	"time"

	"keytap/keyboard"
)

// Session represents one run of the capture hook
type Session struct {
	ID        int64
	StartedAt time.Time
	EndedAt   time.Time
	Presses   int64
}

// StartSession records the beginning of a capture session and returns its ID
func (db *DB) StartSession() (int64, error) {
	result, err := db.conn.Exec(`INSERT INTO sessions (started_at) VALUES (CURRENT_TIMESTAMP)`)
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ID: %w", err)
	}

	return id, nil
}

// EndSession closes a session, recording its final press count
func (db *DB) EndSession(id int64, presses int64) error {
	_, err := db.conn.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP, presses = ? WHERE id = ?`,
		presses, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordCounts folds a batch of per-key press counts into today's totals.
// Only counts are stored, never the sequence the keys were pressed in.
func (db *DB) RecordCounts(counts map[keyboard.VirtualKey]int64) error {
	if len(counts) == 0 {
		return nil
	}

	day := time.Now().Format("2006-01-02")

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO key_counts (day, virtual_key, count) VALUES (?, ?, ?)
		ON CONFLICT(day, virtual_key) DO UPDATE SET count = count + excluded.count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for vk, n := range counts {
		if _, err := stmt.Exec(day, int64(vk), n); err != nil {
			return fmt.Errorf("failed to record count for %s: %w", keyboard.KeyName(vk), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit counts: %w", err)
	}
	return nil
}

// GetSessions retrieves recent sessions, newest first
func (db *DB) GetSessions(limit int) ([]Session, error) {
	rows, err := db.conn.Query(`
		SELECT id, started_at, COALESCE(ended_at, started_at), presses
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &s.Presses); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
