package storage

import (
	"fmt"

	"keytap/keyboard"
)

// DailyStats represents press activity for a single day
type DailyStats struct {
	Day          string `json:"day"`
	TotalPresses int64  `json:"total_presses"`
	DistinctKeys int    `json:"distinct_keys"`
}

// KeyStats represents the aggregate count for one key
type KeyStats struct {
	VirtualKey uint16 `json:"virtual_key"`
	Name       string `json:"name"`
	Count      int64  `json:"count"`
}

// OverallStats represents overall activity
type OverallStats struct {
	TotalPresses int64   `json:"total_presses"`
	DistinctKeys int     `json:"distinct_keys"`
	ActiveDays   int     `json:"active_days"`
	Sessions     int     `json:"sessions"`
	AvgPerDay    float64 `json:"avg_per_day"`
}

// GetOverallStats retrieves aggregate activity for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	query := `
		SELECT
			COALESCE(SUM(count), 0) as total_presses,
			COUNT(DISTINCT virtual_key) as distinct_keys,
			COUNT(DISTINCT day) as active_days
		FROM key_counts
		WHERE day >= DATE('now', '-' || ? || ' days')
	`

	var stats OverallStats
	err := db.conn.QueryRow(query, days).Scan(
		&stats.TotalPresses,
		&stats.DistinctKeys,
		&stats.ActiveDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	err = db.conn.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE started_at >= datetime('now', '-' || ? || ' days')`,
		days,
	).Scan(&stats.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to query session count: %w", err)
	}

	if stats.ActiveDays > 0 {
		stats.AvgPerDay = float64(stats.TotalPresses) / float64(stats.ActiveDays)
	}

	return &stats, nil
}

// GetDailyStats retrieves per-day activity for the last N days, newest first
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			day,
			SUM(count) as total_presses,
			COUNT(*) as distinct_keys
		FROM key_counts
		WHERE day >= DATE('now', '-' || ? || ' days')
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Day, &s.TotalPresses, &s.DistinctKeys); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetTopKeys retrieves the most pressed keys over the last N days
func (db *DB) GetTopKeys(days, limit int) ([]KeyStats, error) {
	query := `
		SELECT virtual_key, SUM(count) as total
		FROM key_counts
		WHERE day >= DATE('now', '-' || ? || ' days')
		GROUP BY virtual_key
		ORDER BY total DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keys: %w", err)
	}
	defer rows.Close()

	var stats []KeyStats
	for rows.Next() {
		var s KeyStats
		if err := rows.Scan(&s.VirtualKey, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan key stats: %w", err)
		}
		s.Name = keyboard.KeyName(keyboard.VirtualKey(s.VirtualKey))
		stats = append(stats, s)
	}

	return stats, rows.Err()
}
