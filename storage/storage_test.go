package storage

import (
	"path/filepath"
	"testing"

	"keytap/keyboard"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "activity.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open with missing parent failed: %v", err)
	}
	db.Close()
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartSession()
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero session ID")
	}

	if err := db.EndSession(id, 42); err != nil {
		t.Fatalf("end session failed: %v", err)
	}

	sessions, err := db.GetSessions(10)
	if err != nil {
		t.Fatalf("get sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	if sessions[0].ID != id || sessions[0].Presses != 42 {
		t.Fatalf("unexpected session row: %+v", sessions[0])
	}
}

func TestRecordCountsUpserts(t *testing.T) {
	db := openTestDB(t)

	if err := db.RecordCounts(map[keyboard.VirtualKey]int64{keyboard.VKA: 3}); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	if err := db.RecordCounts(map[keyboard.VirtualKey]int64{keyboard.VKA: 2, keyboard.VKSpace: 1}); err != nil {
		t.Fatalf("second batch failed: %v", err)
	}

	top, err := db.GetTopKeys(7, 10)
	if err != nil {
		t.Fatalf("top keys failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected two keys, got %d", len(top))
	}
	if top[0].Name != "a" || top[0].Count != 5 {
		t.Fatalf("expected a=5 first, got %+v", top[0])
	}
	if top[1].Name != "space" || top[1].Count != 1 {
		t.Fatalf("expected space=1 second, got %+v", top[1])
	}
}

func TestOverallStatsArithmetic(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.StartSession(); err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	err := db.RecordCounts(map[keyboard.VirtualKey]int64{
		keyboard.VKA:     4,
		keyboard.VKSpace: 2,
	})
	if err != nil {
		t.Fatalf("record counts failed: %v", err)
	}

	stats, err := db.GetOverallStats(7)
	if err != nil {
		t.Fatalf("overall stats failed: %v", err)
	}
	if stats.TotalPresses != 6 {
		t.Fatalf("expected 6 presses, got %d", stats.TotalPresses)
	}
	if stats.DistinctKeys != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", stats.DistinctKeys)
	}
	if stats.ActiveDays != 1 {
		t.Fatalf("expected 1 active day, got %d", stats.ActiveDays)
	}
	if stats.Sessions != 1 {
		t.Fatalf("expected 1 session, got %d", stats.Sessions)
	}
	if stats.AvgPerDay != 6 {
		t.Fatalf("expected 6 presses per day, got %v", stats.AvgPerDay)
	}
}

func TestDailyStatsGroupByDay(t *testing.T) {
	db := openTestDB(t)

	err := db.RecordCounts(map[keyboard.VirtualKey]int64{
		keyboard.VKA:      1,
		keyboard.VKReturn: 3,
	})
	if err != nil {
		t.Fatalf("record counts failed: %v", err)
	}

	daily, err := db.GetDailyStats(7)
	if err != nil {
		t.Fatalf("daily stats failed: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("expected one day of stats, got %d", len(daily))
	}
	if daily[0].TotalPresses != 4 || daily[0].DistinctKeys != 2 {
		t.Fatalf("unexpected daily row: %+v", daily[0])
	}
}

func TestStatsOnEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.GetOverallStats(30)
	if err != nil {
		t.Fatalf("overall stats failed: %v", err)
	}
	if stats.TotalPresses != 0 || stats.ActiveDays != 0 || stats.AvgPerDay != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}

	if err := db.RecordCounts(nil); err != nil {
		t.Fatalf("expected an empty batch to be a no-op, got %v", err)
	}
}
