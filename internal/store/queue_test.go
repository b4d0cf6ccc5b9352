package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

func TestQueueStore_AddAndGet(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	item := &QueueItem{
		TrackID:   "track-123",
		SourceURL: "http://server/api/tracks/track-123/stream",
		FileName:  "song.mp3",
		FileSize:  1024,
	}

	if err := store.Add(item); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("Expected store-assigned id, got 0")
	}

	retrieved, err := store.GetByTrackID("track-123")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected item, got nil")
	}
	if retrieved.Status != StatusPending {
		t.Errorf("Expected status pending, got %s", retrieved.Status)
	}
	if retrieved.FileName != "song.mp3" {
		t.Errorf("Expected file name song.mp3, got %s", retrieved.FileName)
	}
}

func TestQueueStore_GetByTrackID_Absent(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	retrieved, err := store.GetByTrackID("missing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if retrieved != nil {
		t.Errorf("Expected nil for absent track, got %+v", retrieved)
	}
}

func TestQueueStore_NextPending_FIFO(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	for _, id := range []string{"first", "second", "third"} {
		if err := store.Add(&QueueItem{TrackID: id}); err != nil {
			t.Fatalf("Failed to add item: %v", err)
		}
	}

	next, err := store.NextPending()
	if err != nil {
		t.Fatalf("Failed to get next pending: %v", err)
	}
	if next.TrackID != "first" {
		t.Errorf("Expected first, got %s", next.TrackID)
	}

	// Drained rows must not come back
	if err := store.Delete(next.ID); err != nil {
		t.Fatalf("Failed to delete item: %v", err)
	}

	next, err = store.NextPending()
	if err != nil {
		t.Fatalf("Failed to get next pending: %v", err)
	}
	if next.TrackID != "second" {
		t.Errorf("Expected second, got %s", next.TrackID)
	}
}

func TestQueueStore_NextPending_Empty(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	next, err := store.NextPending()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if next != nil {
		t.Errorf("Expected nil on empty queue, got %+v", next)
	}
}

func TestQueueStore_Reset(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	item := &QueueItem{TrackID: "track-1", SourceURL: "http://old"}
	if err := store.Add(item); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	if err := store.MarkFailed(item.ID, "network down"); err != nil {
		t.Fatalf("Failed to mark failed: %v", err)
	}
	if err := store.SetProgress(item.ID, 42); err != nil {
		t.Fatalf("Failed to set progress: %v", err)
	}

	if err := store.Reset(item.ID, "http://new"); err != nil {
		t.Fatalf("Failed to reset item: %v", err)
	}

	retrieved, err := store.GetByID(item.ID)
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if retrieved.Status != StatusPending {
		t.Errorf("Expected status pending, got %s", retrieved.Status)
	}
	if retrieved.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", retrieved.Progress)
	}
	if retrieved.ErrorMessage != "" {
		t.Errorf("Expected empty error message, got %q", retrieved.ErrorMessage)
	}
	if retrieved.SourceURL != "http://new" {
		t.Errorf("Expected refreshed source url, got %s", retrieved.SourceURL)
	}
	if retrieved.CompletedAt != nil {
		t.Error("Expected completed_at cleared")
	}
}

func TestQueueStore_MarkFailed(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	item := &QueueItem{TrackID: "track-1"}
	if err := store.Add(item); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	if err := store.MarkFailed(item.ID, "transfer: incomplete payload"); err != nil {
		t.Fatalf("Failed to mark failed: %v", err)
	}

	retrieved, _ := store.GetByID(item.ID)
	if retrieved.Status != StatusFailed {
		t.Errorf("Expected status failed, got %s", retrieved.Status)
	}
	if retrieved.ErrorMessage == "" {
		t.Error("Expected non-empty error message")
	}
	if retrieved.CompletedAt == nil {
		t.Error("Expected completed_at set")
	}
}

func TestQueueStore_CancelByTrackID(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	item := &QueueItem{TrackID: "track-1"}
	if err := store.Add(item); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}
	if err := store.SetStatus(item.ID, StatusDownloading); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	affected, err := store.CancelByTrackID("track-1")
	if err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if affected != 1 {
		t.Errorf("Expected 1 row affected, got %d", affected)
	}

	retrieved, _ := store.GetByID(item.ID)
	if retrieved.Status != StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", retrieved.Status)
	}

	// Terminal rows are not re-cancelled
	affected, err = store.CancelByTrackID("track-1")
	if err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if affected != 0 {
		t.Errorf("Expected 0 rows affected, got %d", affected)
	}
}

func TestQueueStore_ResetStuckDownloading(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	stuck := &QueueItem{TrackID: "stuck"}
	done := &QueueItem{TrackID: "done"}
	if err := store.Add(stuck); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}
	if err := store.Add(done); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	store.SetStatus(stuck.ID, StatusDownloading)
	store.MarkFailed(done.ID, "boom")

	repaired, err := store.ResetStuckDownloading()
	if err != nil {
		t.Fatalf("Failed to reset stuck downloads: %v", err)
	}
	if repaired != 1 {
		t.Errorf("Expected 1 repaired row, got %d", repaired)
	}

	retrieved, _ := store.GetByID(stuck.ID)
	if retrieved.Status != StatusPending {
		t.Errorf("Expected status pending, got %s", retrieved.Status)
	}

	failed, _ := store.GetByID(done.ID)
	if failed.Status != StatusFailed {
		t.Errorf("Failed row must stay failed, got %s", failed.Status)
	}
}

func TestQueueStore_GetStats(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	a := &QueueItem{TrackID: "a"}
	b := &QueueItem{TrackID: "b"}
	c := &QueueItem{TrackID: "c"}
	for _, item := range []*QueueItem{a, b, c} {
		if err := store.Add(item); err != nil {
			t.Fatalf("Failed to add item: %v", err)
		}
	}
	store.SetStatus(b.ID, StatusDownloading)
	store.MarkFailed(c.ID, "boom")

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("Expected total 3, got %d", stats.Total)
	}
	if stats.Pending != 1 {
		t.Errorf("Expected 1 pending, got %d", stats.Pending)
	}
	if stats.Downloading != 1 {
		t.Errorf("Expected 1 downloading, got %d", stats.Downloading)
	}
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", stats.Failed)
	}
}

func TestQueueStore_ClearAll(t *testing.T) {
	store := NewQueueStore(setupTestDB(t))

	for _, id := range []string{"a", "b"} {
		if err := store.Add(&QueueItem{TrackID: id}); err != nil {
			t.Fatalf("Failed to add item: %v", err)
		}
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("Failed to clear queue: %v", err)
	}

	items, err := store.GetAll()
	if err != nil {
		t.Fatalf("Failed to get items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty queue, got %d items", len(items))
	}
}
