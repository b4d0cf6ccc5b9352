package store

import (
	"testing"
	"time"

	"github.com/playvault/playvault-go/internal/api"
)

func TestPlaylistStore_SaveAndGet(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	playlist := &OfflinePlaylist{
		ID:   "pl-1",
		Name: "Road Trip",
		Tracks: []api.Track{
			{ID: "t1", FileName: "one.mp3"},
			{ID: "t2", FileName: "two.mp3"},
		},
		AutoSync: true,
	}

	if err := store.Save(playlist); err != nil {
		t.Fatalf("Failed to save playlist: %v", err)
	}
	if playlist.TrackCount != 2 {
		t.Errorf("Expected track count 2 after save, got %d", playlist.TrackCount)
	}

	retrieved, err := store.Get("pl-1")
	if err != nil {
		t.Fatalf("Failed to get playlist: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected playlist, got nil")
	}
	if len(retrieved.Tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(retrieved.Tracks))
	}
	if retrieved.Tracks[0].ID != "t1" || retrieved.Tracks[1].ID != "t2" {
		t.Errorf("Track order not preserved: %v", retrieved.TrackIDs())
	}
	if !retrieved.AutoSync {
		t.Error("Expected auto_sync preserved")
	}
}

func TestPlaylistStore_Get_Absent(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	retrieved, err := store.Get("missing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if retrieved != nil {
		t.Errorf("Expected nil for absent playlist, got %+v", retrieved)
	}
}

func TestPlaylistStore_Save_ReplacesSnapshot(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	store.Save(&OfflinePlaylist{
		ID:     "pl-1",
		Name:   "Old Name",
		Tracks: []api.Track{{ID: "t1"}},
	})
	store.Save(&OfflinePlaylist{
		ID:     "pl-1",
		Name:   "New Name",
		Tracks: []api.Track{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}},
	})

	retrieved, _ := store.Get("pl-1")
	if retrieved.Name != "New Name" {
		t.Errorf("Expected New Name, got %s", retrieved.Name)
	}
	if retrieved.TrackCount != 3 {
		t.Errorf("Expected track count 3, got %d", retrieved.TrackCount)
	}

	count, _ := store.Count()
	if count != 1 {
		t.Errorf("Expected 1 snapshot, got %d", count)
	}
}

func TestPlaylistStore_GetAutoSync(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	store.Save(&OfflinePlaylist{ID: "auto", Name: "Auto", Tracks: []api.Track{}, AutoSync: true})
	store.Save(&OfflinePlaylist{ID: "manual", Name: "Manual", Tracks: []api.Track{}})

	playlists, err := store.GetAutoSync()
	if err != nil {
		t.Fatalf("Failed to get auto-sync playlists: %v", err)
	}
	if len(playlists) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(playlists))
	}
	if playlists[0].ID != "auto" {
		t.Errorf("Expected auto, got %s", playlists[0].ID)
	}
}

func TestPlaylistStore_SetAutoSyncAndLastSynced(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	store.Save(&OfflinePlaylist{ID: "pl-1", Name: "P", Tracks: []api.Track{}})

	if err := store.SetAutoSync("pl-1", true); err != nil {
		t.Fatalf("Failed to set auto-sync: %v", err)
	}

	syncedAt := time.Now().Truncate(time.Second)
	if err := store.SetLastSynced("pl-1", syncedAt); err != nil {
		t.Fatalf("Failed to set last synced: %v", err)
	}

	retrieved, _ := store.Get("pl-1")
	if !retrieved.AutoSync {
		t.Error("Expected auto_sync enabled")
	}
	if retrieved.LastSyncedAt == nil {
		t.Fatal("Expected last_synced_at set")
	}

	if err := store.SetAutoSync("missing", true); err == nil {
		t.Error("Expected error for absent playlist")
	}
}

func TestPlaylistStore_Delete(t *testing.T) {
	store := NewPlaylistStore(setupTestDB(t))

	store.Save(&OfflinePlaylist{ID: "pl-1", Name: "P", Tracks: []api.Track{}})

	if err := store.Delete("pl-1"); err != nil {
		t.Fatalf("Failed to delete playlist: %v", err)
	}

	retrieved, _ := store.Get("pl-1")
	if retrieved != nil {
		t.Error("Expected playlist deleted")
	}

	if err := store.Delete("pl-1"); err == nil {
		t.Error("Expected error deleting absent playlist")
	}
}
