package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlaylistClient_GetAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/playlists" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"playlists": [
			{"id": "pl-1", "name": "Mix", "tracks": [{"id": "t1", "title": "Song"}]},
			{"id": "pl-2", "name": "Other", "tracks": []}
		]}`))
	}))
	defer server.Close()

	pc := NewPlaylistClient(newTestClient(server.URL))

	playlists, err := pc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(playlists) != 2 {
		t.Fatalf("Expected 2 playlists, got %d", len(playlists))
	}
	if playlists[0].ID != "pl-1" || playlists[0].Name != "Mix" {
		t.Errorf("Unexpected first playlist: %+v", playlists[0])
	}
	if len(playlists[0].Tracks) != 1 || playlists[0].Tracks[0].ID != "t1" {
		t.Errorf("Unexpected tracks: %+v", playlists[0].Tracks)
	}
}

func TestPlaylistClient_GetByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/playlists/pl-1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "pl-1", "name": "Mix", "tracks": [{"id": "t1"}, {"id": "t2"}]}`))
	}))
	defer server.Close()

	pc := NewPlaylistClient(newTestClient(server.URL))

	playlist, err := pc.GetByID(context.Background(), "pl-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if playlist.ID != "pl-1" {
		t.Errorf("Unexpected playlist id: %s", playlist.ID)
	}
	if len(playlist.Tracks) != 2 {
		t.Errorf("Expected 2 tracks, got %d", len(playlist.Tracks))
	}
}

func TestPlaylistClient_GetByIDErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	pc := NewPlaylistClient(newTestClient(server.URL))

	if _, err := pc.GetByID(context.Background(), "pl-1"); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestPlaylistClient_AddTrack(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	pc := NewPlaylistClient(newTestClient(server.URL))

	if err := pc.AddTrack(context.Background(), "pl-1", "t9"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/playlists/pl-1/tracks" {
		t.Errorf("Unexpected request: %s %s", gotMethod, gotPath)
	}
	if gotBody["track_id"] != "t9" {
		t.Errorf("Unexpected body: %v", gotBody)
	}
}

func TestPlaylistClient_ReorderTracks(t *testing.T) {
	var gotBody map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Expected PUT, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pc := NewPlaylistClient(newTestClient(server.URL))

	order := []string{"t3", "t1", "t2"}
	if err := pc.ReorderTracks(context.Background(), "pl-1", order); err != nil {
		t.Fatalf("ReorderTracks failed: %v", err)
	}

	ids := gotBody["track_ids"]
	if len(ids) != 3 || ids[0] != "t3" || ids[2] != "t2" {
		t.Errorf("Unexpected track order: %v", ids)
	}
}
