package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playvault/playvault-go/internal/api"
)

// OfflinePlaylist is a point-in-time snapshot of a server playlist saved for
// offline use. TrackCount always equals len(Tracks) at save time; it is stored
// separately so listings can skip deserializing the track array.
type OfflinePlaylist struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	TrackCount   int         `json:"track_count"`
	Tracks       []api.Track `json:"tracks"`
	SavedAt      time.Time   `json:"saved_at"`
	AutoSync     bool        `json:"auto_sync"`
	LastSyncedAt *time.Time  `json:"last_synced_at,omitempty"`
}

// TrackIDs returns the ids of the snapshot's tracks in order
func (p *OfflinePlaylist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// PlaylistStore manages offline playlist snapshots in the database
type PlaylistStore struct {
	db *sql.DB
}

// NewPlaylistStore creates a new PlaylistStore
func NewPlaylistStore(db *sql.DB) *PlaylistStore {
	return &PlaylistStore{db: db}
}

// Save upserts a playlist snapshot, replacing any existing snapshot with the
// same id.
func (ps *PlaylistStore) Save(playlist *OfflinePlaylist) error {
	if playlist.SavedAt.IsZero() {
		playlist.SavedAt = time.Now()
	}
	playlist.TrackCount = len(playlist.Tracks)

	tracksJSON, err := json.Marshal(playlist.Tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal playlist tracks: %w", err)
	}

	query := `
		INSERT INTO offline_playlists (
			id, name, description, track_count, tracks_json, saved_at, auto_sync, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			track_count = excluded.track_count,
			tracks_json = excluded.tracks_json,
			saved_at = excluded.saved_at,
			auto_sync = excluded.auto_sync,
			last_synced_at = excluded.last_synced_at
	`

	_, err = ps.db.Exec(
		query,
		playlist.ID,
		playlist.Name,
		playlist.Description,
		playlist.TrackCount,
		string(tracksJSON),
		playlist.SavedAt,
		playlist.AutoSync,
		playlist.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist snapshot including its tracks. Returns (nil, nil)
// when no snapshot exists.
func (ps *PlaylistStore) Get(id string) (*OfflinePlaylist, error) {
	query := `
		SELECT id, name, description, track_count, tracks_json, saved_at, auto_sync, last_synced_at
		FROM offline_playlists
		WHERE id = ?
	`

	playlist := &OfflinePlaylist{}
	var description sql.NullString
	var tracksJSON string
	var lastSynced sql.NullTime

	err := ps.db.QueryRow(query, id).Scan(
		&playlist.ID,
		&playlist.Name,
		&description,
		&playlist.TrackCount,
		&tracksJSON,
		&playlist.SavedAt,
		&playlist.AutoSync,
		&lastSynced,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	playlist.Description = description.String
	if lastSynced.Valid {
		playlist.LastSyncedAt = &lastSynced.Time
	}

	if err := json.Unmarshal([]byte(tracksJSON), &playlist.Tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playlist tracks: %w", err)
	}

	return playlist, nil
}

// GetAll retrieves all playlist snapshots including their tracks, most
// recently saved first.
func (ps *PlaylistStore) GetAll() ([]*OfflinePlaylist, error) {
	query := `
		SELECT id, name, description, track_count, tracks_json, saved_at, auto_sync, last_synced_at
		FROM offline_playlists
		ORDER BY saved_at DESC
	`

	rows, err := ps.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*OfflinePlaylist{}
	for rows.Next() {
		playlist := &OfflinePlaylist{}
		var description sql.NullString
		var tracksJSON string
		var lastSynced sql.NullTime

		err := rows.Scan(
			&playlist.ID,
			&playlist.Name,
			&description,
			&playlist.TrackCount,
			&tracksJSON,
			&playlist.SavedAt,
			&playlist.AutoSync,
			&lastSynced,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}

		playlist.Description = description.String
		if lastSynced.Valid {
			playlist.LastSyncedAt = &lastSynced.Time
		}

		if err := json.Unmarshal([]byte(tracksJSON), &playlist.Tracks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playlist tracks: %w", err)
		}

		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return playlists, nil
}

// GetAutoSync retrieves all snapshots flagged for periodic reconciliation
func (ps *PlaylistStore) GetAutoSync() ([]*OfflinePlaylist, error) {
	query := `
		SELECT id, name, description, track_count, tracks_json, saved_at, auto_sync, last_synced_at
		FROM offline_playlists
		WHERE auto_sync = 1
		ORDER BY saved_at DESC
	`

	rows, err := ps.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get auto-sync playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*OfflinePlaylist{}
	for rows.Next() {
		playlist := &OfflinePlaylist{}
		var description sql.NullString
		var tracksJSON string
		var lastSynced sql.NullTime

		err := rows.Scan(
			&playlist.ID,
			&playlist.Name,
			&description,
			&playlist.TrackCount,
			&tracksJSON,
			&playlist.SavedAt,
			&playlist.AutoSync,
			&lastSynced,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}

		playlist.Description = description.String
		if lastSynced.Valid {
			playlist.LastSyncedAt = &lastSynced.Time
		}

		if err := json.Unmarshal([]byte(tracksJSON), &playlist.Tracks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playlist tracks: %w", err)
		}

		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return playlists, nil
}

// SetAutoSync toggles periodic reconciliation for a snapshot
func (ps *PlaylistStore) SetAutoSync(id string, autoSync bool) error {
	result, err := ps.db.Exec("UPDATE offline_playlists SET auto_sync = ? WHERE id = ?", autoSync, id)
	if err != nil {
		return fmt.Errorf("failed to set auto-sync: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("playlist not found: %s", id)
	}

	return nil
}

// SetLastSynced stamps the snapshot's last successful reconciliation time
func (ps *PlaylistStore) SetLastSynced(id string, syncedAt time.Time) error {
	_, err := ps.db.Exec("UPDATE offline_playlists SET last_synced_at = ? WHERE id = ?", syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set last synced: %w", err)
	}
	return nil
}

// Delete removes a playlist snapshot
func (ps *PlaylistStore) Delete(id string) error {
	result, err := ps.db.Exec("DELETE FROM offline_playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("playlist not found: %s", id)
	}

	return nil
}

// Count returns the number of saved snapshots
func (ps *PlaylistStore) Count() (int, error) {
	var count int
	err := ps.db.QueryRow("SELECT COUNT(*) FROM offline_playlists").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return count, nil
}
