package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CachedTrack is one row of the content store: the binary payload of a track
// plus its metadata. FileSize always reflects the stored payload length, not
// the size the server advertised.
type CachedTrack struct {
	ID                string     `json:"id"`
	ChannelID         string     `json:"channel_id,omitempty"`
	ChannelName       string     `json:"channel_name,omitempty"`
	FileName          string     `json:"file_name"`
	FileSize          int64      `json:"file_size"`
	Duration          float64    `json:"duration,omitempty"`
	Title             string     `json:"title,omitempty"`
	Artist            string     `json:"artist,omitempty"`
	Album             string     `json:"album,omitempty"`
	SourceURL         string     `json:"-"`
	CachedAt          time.Time  `json:"cached_at"`
	LastPlayedAt      *time.Time `json:"last_played_at,omitempty"`
	Payload           []byte     `json:"-"`
	CoverArt          []byte     `json:"-"`
	MetadataExtracted bool       `json:"metadata_extracted"`
}

// CachedTrackInfo is the metadata-only projection of a CachedTrack, used for
// listings and eviction scans where loading payloads would be wasteful.
type CachedTrackInfo struct {
	ID                string     `json:"id"`
	ChannelID         string     `json:"channel_id,omitempty"`
	ChannelName       string     `json:"channel_name,omitempty"`
	FileName          string     `json:"file_name"`
	FileSize          int64      `json:"file_size"`
	Duration          float64    `json:"duration,omitempty"`
	Title             string     `json:"title,omitempty"`
	Artist            string     `json:"artist,omitempty"`
	Album             string     `json:"album,omitempty"`
	CachedAt          time.Time  `json:"cached_at"`
	LastPlayedAt      *time.Time `json:"last_played_at,omitempty"`
	MetadataExtracted bool       `json:"metadata_extracted"`
}

// ContentStore manages cached track records in the database
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

// Put upserts a cached track record, overwriting any existing record for the
// same id.
func (cs *ContentStore) Put(track *CachedTrack) error {
	if track.CachedAt.IsZero() {
		track.CachedAt = time.Now()
	}

	query := `
		INSERT INTO cached_tracks (
			id, channel_id, channel_name, file_name, file_size, duration,
			title, artist, album, source_url, cached_at, last_played_at,
			payload, cover_art, metadata_extracted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel_id = excluded.channel_id,
			channel_name = excluded.channel_name,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			duration = excluded.duration,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			source_url = excluded.source_url,
			cached_at = excluded.cached_at,
			payload = excluded.payload,
			cover_art = excluded.cover_art,
			metadata_extracted = excluded.metadata_extracted
	`

	_, err := cs.db.Exec(
		query,
		track.ID,
		track.ChannelID,
		track.ChannelName,
		track.FileName,
		track.FileSize,
		track.Duration,
		track.Title,
		track.Artist,
		track.Album,
		track.SourceURL,
		track.CachedAt,
		track.LastPlayedAt,
		track.Payload,
		track.CoverArt,
		track.MetadataExtracted,
	)

	if err != nil {
		return fmt.Errorf("failed to put cached track: %w", err)
	}

	return nil
}

// Get retrieves a cached track record including its payload. Returns
// (nil, nil) when no record exists.
func (cs *ContentStore) Get(id string) (*CachedTrack, error) {
	query := `
		SELECT id, channel_id, channel_name, file_name, file_size, duration,
		       title, artist, album, source_url, cached_at, last_played_at,
		       payload, cover_art, metadata_extracted
		FROM cached_tracks
		WHERE id = ?
	`

	track := &CachedTrack{}
	var lastPlayed sql.NullTime
	var channelID, channelName, title, artist, album, sourceURL sql.NullString
	var duration sql.NullFloat64

	err := cs.db.QueryRow(query, id).Scan(
		&track.ID,
		&channelID,
		&channelName,
		&track.FileName,
		&track.FileSize,
		&duration,
		&title,
		&artist,
		&album,
		&sourceURL,
		&track.CachedAt,
		&lastPlayed,
		&track.Payload,
		&track.CoverArt,
		&track.MetadataExtracted,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached track: %w", err)
	}

	track.ChannelID = channelID.String
	track.ChannelName = channelName.String
	track.Title = title.String
	track.Artist = artist.String
	track.Album = album.String
	track.SourceURL = sourceURL.String
	track.Duration = duration.Float64
	if lastPlayed.Valid {
		track.LastPlayedAt = &lastPlayed.Time
	}

	return track, nil
}

// Exists reports whether a record with a non-empty payload exists for the id.
func (cs *ContentStore) Exists(id string) (bool, error) {
	var one int
	err := cs.db.QueryRow(
		"SELECT 1 FROM cached_tracks WHERE id = ? AND length(payload) > 0", id,
	).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check cached track: %w", err)
	}
	return true, nil
}

// Delete removes a cached track record
func (cs *ContentStore) Delete(id string) error {
	_, err := cs.db.Exec("DELETE FROM cached_tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cached track: %w", err)
	}
	return nil
}

// Clear removes all cached track records
func (cs *ContentStore) Clear() error {
	_, err := cs.db.Exec("DELETE FROM cached_tracks")
	if err != nil {
		return fmt.Errorf("failed to clear cached tracks: %w", err)
	}
	return nil
}

// TotalSize returns the sum of file_size over all records
func (cs *ContentStore) TotalSize() (int64, error) {
	var total int64
	err := cs.db.QueryRow("SELECT COALESCE(SUM(file_size), 0) FROM cached_tracks").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cache size: %w", err)
	}
	return total, nil
}

// Count returns the number of cached track records
func (cs *ContentStore) Count() (int, error) {
	var count int
	err := cs.db.QueryRow("SELECT COUNT(*) FROM cached_tracks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached tracks: %w", err)
	}
	return count, nil
}

// ListByLastPlayed returns metadata for all records ordered by last_played_at
// ascending. Never-played records sort first (sqlite orders NULLs first under
// ASC), which makes them the first eviction candidates.
func (cs *ContentStore) ListByLastPlayed() ([]*CachedTrackInfo, error) {
	query := `
		SELECT id, channel_id, channel_name, file_name, file_size, duration,
		       title, artist, album, cached_at, last_played_at, metadata_extracted
		FROM cached_tracks
		ORDER BY last_played_at ASC, cached_at ASC
	`

	rows, err := cs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached tracks: %w", err)
	}
	defer rows.Close()

	return cs.scanInfos(rows)
}

// List returns metadata for all records ordered by cache time, newest first.
func (cs *ContentStore) List() ([]*CachedTrackInfo, error) {
	query := `
		SELECT id, channel_id, channel_name, file_name, file_size, duration,
		       title, artist, album, cached_at, last_played_at, metadata_extracted
		FROM cached_tracks
		ORDER BY cached_at DESC
	`

	rows, err := cs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached tracks: %w", err)
	}
	defer rows.Close()

	return cs.scanInfos(rows)
}

// UpdateLastPlayed stamps the record's last played time
func (cs *ContentStore) UpdateLastPlayed(id string, playedAt time.Time) error {
	_, err := cs.db.Exec("UPDATE cached_tracks SET last_played_at = ? WHERE id = ?", playedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update last played: %w", err)
	}
	return nil
}

// SetExtractedMetadata stores decoded tags and cover art on an existing record
// and marks it extracted.
func (cs *ContentStore) SetExtractedMetadata(id, title, artist, album string, coverArt []byte) error {
	query := `
		UPDATE cached_tracks
		SET title = COALESCE(NULLIF(?, ''), title),
		    artist = COALESCE(NULLIF(?, ''), artist),
		    album = COALESCE(NULLIF(?, ''), album),
		    cover_art = ?,
		    metadata_extracted = 1
		WHERE id = ?
	`

	result, err := cs.db.Exec(query, title, artist, album, coverArt, id)
	if err != nil {
		return fmt.Errorf("failed to set extracted metadata: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("cached track not found: %s", id)
	}

	return nil
}

// scanInfos scans metadata rows
func (cs *ContentStore) scanInfos(rows *sql.Rows) ([]*CachedTrackInfo, error) {
	infos := []*CachedTrackInfo{}

	for rows.Next() {
		info := &CachedTrackInfo{}
		var lastPlayed sql.NullTime
		var channelID, channelName, title, artist, album sql.NullString
		var duration sql.NullFloat64

		err := rows.Scan(
			&info.ID,
			&channelID,
			&channelName,
			&info.FileName,
			&info.FileSize,
			&duration,
			&title,
			&artist,
			&album,
			&info.CachedAt,
			&lastPlayed,
			&info.MetadataExtracted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached track: %w", err)
		}

		info.ChannelID = channelID.String
		info.ChannelName = channelName.String
		info.Title = title.String
		info.Artist = artist.String
		info.Album = album.String
		info.Duration = duration.Float64
		if lastPlayed.Valid {
			info.LastPlayedAt = &lastPlayed.Time
		}

		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return infos, nil
}
