package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Queue row statuses. Completed never appears as a persisted row state: on
// success the row is deleted and the cached_tracks record is the durable
// evidence.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// QueueItem represents a download queue row
type QueueItem struct {
	ID           int64      `json:"id"`
	TrackID      string     `json:"track_id"`
	SourceURL    string     `json:"-"`
	FileName     string     `json:"file_name"`
	ChannelID    string     `json:"channel_id,omitempty"`
	ChannelName  string     `json:"channel_name,omitempty"`
	FileSize     int64      `json:"file_size"` // server-advertised, not authoritative
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// QueueStats represents queue statistics
type QueueStats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Downloading int `json:"downloading"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
}

// QueueStore manages download queue rows in the database
type QueueStore struct {
	db *sql.DB
}

// NewQueueStore creates a new QueueStore
func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

// Add inserts a new pending row and returns it with its store-assigned id
func (qs *QueueStore) Add(item *QueueItem) error {
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}

	query := `
		INSERT INTO download_queue (
			track_id, source_url, file_name, channel_id, channel_name,
			file_size, status, progress, error_message, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := qs.db.Exec(
		query,
		item.TrackID,
		item.SourceURL,
		item.FileName,
		item.ChannelID,
		item.ChannelName,
		item.FileSize,
		item.Status,
		item.Progress,
		item.ErrorMessage,
		item.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add queue item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get queue item id: %w", err)
	}
	item.ID = id

	return nil
}

// GetByID retrieves a queue row by its store-assigned id
func (qs *QueueStore) GetByID(id int64) (*QueueItem, error) {
	row := qs.db.QueryRow(selectColumns+" FROM download_queue WHERE id = ?", id)
	return qs.scanItem(row)
}

// GetByTrackID retrieves the most recent queue row for a track, or nil when
// none exists. At most one row per track is ever active, so "most recent" is
// only a tie-break across terminal leftovers.
func (qs *QueueStore) GetByTrackID(trackID string) (*QueueItem, error) {
	row := qs.db.QueryRow(
		selectColumns+" FROM download_queue WHERE track_id = ? ORDER BY id DESC LIMIT 1", trackID,
	)
	return qs.scanItem(row)
}

// NextPending returns the oldest pending row (FIFO by insertion order), or nil
// when the queue is drained.
func (qs *QueueStore) NextPending() (*QueueItem, error) {
	row := qs.db.QueryRow(
		selectColumns+" FROM download_queue WHERE status = ? ORDER BY id ASC LIMIT 1", StatusPending,
	)
	return qs.scanItem(row)
}

// Reset returns an existing row to pending in place, clearing progress and any
// error, and refreshing the source URL (credentials or host may have changed).
func (qs *QueueStore) Reset(id int64, sourceURL string) error {
	query := `
		UPDATE download_queue
		SET status = ?, progress = 0, error_message = '', source_url = ?, completed_at = NULL
		WHERE id = ?
	`

	result, err := qs.db.Exec(query, StatusPending, sourceURL, id)
	if err != nil {
		return fmt.Errorf("failed to reset queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("queue item not found: %d", id)
	}

	return nil
}

// SetStatus updates a row's status
func (qs *QueueStore) SetStatus(id int64, status string) error {
	_, err := qs.db.Exec("UPDATE download_queue SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to set queue item status: %w", err)
	}
	return nil
}

// SetProgress updates a row's progress percentage
func (qs *QueueStore) SetProgress(id int64, progress int) error {
	_, err := qs.db.Exec("UPDATE download_queue SET progress = ? WHERE id = ?", progress, id)
	if err != nil {
		return fmt.Errorf("failed to set queue item progress: %w", err)
	}
	return nil
}

// MarkFailed marks a row failed and retains the error message for manual retry
func (qs *QueueStore) MarkFailed(id int64, message string) error {
	now := time.Now()
	_, err := qs.db.Exec(
		"UPDATE download_queue SET status = ?, error_message = ?, completed_at = ? WHERE id = ?",
		StatusFailed, message, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark queue item failed: %w", err)
	}
	return nil
}

// MarkCancelled marks a single row cancelled
func (qs *QueueStore) MarkCancelled(id int64) error {
	now := time.Now()
	_, err := qs.db.Exec(
		"UPDATE download_queue SET status = ?, completed_at = ? WHERE id = ?",
		StatusCancelled, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark queue item cancelled: %w", err)
	}
	return nil
}

// CancelByTrackID marks any pending or downloading rows for the track
// cancelled; returns the number of rows affected.
func (qs *QueueStore) CancelByTrackID(trackID string) (int64, error) {
	result, err := qs.db.Exec(
		"UPDATE download_queue SET status = ? WHERE track_id = ? AND status IN (?, ?)",
		StatusCancelled, trackID, StatusPending, StatusDownloading,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel queue items: %w", err)
	}
	return result.RowsAffected()
}

// CancelAllActive marks every pending or downloading row cancelled
func (qs *QueueStore) CancelAllActive() error {
	_, err := qs.db.Exec(
		"UPDATE download_queue SET status = ? WHERE status IN (?, ?)",
		StatusCancelled, StatusPending, StatusDownloading,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel active queue items: %w", err)
	}
	return nil
}

// ResetStuckDownloading returns rows left in downloading by a crashed session
// to pending; returns the number repaired.
func (qs *QueueStore) ResetStuckDownloading() (int64, error) {
	result, err := qs.db.Exec(
		"UPDATE download_queue SET status = ?, progress = 0 WHERE status = ?",
		StatusPending, StatusDownloading,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck downloads: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a row from the queue
func (qs *QueueStore) Delete(id int64) error {
	result, err := qs.db.Exec("DELETE FROM download_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queue item not found: %d", id)
	}

	return nil
}

// ClearAll removes all rows from the queue
func (qs *QueueStore) ClearAll() error {
	_, err := qs.db.Exec("DELETE FROM download_queue")
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// GetAll retrieves all queue rows in insertion order
func (qs *QueueStore) GetAll() ([]*QueueItem, error) {
	rows, err := qs.db.Query(selectColumns + " FROM download_queue ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to get queue items: %w", err)
	}
	defer rows.Close()

	return qs.scanItems(rows)
}

// GetByStatus retrieves queue rows filtered by status in insertion order
func (qs *QueueStore) GetByStatus(status string) ([]*QueueItem, error) {
	rows, err := qs.db.Query(
		selectColumns+" FROM download_queue WHERE status = ? ORDER BY id ASC", status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue items by status: %w", err)
	}
	defer rows.Close()

	return qs.scanItems(rows)
}

// CountByStatus returns the number of rows with the given status
func (qs *QueueStore) CountByStatus(status string) (int, error) {
	var count int
	err := qs.db.QueryRow("SELECT COUNT(*) FROM download_queue WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return count, nil
}

// GetStats retrieves queue statistics
func (qs *QueueStore) GetStats() (*QueueStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) as pending,
			COALESCE(SUM(CASE WHEN status = 'downloading' THEN 1 ELSE 0 END), 0) as downloading,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
		FROM download_queue
	`

	stats := &QueueStats{}
	err := qs.db.QueryRow(query).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Downloading,
		&stats.Failed,
		&stats.Cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return stats, nil
}

const selectColumns = `
	SELECT id, track_id, source_url, file_name, channel_id, channel_name,
	       file_size, status, progress, error_message, added_at, completed_at`

// scanItem scans a single row, mapping no-rows to (nil, nil)
func (qs *QueueStore) scanItem(row *sql.Row) (*QueueItem, error) {
	item := &QueueItem{}
	var completedAt sql.NullTime
	var sourceURL, fileName, channelID, channelName, errorMessage sql.NullString

	err := row.Scan(
		&item.ID,
		&item.TrackID,
		&sourceURL,
		&fileName,
		&channelID,
		&channelName,
		&item.FileSize,
		&item.Status,
		&item.Progress,
		&errorMessage,
		&item.AddedAt,
		&completedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	item.SourceURL = sourceURL.String
	item.FileName = fileName.String
	item.ChannelID = channelID.String
	item.ChannelName = channelName.String
	item.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}

	return item, nil
}

// scanItems scans multiple queue rows
func (qs *QueueStore) scanItems(rows *sql.Rows) ([]*QueueItem, error) {
	items := []*QueueItem{}

	for rows.Next() {
		item := &QueueItem{}
		var completedAt sql.NullTime
		var sourceURL, fileName, channelID, channelName, errorMessage sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.TrackID,
			&sourceURL,
			&fileName,
			&channelID,
			&channelName,
			&item.FileSize,
			&item.Status,
			&item.Progress,
			&errorMessage,
			&item.AddedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}

		item.SourceURL = sourceURL.String
		item.FileName = fileName.String
		item.ChannelID = channelID.String
		item.ChannelName = channelName.String
		item.ErrorMessage = errorMessage.String
		if completedAt.Valid {
			item.CompletedAt = &completedAt.Time
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}
