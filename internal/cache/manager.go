package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/playvault/playvault-go/internal/errors"
	"github.com/playvault/playvault-go/internal/monitoring"
	"github.com/playvault/playvault-go/internal/store"
)

// Manager wraps the content store with existence checks, size accounting and
// least-recently-played eviction. It also tracks which tracks are mid-transfer
// so eviction never deletes a record the orchestrator is about to overwrite.
type Manager struct {
	store  *store.ContentStore
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager creates a new cache manager
func NewManager(contentStore *store.ContentStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  contentStore,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// IsCached reports whether a track has a record with a non-empty payload
func (m *Manager) IsCached(trackID string) (bool, error) {
	cached, err := m.store.Exists(trackID)
	if err != nil {
		return false, apperrors.NewStoreError("failed to check cached track", err)
	}
	return cached, nil
}

// Get retrieves a cached track record including its payload, or nil when
// absent.
func (m *Manager) Get(trackID string) (*store.CachedTrack, error) {
	track, err := m.store.Get(trackID)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get cached track", err)
	}
	return track, nil
}

// Put upserts a cached track record and refreshes the size gauge
func (m *Manager) Put(track *store.CachedTrack) error {
	if err := m.store.Put(track); err != nil {
		return apperrors.NewStoreError("failed to store cached track", err)
	}

	m.logger.Debug("track cached",
		zap.String("track_id", track.ID),
		zap.Int64("size", track.FileSize))

	m.refreshSizeGauge()
	return nil
}

// Delete removes one cached track record
func (m *Manager) Delete(trackID string) error {
	if err := m.store.Delete(trackID); err != nil {
		return apperrors.NewStoreError("failed to delete cached track", err)
	}
	m.refreshSizeGauge()
	return nil
}

// Clear removes all cached track records
func (m *Manager) Clear() error {
	if err := m.store.Clear(); err != nil {
		return apperrors.NewStoreError("failed to clear cache", err)
	}
	monitoring.UpdateCacheSize(0)
	return nil
}

// TotalSize returns the sum of stored payload sizes in bytes
func (m *Manager) TotalSize() (int64, error) {
	size, err := m.store.TotalSize()
	if err != nil {
		return 0, apperrors.NewStoreError("failed to get cache size", err)
	}
	return size, nil
}

// Count returns the number of cached records
func (m *Manager) Count() (int, error) {
	count, err := m.store.Count()
	if err != nil {
		return 0, apperrors.NewStoreError("failed to count cached tracks", err)
	}
	return count, nil
}

// List returns metadata for all cached records, newest first
func (m *Manager) List() ([]*store.CachedTrackInfo, error) {
	infos, err := m.store.List()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list cached tracks", err)
	}
	return infos, nil
}

// UpdateLastPlayed stamps a record's last played time, moving it to the back
// of the eviction order.
func (m *Manager) UpdateLastPlayed(trackID string) error {
	if err := m.store.UpdateLastPlayed(trackID, time.Now()); err != nil {
		return apperrors.NewStoreError("failed to update last played", err)
	}
	return nil
}

// SetExtractedMetadata stores decoded tags and cover art on a cached record
func (m *Manager) SetExtractedMetadata(trackID, title, artist, album string, coverArt []byte) error {
	if err := m.store.SetExtractedMetadata(trackID, title, artist, album, coverArt); err != nil {
		return apperrors.NewStoreError("failed to set extracted metadata", err)
	}
	return nil
}

// BeginDownload marks a track as mid-transfer, excluding it from eviction
// candidacy until EndDownload.
func (m *Manager) BeginDownload(trackID string) {
	m.mu.Lock()
	m.active[trackID] = struct{}{}
	m.mu.Unlock()
}

// EndDownload clears the mid-transfer mark for a track
func (m *Manager) EndDownload(trackID string) {
	m.mu.Lock()
	delete(m.active, trackID)
	m.mu.Unlock()
}

// isActiveDownload reports whether the track is currently mid-transfer
func (m *Manager) isActiveDownload(trackID string) bool {
	m.mu.Lock()
	_, ok := m.active[trackID]
	m.mu.Unlock()
	return ok
}

// EvictToTarget deletes records in ascending last-played order (never-played
// records first) until the total size is at or below targetBytes or no
// candidates remain. Tracks mid-transfer are skipped. Returns the number of
// records deleted. This is a policy, not a background job; callers decide when
// to invoke it.
func (m *Manager) EvictToTarget(targetBytes int64) (int, error) {
	total, err := m.TotalSize()
	if err != nil {
		return 0, err
	}
	if total <= targetBytes {
		return 0, nil
	}

	candidates, err := m.store.ListByLastPlayed()
	if err != nil {
		return 0, apperrors.NewStoreError("failed to list eviction candidates", err)
	}

	evicted := 0
	for _, candidate := range candidates {
		if total <= targetBytes {
			break
		}
		if m.isActiveDownload(candidate.ID) {
			continue
		}

		if err := m.store.Delete(candidate.ID); err != nil {
			return evicted, apperrors.NewStoreError("failed to evict cached track", err)
		}

		total -= candidate.FileSize
		evicted++

		m.logger.Info("evicted cached track",
			zap.String("track_id", candidate.ID),
			zap.Int64("size", candidate.FileSize),
			zap.Int64("remaining_bytes", total))
	}

	if evicted > 0 {
		monitoring.RecordEvictions(evicted)
		m.refreshSizeGauge()
	}

	return evicted, nil
}

// refreshSizeGauge best-effort updates the cache size metric
func (m *Manager) refreshSizeGauge() {
	if size, err := m.store.TotalSize(); err == nil {
		monitoring.UpdateCacheSize(size)
	}
}
