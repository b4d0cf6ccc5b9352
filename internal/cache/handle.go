package cache

import (
	"sync"

	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// PayloadHandle is a scoped reference to a cached payload selected for
// playback. The holder must call Release exactly once when done, on every
// exit path; after Release the payload is no longer reachable through the
// handle.
type PayloadHandle struct {
	trackID  string
	fileName string

	mu       sync.Mutex
	payload  []byte
	released bool
}

// TrackID returns the track the handle was acquired for
func (h *PayloadHandle) TrackID() string {
	return h.trackID
}

// FileName returns the cached record's file name
func (h *PayloadHandle) FileName() string {
	return h.fileName
}

// Payload returns the payload bytes, or nil after Release
func (h *PayloadHandle) Payload() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload
}

// Released reports whether the handle has been released
func (h *PayloadHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release drops the handle's reference to the payload. Safe to call more than
// once.
func (h *PayloadHandle) Release() {
	h.mu.Lock()
	h.payload = nil
	h.released = true
	h.mu.Unlock()
}

// Acquire loads a cached payload and wraps it in a handle. Returns (nil, nil)
// when the track is not cached or its payload is empty.
func (m *Manager) Acquire(trackID string) (*PayloadHandle, error) {
	track, err := m.store.Get(trackID)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to load cached payload", err)
	}
	if track == nil || len(track.Payload) == 0 {
		return nil, nil
	}

	return &PayloadHandle{
		trackID:  track.ID,
		fileName: track.FileName,
		payload:  track.Payload,
	}, nil
}
