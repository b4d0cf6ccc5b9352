package download

import (
	"sync"
	"time"
)

// ProgressEvent is one observation of a transfer's progress
type ProgressEvent struct {
	TrackID       string  `json:"track_id"`
	Progress      int     `json:"progress"`
	ReceivedBytes int64   `json:"received_bytes"`
	TotalBytes    int64   `json:"total_bytes"`
	Speed         float64 `json:"speed"` // bytes per second
}

// ProgressHub broadcasts (trackID, progress) events to any number of
// subscribers and keeps a snapshot map for pull-style consumers. Slow
// subscribers lose events rather than stall the worker loop.
type ProgressHub struct {
	mu          sync.RWMutex
	current     map[string]ProgressEvent
	subscribers map[int]chan ProgressEvent
	nextID      int

	speedMu      sync.Mutex
	lastSample   map[string]speedSample
}

type speedSample struct {
	bytes int64
	at    time.Time
}

// NewProgressHub creates a new progress hub
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		current:     make(map[string]ProgressEvent),
		subscribers: make(map[int]chan ProgressEvent),
		lastSample:  make(map[string]speedSample),
	}
}

// Publish records a progress observation and broadcasts it. Progress values
// regress only across transfer attempts, never within one.
func (h *ProgressHub) Publish(trackID string, progress int, received, total int64) {
	event := ProgressEvent{
		TrackID:       trackID,
		Progress:      progress,
		ReceivedBytes: received,
		TotalBytes:    total,
		Speed:         h.sampleSpeed(trackID, received),
	}

	h.mu.Lock()
	h.current[trackID] = event
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	h.mu.Unlock()
}

// sampleSpeed derives bytes/sec from the delta since the previous observation
func (h *ProgressHub) sampleSpeed(trackID string, received int64) float64 {
	now := time.Now()

	h.speedMu.Lock()
	defer h.speedMu.Unlock()

	prev, ok := h.lastSample[trackID]
	h.lastSample[trackID] = speedSample{bytes: received, at: now}

	if !ok || received < prev.bytes {
		return 0
	}

	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(received-prev.bytes) / elapsed
}

// Get returns the latest observation for a track
func (h *ProgressHub) Get(trackID string) (ProgressEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, ok := h.current[trackID]
	return event, ok
}

// Snapshot returns a copy of the latest observation per track
func (h *ProgressHub) Snapshot() map[string]ProgressEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make(map[string]ProgressEvent, len(h.current))
	for id, event := range h.current {
		snapshot[id] = event
	}
	return snapshot
}

// Remove clears the observation for a track once its transfer reaches a
// terminal state.
func (h *ProgressHub) Remove(trackID string) {
	h.mu.Lock()
	delete(h.current, trackID)
	h.mu.Unlock()

	h.speedMu.Lock()
	delete(h.lastSample, trackID)
	h.speedMu.Unlock()
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the channel.
func (h *ProgressHub) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 64)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(ch)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}
