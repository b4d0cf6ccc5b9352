package playback

import (
	"time"
)

// Update is one now-playing observation pushed to the reporting surface
type Update struct {
	TrackID  string  `json:"track_id"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	State    State   `json:"state"`
}

// Reporter receives now-playing updates. Implementations (system media
// surfaces, remote scrobblers) live outside this core.
type Reporter interface {
	Report(update Update)
}

// reportLocked pushes an immediate update after a state transition. Callers
// hold e.mu.
func (e *Engine) reportLocked() {
	if e.reporter == nil || e.current == nil {
		return
	}

	e.reporter.Report(Update{
		TrackID:  e.current.ID,
		Title:    e.current.Title,
		Artist:   e.current.Artist,
		Position: e.player.Position(),
		Duration: e.player.Duration(),
		State:    e.state,
	})
}

// StartPositionReporting launches a background loop that pushes position
// updates at the given interval while playback is active. State transitions
// report immediately regardless. The returned stop function halts the loop.
func (e *Engine) StartPositionReporting(interval time.Duration) func() {
	if e.reporter == nil || interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.state == StatePlaying || e.state == StateBuffering {
					e.reportLocked()
				}
				e.mu.Unlock()
			}
		}
	}()

	return func() { close(done) }
}
