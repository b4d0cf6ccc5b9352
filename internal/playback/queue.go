package playback

import (
	"github.com/playvault/playvault-go/internal/api"
	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// Queue returns a copy of the play queue
func (e *Engine) Queue() []api.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.Track(nil), e.queue...)
}

// CurrentIndex returns the index of the current track within the queue, or -1
// when nothing has been loaded. Whenever the queue is non-empty the index is
// within [0, len).
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// Next moves playback forward: shuffled picks a random other entry, otherwise
// the following entry. At the last index repeat-all wraps to the start and
// repeat-none stops without moving the index.
func (e *Engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceLocked()
}

// advanceLocked implements forward navigation. Callers hold e.mu.
func (e *Engine) advanceLocked() error {
	if len(e.queue) == 0 {
		return e.stopLocked()
	}

	if e.shuffle {
		next := e.shuffleIndexLocked()
		e.currentIndex = next
		return e.loadAndPlayLocked(e.queue[next])
	}

	next := e.currentIndex + 1
	if next >= len(e.queue) {
		if e.repeat == RepeatAll {
			e.currentIndex = 0
			return e.loadAndPlayLocked(e.queue[0])
		}
		// End of queue: stop in place, index unchanged
		return e.stopLocked()
	}

	e.currentIndex = next
	return e.loadAndPlayLocked(e.queue[next])
}

// shuffleIndexLocked picks a random queue index, avoiding the current one
// when the queue has more than one entry.
func (e *Engine) shuffleIndexLocked() int {
	if len(e.queue) == 1 {
		return 0
	}

	next := e.rng.Intn(len(e.queue) - 1)
	if next >= e.currentIndex && e.currentIndex >= 0 {
		next++
	}
	return next
}

// Previous restarts the current track when more than a few seconds in;
// otherwise it moves to the prior entry. At the first index repeat-all wraps
// to the end and repeat-none restarts the current track.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.player.Position() > previousRestartThreshold {
		if err := e.player.Seek(0); err != nil {
			return apperrors.NewResolutionError("player failed to restart track", err)
		}
		e.reportLocked()
		return nil
	}

	return e.skipToPreviousLocked()
}

// SkipToPrevious moves to the prior entry unconditionally, ignoring the
// restart threshold. At the first index repeat-all wraps to the end;
// otherwise there is nothing to skip back to and the call is a no-op.
func (e *Engine) SkipToPrevious() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return e.stopLocked()
	}

	prev := e.currentIndex - 1
	if prev < 0 {
		if e.repeat != RepeatAll {
			return nil
		}
		prev = len(e.queue) - 1
	}

	e.currentIndex = prev
	return e.loadAndPlayLocked(e.queue[prev])
}

// skipToPreviousLocked implements backward navigation for Previous. Callers
// hold e.mu.
func (e *Engine) skipToPreviousLocked() error {
	if len(e.queue) == 0 {
		return e.stopLocked()
	}

	prev := e.currentIndex - 1
	if prev < 0 {
		if e.repeat == RepeatAll {
			prev = len(e.queue) - 1
		} else if e.currentIndex >= 0 {
			// Restart the first track rather than stopping
			return e.loadAndPlayLocked(e.queue[e.currentIndex])
		} else {
			prev = 0
		}
	}

	e.currentIndex = prev
	return e.loadAndPlayLocked(e.queue[prev])
}

// indexOfTrack returns the position of a track id within a queue, or -1
func indexOfTrack(queue []api.Track, trackID string) int {
	for i, t := range queue {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
