package playback

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/playvault/playvault-go/internal/api"
	"github.com/playvault/playvault-go/internal/cache"
	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// State is the playback engine's lifecycle state
type State string

const (
	StateStopped   State = "stopped"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
	StateError     State = "error"
)

// RepeatMode controls queue navigation at the boundaries
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatAll  RepeatMode = "all"
	RepeatOne  RepeatMode = "one"
)

// previousRestartThreshold is how far into a track Previous restarts it
// instead of moving to the prior one.
const previousRestartThreshold = 3.0

// Source is what the player is asked to load: a cached payload handle or an
// authenticated stream URL, never both.
type Source struct {
	Track     api.Track
	Handle    *cache.PayloadHandle
	StreamURL string
}

// Player is the single active media element the engine drives. Implementations
// live outside this core.
type Player interface {
	Load(source Source) error
	Play() error
	Pause() error
	Stop() error
	Seek(position float64) error
	SetVolume(volume float64) error
	Position() float64
	Duration() float64
}

// Engine is the state machine around the player. It resolves tracks to
// sources cache-first, owns the play queue, and guarantees the previous
// source's payload handle is released before a new source loads and on every
// exit path.
type Engine struct {
	cache     *cache.Manager
	player    Player
	streamURL func(trackID string) string
	reporter  Reporter
	logger    *zap.Logger

	mu           sync.Mutex
	state        State
	queue        []api.Track
	currentIndex int
	current      *api.Track
	handle       *cache.PayloadHandle
	shuffle      bool
	repeat       RepeatMode
	volume       float64
	rng          *rand.Rand
}

// EngineOptions configures an Engine
type EngineOptions struct {
	Cache     *cache.Manager
	Player    Player
	StreamURL func(trackID string) string
	// Reporter, when set, receives now-playing updates
	Reporter Reporter
	Logger   *zap.Logger
	Seed     int64
}

// NewEngine creates a new playback engine
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streamURL := opts.StreamURL
	if streamURL == nil {
		streamURL = func(string) string { return "" }
	}

	return &Engine{
		cache:        opts.Cache,
		player:       opts.Player,
		streamURL:    streamURL,
		reporter:     opts.Reporter,
		logger:       logger,
		state:        StateStopped,
		currentIndex: -1,
		repeat:       RepeatNone,
		volume:       1.0,
		rng:          rand.New(rand.NewSource(opts.Seed)),
	}
}

// State returns the current playback state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the track currently loaded, or nil
func (e *Engine) Current() *api.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	track := *e.current
	return &track
}

// Play loads and plays a track, replacing the play queue. startIndex points
// at the track within the new queue; out-of-range values fall back to the
// track's own position or zero.
func (e *Engine) Play(track api.Track, queue []api.Track, startIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(queue) == 0 {
		queue = []api.Track{track}
		startIndex = 0
	}
	if startIndex < 0 || startIndex >= len(queue) {
		startIndex = indexOfTrack(queue, track.ID)
		if startIndex < 0 {
			startIndex = 0
		}
	}

	e.queue = append([]api.Track(nil), queue...)
	e.currentIndex = startIndex

	return e.loadAndPlayLocked(e.queue[startIndex])
}

// PlayAtIndex plays the queue entry at the given index
func (e *Engine) PlayAtIndex(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.queue) {
		return apperrors.NewValidationError("queue index out of range")
	}

	e.currentIndex = index
	return e.loadAndPlayLocked(e.queue[index])
}

// loadAndPlayLocked resolves the track to a source and starts playback.
// Callers hold e.mu.
func (e *Engine) loadAndPlayLocked(track api.Track) error {
	// The handle of whatever was loaded before is dead from here on,
	// regardless of how resolution turns out
	e.releaseHandleLocked()

	e.state = StateLoading
	e.current = &track

	source, err := e.resolveSourceLocked(track)
	if err != nil {
		e.state = StateError
		e.reportLocked()
		return err
	}
	e.handle = source.Handle

	if err := e.player.Load(source); err != nil {
		e.releaseHandleLocked()
		e.state = StateError
		e.reportLocked()
		return apperrors.NewResolutionError("player failed to load source", err)
	}

	if err := e.player.Play(); err != nil {
		e.releaseHandleLocked()
		e.state = StateError
		e.reportLocked()
		return apperrors.NewResolutionError("player failed to start", err)
	}

	e.state = StatePlaying
	e.reportLocked()

	if source.Handle != nil {
		if err := e.cache.UpdateLastPlayed(track.ID); err != nil {
			e.logger.Warn("failed to update last played",
				zap.String("track_id", track.ID),
				zap.Error(err))
		}
	}

	e.logger.Info("playing track",
		zap.String("track_id", track.ID),
		zap.Bool("from_cache", source.Handle != nil))

	return nil
}

// resolveSourceLocked prefers the cache and falls back to a stream URL
func (e *Engine) resolveSourceLocked(track api.Track) (Source, error) {
	handle, err := e.cache.Acquire(track.ID)
	if err != nil {
		e.logger.Warn("cache lookup failed, falling back to stream",
			zap.String("track_id", track.ID),
			zap.Error(err))
	}
	if handle != nil {
		return Source{Track: track, Handle: handle}, nil
	}

	url := track.SourceURL
	if url == "" {
		url = e.streamURL(track.ID)
	}
	if url == "" {
		return Source{}, apperrors.NewResolutionError("no playable source for track", nil)
	}

	return Source{Track: track, StreamURL: url}, nil
}

// releaseHandleLocked releases the current payload handle, if any
func (e *Engine) releaseHandleLocked() {
	if e.handle != nil {
		e.handle.Release()
		e.handle = nil
	}
}

// Pause pauses playback
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying && e.state != StateBuffering {
		return nil
	}

	if err := e.player.Pause(); err != nil {
		return apperrors.NewResolutionError("player failed to pause", err)
	}

	e.state = StatePaused
	e.reportLocked()
	return nil
}

// Resume resumes paused playback
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return nil
	}

	if err := e.player.Play(); err != nil {
		return apperrors.NewResolutionError("player failed to resume", err)
	}

	e.state = StatePlaying
	e.reportLocked()
	return nil
}

// TogglePlayPause flips between playing and paused
func (e *Engine) TogglePlayPause() error {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state {
	case StatePlaying, StateBuffering:
		return e.Pause()
	case StatePaused:
		return e.Resume()
	default:
		return nil
	}
}

// Seek moves the playhead, clamped to [0, duration]. Until the player knows
// the track duration the call is a no-op.
func (e *Engine) Seek(position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil
	}

	duration := e.player.Duration()
	if duration <= 0 {
		return nil
	}

	if position < 0 {
		position = 0
	}
	if position > duration {
		position = duration
	}

	if err := e.player.Seek(position); err != nil {
		return apperrors.NewResolutionError("player failed to seek", err)
	}

	e.reportLocked()
	return nil
}

// SetVolume sets the player volume, clamped to [0, 1]
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.player.SetVolume(volume); err != nil {
		return apperrors.NewResolutionError("player failed to set volume", err)
	}

	e.volume = volume
	return nil
}

// Volume returns the last volume set
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Stop halts playback, releases the payload handle and keeps the queue
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	e.releaseHandleLocked()

	if e.state == StateStopped {
		return nil
	}

	err := e.player.Stop()
	e.state = StateStopped
	e.reportLocked()

	if err != nil {
		return apperrors.NewResolutionError("player failed to stop", err)
	}
	return nil
}

// HandleTrackEnded is invoked by the player host when the current track ends.
// Repeat-one replays the same track; otherwise playback advances with the
// same rules as Next.
func (e *Engine) HandleTrackEnded() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeat == RepeatOne && e.current != nil {
		return e.loadAndPlayLocked(*e.current)
	}

	return e.advanceLocked()
}

// SetShuffle toggles shuffled navigation
func (e *Engine) SetShuffle(enabled bool) {
	e.mu.Lock()
	e.shuffle = enabled
	e.mu.Unlock()
}

// Shuffle reports whether shuffled navigation is enabled
func (e *Engine) Shuffle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

// SetRepeatMode sets the repeat mode
func (e *Engine) SetRepeatMode(mode RepeatMode) {
	e.mu.Lock()
	e.repeat = mode
	e.mu.Unlock()
}

// RepeatModeValue returns the current repeat mode
func (e *Engine) RepeatModeValue() RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}
