package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/playvault/playvault-go/internal/api"
	"github.com/playvault/playvault-go/internal/cache"
	"github.com/playvault/playvault-go/internal/config"
	"github.com/playvault/playvault-go/internal/download"
	apperrors "github.com/playvault/playvault-go/internal/errors"
	"github.com/playvault/playvault-go/internal/monitoring"
	"github.com/playvault/playvault-go/internal/store"
)

// Enqueuer is the slice of the download orchestrator the reconciler needs
type Enqueuer interface {
	EnqueueMany(tracks []api.Track)
}

// Options configures a Reconciler
type Options struct {
	Playlists *store.PlaylistStore
	Cache     *cache.Manager
	Enqueuer  Enqueuer
	API       api.PlaylistAPI
	Logger    *zap.Logger
	Config    config.SyncConfig
}

// Reconciler periodically diffs saved playlist snapshots against the server,
// refreshes the snapshots, and enqueues newly discovered tracks for download.
// One playlist failing never aborts the sweep.
type Reconciler struct {
	playlists *store.PlaylistStore
	cache     *cache.Manager
	enqueuer  Enqueuer
	remote    api.PlaylistAPI
	logger    *zap.Logger
	breaker   *gobreaker.CircuitBreaker

	initialDelay time.Duration
	interval     time.Duration
	cooldown     time.Duration

	mu       sync.Mutex
	running  bool
	syncing  bool
	lastSync time.Time
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewReconciler creates a new playlist reconciler
func NewReconciler(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interval := time.Duration(opts.Config.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "playlist-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("playlist API circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Reconciler{
		playlists:    opts.Playlists,
		cache:        opts.Cache,
		enqueuer:     opts.Enqueuer,
		remote:       opts.API,
		logger:       logger,
		breaker:      breaker,
		initialDelay: time.Duration(opts.Config.InitialDelaySeconds) * time.Second,
		interval:     interval,
		cooldown:     time.Duration(opts.Config.CooldownSeconds) * time.Second,
	}
}

// Start launches the periodic sweep: one run after the initial delay, then
// one per interval. Idempotent.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	stop := r.stop
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if r.initialDelay > 0 {
			select {
			case <-stop:
				return
			case <-time.After(r.initialDelay):
			}
		}

		r.TriggerSync()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.TriggerSync()
			}
		}
	}()
}

// Stop halts the periodic sweep. Idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
}

// TriggerSync runs a sweep now unless one is already running or the cooldown
// since the last sweep has not elapsed.
func (r *Reconciler) TriggerSync() {
	r.mu.Lock()
	if r.syncing || (!r.lastSync.IsZero() && time.Since(r.lastSync) < r.cooldown) {
		r.mu.Unlock()
		return
	}
	r.syncing = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.syncing = false
		r.lastSync = time.Now()
		r.mu.Unlock()
	}()

	r.sweep()
}

// sweep reconciles every auto-sync snapshot
func (r *Reconciler) sweep() {
	snapshots, err := r.playlists.GetAutoSync()
	if err != nil {
		r.logger.Error("failed to load playlist snapshots", zap.Error(err))
		monitoring.RecordSyncRun("error")
		return
	}
	if len(snapshots) == 0 {
		return
	}

	failures := 0
	for _, snapshot := range snapshots {
		if err := r.reconcileOne(snapshot); err != nil {
			failures++
			monitoring.RecordError(string(apperrors.ErrTypeReconciliation))
			r.logger.Warn("playlist sync failed",
				zap.String("playlist_id", snapshot.ID),
				zap.Error(err))
		}
	}

	switch {
	case failures == 0:
		monitoring.RecordSyncRun("success")
	case failures < len(snapshots):
		monitoring.RecordSyncRun("partial")
	default:
		monitoring.RecordSyncRun("error")
	}
}

// reconcileOne refreshes one snapshot from the server and enqueues tracks the
// local store is missing.
func (r *Reconciler) reconcileOne(snapshot *store.OfflinePlaylist) error {
	remote, err := r.fetchPlaylist(snapshot.ID)
	if err != nil {
		return apperrors.NewReconciliationError(snapshot.ID, err)
	}

	known := make(map[string]struct{}, len(snapshot.Tracks))
	for _, track := range snapshot.Tracks {
		known[track.ID] = struct{}{}
	}

	var discovered []api.Track
	for _, track := range remote.Tracks {
		if _, ok := known[track.ID]; ok {
			continue
		}
		cached, err := r.cache.IsCached(track.ID)
		if err != nil {
			return apperrors.NewReconciliationError(snapshot.ID, err)
		}
		if !cached {
			discovered = append(discovered, track)
		}
	}

	now := time.Now()

	if len(discovered) == 0 {
		// Nothing new: stamp the sync time without rewriting the snapshot
		if err := r.playlists.SetLastSynced(snapshot.ID, now); err != nil {
			return apperrors.NewReconciliationError(snapshot.ID, err)
		}
		return nil
	}

	snapshot.Name = remote.Name
	snapshot.Description = remote.Description
	snapshot.Tracks = remote.Tracks
	snapshot.LastSyncedAt = &now

	if err := r.playlists.Save(snapshot); err != nil {
		return apperrors.NewReconciliationError(snapshot.ID, err)
	}

	r.enqueuer.EnqueueMany(discovered)
	monitoring.SyncTracksEnqueuedTotal.Add(float64(len(discovered)))
	r.logger.Info("playlist sync enqueued new tracks",
		zap.String("playlist_id", snapshot.ID),
		zap.Int("count", len(discovered)))

	return nil
}

// fetchPlaylist retrieves one playlist through the circuit breaker with
// bounded retries.
func (r *Reconciler) fetchPlaylist(id string) (*api.Playlist, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var playlist *api.Playlist
	err := apperrors.RetryWithBackoff(ctx, apperrors.DefaultRetryConfig(), func() error {
		result, err := r.breaker.Execute(func() (interface{}, error) {
			return r.remote.GetByID(ctx, id)
		})
		if err != nil {
			return err
		}
		playlist = result.(*api.Playlist)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return playlist, nil
}

// DownloadMissingTracks scans every saved snapshot and enqueues tracks absent
// from the content store. Returns the number of tracks enqueued. Used at
// startup to repair a cache that fell behind while the engine was offline.
func (r *Reconciler) DownloadMissingTracks() (int, error) {
	snapshots, err := r.playlists.GetAll()
	if err != nil {
		return 0, apperrors.NewStoreError("failed to load playlist snapshots", err)
	}

	seen := make(map[string]struct{})
	var missing []api.Track

	for _, snapshot := range snapshots {
		for _, track := range snapshot.Tracks {
			if _, ok := seen[track.ID]; ok {
				continue
			}
			seen[track.ID] = struct{}{}

			cached, err := r.cache.IsCached(track.ID)
			if err != nil {
				return len(missing), err
			}
			if !cached {
				missing = append(missing, track)
			}
		}
	}

	if len(missing) > 0 {
		r.enqueuer.EnqueueMany(missing)
		r.logger.Info("enqueued missing playlist tracks", zap.Int("count", len(missing)))
	}

	return len(missing), nil
}

var _ Enqueuer = (*download.Orchestrator)(nil)
