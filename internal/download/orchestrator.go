package download

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/playvault/playvault-go/internal/api"
	"github.com/playvault/playvault-go/internal/cache"
	"github.com/playvault/playvault-go/internal/config"
	apperrors "github.com/playvault/playvault-go/internal/errors"
	"github.com/playvault/playvault-go/internal/metadata"
	"github.com/playvault/playvault-go/internal/monitoring"
	"github.com/playvault/playvault-go/internal/store"
)

// persistence throttling for progress rows; every observation still reaches
// the hub
const (
	progressPersistStep     = 10
	progressPersistInterval = 2 * time.Second
)

// Options configures an Orchestrator
type Options struct {
	Queue     *store.QueueStore
	Cache     *cache.Manager
	Transport Transport
	// Extractor, when set, decodes tags and cover art from completed payloads
	Extractor *metadata.Extractor
	// StreamURL resolves a track id to an authenticated download URL; used
	// when a track carries no source URL and when resetting stale rows
	StreamURL func(trackID string) string
	Logger    *zap.Logger
	Config    config.DownloadConfig
}

// Orchestrator drains the download queue with a single long-lived worker
// goroutine. All transfers run one at a time; enqueue operations from any
// goroutine wake the worker through a buffered channel, so a running drain
// is structurally guaranteed to be the only one.
type Orchestrator struct {
	queue     *store.QueueStore
	cache     *cache.Manager
	transport Transport
	extractor *metadata.Extractor
	streamURL func(trackID string) string
	hub       *ProgressHub
	logger    *zap.Logger

	chunkSize        int64
	minCompleteRatio float64
	debounce         time.Duration

	wake chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	batchMu    sync.Mutex
	batch      []api.Track
	batchTimer *time.Timer

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

// NewOrchestrator creates a new download orchestrator
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streamURL := opts.StreamURL
	if streamURL == nil {
		streamURL = func(string) string { return "" }
	}

	ratio := opts.Config.MinCompleteRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.90
	}

	return &Orchestrator{
		queue:            opts.Queue,
		cache:            opts.Cache,
		transport:        opts.Transport,
		extractor:        opts.Extractor,
		streamURL:        streamURL,
		hub:              NewProgressHub(),
		logger:           logger,
		chunkSize:        opts.Config.ChunkSize(),
		minCompleteRatio: ratio,
		debounce:         time.Duration(opts.Config.DebounceMS) * time.Millisecond,
		wake:             make(chan struct{}, 1),
		cancels:          make(map[string]context.CancelFunc),
	}
}

// Progress returns the orchestrator's progress hub
func (o *Orchestrator) Progress() *ProgressHub {
	return o.hub
}

// Start launches the worker goroutine. Rows left in downloading by a previous
// session are returned to pending first. Idempotent.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.runCtx, o.runCancel = context.WithCancel(context.Background())
	o.mu.Unlock()

	repaired, err := o.queue.ResetStuckDownloading()
	if err != nil {
		return apperrors.NewStoreError("failed to repair interrupted downloads", err)
	}
	if repaired > 0 {
		o.logger.Info("repaired interrupted downloads", zap.Int64("count", repaired))
	}

	o.wg.Add(1)
	go o.run()

	o.signalWake()
	return nil
}

// Stop cancels any in-flight transfer and waits for the worker to exit
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.runCancel
	o.mu.Unlock()

	o.batchMu.Lock()
	if o.batchTimer != nil {
		o.batchTimer.Stop()
		o.batchTimer = nil
	}
	o.batchMu.Unlock()

	cancel()
	o.wg.Wait()
}

// Enqueue adds one track to the download queue. Tracks already cached and
// tracks with an active queue row are no-ops; failed or cancelled rows are
// reset in place rather than duplicated.
func (o *Orchestrator) Enqueue(track api.Track) error {
	if track.ID == "" {
		return apperrors.NewValidationError("track id cannot be empty")
	}

	if err := o.enqueueOne(track); err != nil {
		return err
	}

	o.updateQueueGauge()
	o.signalWake()
	return nil
}

// EnqueueMany adds a batch of tracks, collapsing the burst into a single
// worker wake after the debounce window. With a zero debounce the batch is
// processed synchronously.
func (o *Orchestrator) EnqueueMany(tracks []api.Track) {
	if len(tracks) == 0 {
		return
	}

	if o.debounce <= 0 {
		o.flushBatchItems(tracks)
		return
	}

	o.batchMu.Lock()
	o.batch = append(o.batch, tracks...)
	if o.batchTimer != nil {
		o.batchTimer.Stop()
	}
	o.batchTimer = time.AfterFunc(o.debounce, o.flushBatch)
	o.batchMu.Unlock()
}

// flushBatch drains the pending batch into the queue
func (o *Orchestrator) flushBatch() {
	o.batchMu.Lock()
	tracks := o.batch
	o.batch = nil
	o.batchTimer = nil
	o.batchMu.Unlock()

	o.flushBatchItems(tracks)
}

func (o *Orchestrator) flushBatchItems(tracks []api.Track) {
	enqueued := 0
	for _, track := range tracks {
		if track.ID == "" {
			continue
		}
		if err := o.enqueueOne(track); err != nil {
			o.logger.Warn("failed to enqueue track",
				zap.String("track_id", track.ID),
				zap.Error(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		o.updateQueueGauge()
		o.signalWake()
	}
}

// enqueueOne applies the idempotent enqueue semantics without waking the
// worker.
func (o *Orchestrator) enqueueOne(track api.Track) error {
	cached, err := o.cache.IsCached(track.ID)
	if err != nil {
		return err
	}
	if cached {
		return nil
	}

	sourceURL := track.SourceURL
	if sourceURL == "" {
		sourceURL = o.streamURL(track.ID)
	}

	existing, err := o.queue.GetByTrackID(track.ID)
	if err != nil {
		return apperrors.NewStoreError("failed to look up queue row", err)
	}

	if existing != nil {
		switch existing.Status {
		case store.StatusPending, store.StatusDownloading:
			return nil
		default:
			if err := o.queue.Reset(existing.ID, sourceURL); err != nil {
				return apperrors.NewStoreError("failed to reset queue row", err)
			}
			return nil
		}
	}

	item := &store.QueueItem{
		TrackID:     track.ID,
		SourceURL:   sourceURL,
		FileName:    track.FileName,
		ChannelID:   track.ChannelID,
		ChannelName: track.ChannelName,
		FileSize:    track.FileSize,
	}
	if err := o.queue.Add(item); err != nil {
		return apperrors.NewStoreError("failed to add queue row", err)
	}

	return nil
}

// Cancel aborts the download of one track, whether pending or in flight
func (o *Orchestrator) Cancel(trackID string) error {
	o.mu.Lock()
	if cancel, ok := o.cancels[trackID]; ok {
		cancel()
	}
	o.mu.Unlock()

	if _, err := o.queue.CancelByTrackID(trackID); err != nil {
		return apperrors.NewStoreError("failed to cancel queue rows", err)
	}

	o.updateQueueGauge()
	return nil
}

// CancelAll aborts every pending and in-flight download
func (o *Orchestrator) CancelAll() error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	if err := o.queue.CancelAllActive(); err != nil {
		return apperrors.NewStoreError("failed to cancel queue rows", err)
	}

	o.updateQueueGauge()
	return nil
}

// Retry returns a failed row to pending and wakes the worker. Rows in any
// other terminal state are rejected.
func (o *Orchestrator) Retry(trackID string) error {
	row, err := o.queue.GetByTrackID(trackID)
	if err != nil {
		return apperrors.NewStoreError("failed to look up queue row", err)
	}
	if row == nil {
		return apperrors.NewValidationError("no queue row for track")
	}
	if row.Status == store.StatusPending || row.Status == store.StatusDownloading {
		return nil
	}
	if row.Status != store.StatusFailed {
		// Cancelled rows come back through Enqueue, not Retry
		return apperrors.NewValidationError("only failed downloads can be retried")
	}

	sourceURL := row.SourceURL
	if refreshed := o.streamURL(trackID); refreshed != "" {
		sourceURL = refreshed
	}

	if err := o.queue.Reset(row.ID, sourceURL); err != nil {
		return apperrors.NewStoreError("failed to reset queue row", err)
	}

	o.updateQueueGauge()
	o.signalWake()
	return nil
}

// RestartQueue returns interrupted rows to pending and wakes the worker
func (o *Orchestrator) RestartQueue() error {
	repaired, err := o.queue.ResetStuckDownloading()
	if err != nil {
		return apperrors.NewStoreError("failed to restart queue", err)
	}
	if repaired > 0 {
		o.logger.Info("restarted interrupted downloads", zap.Int64("count", repaired))
	}

	o.signalWake()
	return nil
}

// ClearQueue aborts everything in flight and removes all queue rows
func (o *Orchestrator) ClearQueue() error {
	if err := o.CancelAll(); err != nil {
		return err
	}
	if err := o.queue.ClearAll(); err != nil {
		return apperrors.NewStoreError("failed to clear queue", err)
	}

	o.updateQueueGauge()
	return nil
}

// GetStats returns queue statistics
func (o *Orchestrator) GetStats() (*store.QueueStats, error) {
	stats, err := o.queue.GetStats()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get queue stats", err)
	}
	return stats, nil
}

// signalWake nudges the worker without blocking; a wake already pending is
// enough.
func (o *Orchestrator) signalWake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// run is the single worker loop
func (o *Orchestrator) run() {
	defer o.wg.Done()

	for {
		select {
		case <-o.runCtx.Done():
			return
		case <-o.wake:
			o.drain()
		}
	}
}

// drain processes pending rows FIFO until the queue is empty or the
// orchestrator stops.
func (o *Orchestrator) drain() {
	for {
		if o.runCtx.Err() != nil {
			return
		}

		item, err := o.queue.NextPending()
		if err != nil {
			o.logger.Error("failed to read next pending download", zap.Error(err))
			monitoring.RecordError(string(apperrors.ErrTypeStore))
			return
		}
		if item == nil {
			return
		}

		o.process(item)
		o.updateQueueGauge()
	}
}

// process runs one transfer to a terminal state. Errors never propagate past
// here; they become failed or cancelled rows.
func (o *Orchestrator) process(item *store.QueueItem) {
	start := time.Now()

	o.logger.Info("starting download",
		zap.String("track_id", item.TrackID),
		zap.String("file_name", item.FileName),
		zap.Int64("expected_size", item.FileSize))

	ctx, cancel := context.WithCancel(o.runCtx)
	o.mu.Lock()
	o.cancels[item.TrackID] = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.cancels, item.TrackID)
		o.mu.Unlock()
		cancel()
	}()

	if err := o.queue.SetStatus(item.ID, store.StatusDownloading); err != nil {
		o.logger.Error("failed to mark row downloading", zap.Error(err))
		return
	}
	monitoring.RecordDownloadStart()

	o.cache.BeginDownload(item.TrackID)
	defer o.cache.EndDownload(item.TrackID)

	lastPersisted := 0
	lastPersistAt := time.Time{}
	onProgress := func(progress int, received, total int64) {
		o.hub.Publish(item.TrackID, progress, received, total)

		if progress >= lastPersisted+progressPersistStep ||
			time.Since(lastPersistAt) >= progressPersistInterval ||
			progress == 100 {
			if err := o.queue.SetProgress(item.ID, progress); err == nil {
				lastPersisted = progress
				lastPersistAt = time.Now()
			}
		}
	}

	result, err := o.fetchPayload(ctx, item.SourceURL, item.FileSize, onProgress)
	if err == nil {
		err = o.validatePayload(result)
	}

	if err != nil {
		o.finishWithError(item, err)
		return
	}

	record := &store.CachedTrack{
		ID:          item.TrackID,
		ChannelID:   item.ChannelID,
		ChannelName: item.ChannelName,
		FileName:    item.FileName,
		FileSize:    int64(len(result.payload)),
		SourceURL:   item.SourceURL,
		Payload:     result.payload,
	}

	if err := o.cache.Put(record); err != nil {
		o.finishWithError(item, err)
		return
	}

	o.extractMetadata(item.TrackID, item.FileName, result.payload)

	if err := o.queue.Delete(item.ID); err != nil {
		o.logger.Error("failed to delete completed queue row",
			zap.String("track_id", item.TrackID),
			zap.Error(err))
	}

	o.hub.Publish(item.TrackID, 100, record.FileSize, record.FileSize)
	o.hub.Remove(item.TrackID)

	monitoring.RecordDownloadComplete(time.Since(start), record.FileSize)
	o.logger.Info("download complete",
		zap.String("track_id", item.TrackID),
		zap.Int64("size", record.FileSize),
		zap.Duration("elapsed", time.Since(start)))
}

// finishWithError moves a row to its terminal state for the given error
func (o *Orchestrator) finishWithError(item *store.QueueItem, err error) {
	o.hub.Remove(item.TrackID)

	if apperrors.IsCancelled(err) || o.runCtx.Err() != nil {
		if merr := o.queue.MarkCancelled(item.ID); merr != nil {
			o.logger.Error("failed to mark row cancelled", zap.Error(merr))
		}
		monitoring.RecordDownloadCancelled()
		o.logger.Info("download cancelled", zap.String("track_id", item.TrackID))
		return
	}

	if merr := o.queue.MarkFailed(item.ID, err.Error()); merr != nil {
		o.logger.Error("failed to mark row failed", zap.Error(merr))
	}

	errType := string(apperrors.GetErrorType(err))
	monitoring.RecordDownloadFailed(errType)
	o.logger.Warn("download failed",
		zap.String("track_id", item.TrackID),
		zap.String("error_type", errType),
		zap.Error(err))
}

// extractMetadata best-effort decodes tags from a cached payload; failures
// are logged and the record stays usable without tags.
func (o *Orchestrator) extractMetadata(trackID, fileName string, payload []byte) {
	if o.extractor == nil {
		return
	}

	tags, err := o.extractor.Extract(payload, fileName)
	if err != nil {
		o.logger.Debug("metadata extraction skipped",
			zap.String("track_id", trackID),
			zap.Error(err))
		return
	}

	if err := o.cache.SetExtractedMetadata(trackID, tags.Title, tags.Artist, tags.Album, tags.CoverArt); err != nil {
		o.logger.Warn("failed to store extracted metadata",
			zap.String("track_id", trackID),
			zap.Error(err))
	}
}

// updateQueueGauge refreshes the queue depth metric
func (o *Orchestrator) updateQueueGauge() {
	stats, err := o.queue.GetStats()
	if err != nil {
		return
	}
	monitoring.UpdateQueueSize(stats.Pending + stats.Downloading)
}
