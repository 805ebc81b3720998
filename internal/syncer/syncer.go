package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"go.uber.org/zap"
)

const (
	defaultPollInterval  = 2 * time.Minute
	defaultPendingGrace  = 150 * time.Second
	defaultSubmitTimeout = time.Minute

	// WarningSyncDelayed is published when a submission could not reach the remote store.
	WarningSyncDelayed = "sync_delayed"
	// WarningPollFailed is published when a poll fails.
	WarningPollFailed = "poll_failed"
)

var (
	// ErrNoRemote indicates that online mode was requested without a remote endpoint.
	ErrNoRemote          = errors.New("syncer: no remote endpoint configured")
	errMissingReconciler = errors.New("syncer: reconciler is required")
	errMissingGate       = errors.New("syncer: gate is required")
)

// Cache keeps the merged collection on local disk.
type Cache interface {
	SaveReports(ctx context.Context, collection []reports.Report) error
	LoadReports(ctx context.Context) ([]reports.Report, error)
}

// CatalogAdopter receives the master data of every successful poll. It may republish local changes
// instead of adopting them.
type CatalogAdopter interface {
	AdoptPolled(ctx context.Context, polled masterdata.Catalog) error
}

// WarningPublisher surfaces non-fatal sync problems to connected clients.
type WarningPublisher interface {
	PublishWarning(code, message string)
}

// Config wires a Syncer.
type Config struct {
	Reconciler   *reports.Reconciler
	Gate         *Gate
	Catalog      CatalogAdopter
	Cache        Cache
	Warnings     WarningPublisher
	Metrics      *Metrics
	PollInterval time.Duration
	PendingGrace time.Duration
	Logger       *zap.Logger
}

// Syncer drives the poll loop and report submissions around a Reconciler.
type Syncer struct {
	reconciler *reports.Reconciler
	gate       *Gate
	catalog    CatalogAdopter
	cache      Cache
	warnings   WarningPublisher
	metrics    *Metrics
	interval   time.Duration
	grace      time.Duration
	logger     *zap.Logger

	refreshes chan struct{}
	inflight  sync.WaitGroup

	// cacheMu orders cache writes; each write stores the state current when it holds the lock.
	cacheMu sync.Mutex

	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}
}

// New constructs a Syncer.
func New(cfg Config) (*Syncer, error) {
	if cfg.Reconciler == nil {
		return nil, errMissingReconciler
	}
	if cfg.Gate == nil {
		return nil, errMissingGate
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	grace := cfg.PendingGrace
	if grace <= 0 {
		grace = defaultPendingGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		reconciler: cfg.Reconciler,
		gate:       cfg.Gate,
		catalog:    cfg.Catalog,
		cache:      cfg.Cache,
		warnings:   cfg.Warnings,
		metrics:    cfg.Metrics,
		interval:   interval,
		grace:      grace,
		logger:     logger,
		refreshes:  make(chan struct{}, 1),
		timers:     make(map[*time.Timer]struct{}),
	}, nil
}

// Restore seeds the reconciler from the local cache.
func (s *Syncer) Restore(ctx context.Context) (reports.MergedState, error) {
	if s.cache == nil {
		return s.reconciler.Snapshot(), nil
	}
	cached, err := s.cache.LoadReports(ctx)
	if err != nil {
		return reports.MergedState{}, err
	}
	state := s.reconciler.Seed(cached)
	s.logger.Info("report cache restored", zap.Int("reports", len(state.Reports)))
	return state, nil
}

// Run polls immediately, then on every interval tick or refresh request, until ctx is done. It waits
// for in-flight submissions before returning.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.Close()

	s.pollQuietly(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollQuietly(ctx)
		case <-s.refreshes:
			s.pollQuietly(ctx)
		}
	}
}

// RequestRefresh asks the running loop for an extra poll without blocking.
func (s *Syncer) RequestRefresh() {
	select {
	case s.refreshes <- struct{}{}:
	default:
	}
}

// Refresh polls the remote store once and merges the result. In offline mode it returns the local state
// together with ErrOffline.
func (s *Syncer) Refresh(ctx context.Context) (reports.MergedState, error) {
	started := time.Now()
	snapshot, err := s.gate.FetchAll(ctx)
	if errors.Is(err, ErrOffline) {
		return s.reconciler.Snapshot(), err
	}
	if err != nil {
		s.metrics.recordPoll(ctx, "error", time.Since(started), 0)
		s.logger.Warn("poll failed", zap.String("operation", "syncer.refresh"), zap.Error(err))
		s.warn(WarningPollFailed, "Gagal mengambil data dari server.")
		return s.reconciler.Snapshot(), err
	}

	state := s.reconciler.IngestServerSnapshot(snapshot.Reports)
	s.metrics.recordPoll(ctx, "ok", time.Since(started), snapshot.Skipped+state.Stats.SkippedInvalid)

	if s.catalog != nil {
		if err := s.catalog.AdoptPolled(ctx, snapshot.MasterData); err != nil {
			s.logger.Warn("master data sync failed", zap.String("operation", "syncer.refresh"), zap.Error(err))
		}
	}
	s.persist(ctx)

	s.logger.Debug("poll merged",
		zap.Int("received", state.Stats.Received),
		zap.Int("inserted", state.Stats.Inserted),
		zap.Int("replaced", state.Stats.Replaced),
		zap.Int("skipped_pending", state.Stats.SkippedPending),
		zap.Int("confirmed", state.Stats.Confirmed),
	)
	return state, nil
}

// Submit applies the report optimistically and returns the merged state at once. The remote write runs
// in the background; a failure keeps the optimistic state and the pending marker.
func (s *Syncer) Submit(ctx context.Context, report reports.Report) (reports.MergedState, error) {
	state, err := s.reconciler.ApplyLocalWrite(report)
	if err != nil {
		return reports.MergedState{}, err
	}
	s.persist(ctx)

	if s.gate.Offline() {
		// Nothing is in flight, so nothing will ever confirm the write.
		s.reconciler.ClearPending(report.ID, report.Timestamp)
		s.metrics.recordSubmission(ctx, "offline")
		return s.reconciler.Snapshot(), nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.push(context.WithoutCancel(ctx), report)
	}()
	return state, nil
}

// Offline reports whether offline mode is on.
func (s *Syncer) Offline() bool {
	return s.gate.Offline()
}

// SetOffline switches offline mode.
func (s *Syncer) SetOffline(ctx context.Context, enabled bool) error {
	return s.gate.SetOffline(ctx, enabled)
}

// Wait blocks until every background submission has finished.
func (s *Syncer) Wait() {
	s.inflight.Wait()
}

// Close waits for submissions and stops pending grace timers.
func (s *Syncer) Close() {
	s.inflight.Wait()
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for timer := range s.timers {
		timer.Stop()
		delete(s.timers, timer)
	}
}

func (s *Syncer) push(ctx context.Context, report reports.Report) {
	ctx, cancel := context.WithTimeout(ctx, defaultSubmitTimeout)
	defer cancel()
	done := s.metrics.trackInFlight(ctx)
	defer done()

	if err := s.gate.SaveReport(ctx, report); err != nil {
		s.metrics.recordSubmission(ctx, "error")
		s.logger.Warn("report submission failed",
			zap.String("operation", "syncer.submit"),
			zap.String("report_id", report.ID.String()),
			zap.Error(err),
		)
		s.warn(WarningSyncDelayed, "Laporan tersimpan di perangkat, sinkronisasi ke server mungkin tertunda.")
		return
	}
	s.metrics.recordSubmission(ctx, "ok")
	s.scheduleClear(report)

	// The remote store rewrites inline photos into hosted URLs; fetch them now.
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrOffline) {
		s.logger.Debug("post-submit refresh failed", zap.Error(err))
	}
}

func (s *Syncer) scheduleClear(report reports.Report) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(s.grace, func() {
		s.reconciler.ClearPending(report.ID, report.Timestamp)
		s.timersMu.Lock()
		delete(s.timers, timer)
		s.timersMu.Unlock()
	})
	s.timers[timer] = struct{}{}
}

func (s *Syncer) pollQuietly(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrOffline) && ctx.Err() == nil {
		s.logger.Debug("scheduled poll failed", zap.Error(err))
	}
}

func (s *Syncer) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if err := s.cache.SaveReports(ctx, s.reconciler.Snapshot().Reports); err != nil {
		s.logger.Warn("report cache write failed", zap.Error(err))
	}
}

func (s *Syncer) warn(code, message string) {
	if s.warnings != nil {
		s.warnings.PublishWarning(code, message)
	}
}
