package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/config"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/logging"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/remote"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/server"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/session"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/store"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/syncer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// application holds the wired service graph.
type application struct {
	config     config.AppConfig
	logger     *zap.Logger
	sqlDB      *sql.DB
	remote     *remote.Client
	reconciler *reports.Reconciler
	master     *masterdata.Service
	syncer     *syncer.Syncer
	realtime   *server.RealtimeDispatcher
	handler    http.Handler
}

// buildApplication opens the cache and wires store, gate, master data, reconciler, syncer and HTTP
// handler in dependency order.
func buildApplication(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (*application, error) {
	db, err := store.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	cache, err := store.New(store.Config{Database: db, Logger: logger})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	var remoteClient *remote.Client
	var gateRemote syncer.Remote
	if appConfig.RemoteEndpoint != "" {
		remoteClient, err = remote.NewClient(remote.ClientConfig{
			Endpoint: appConfig.RemoteEndpoint,
			Timeout:  appConfig.RemoteTimeout,
			Logger:   logger,
		})
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		gateRemote = remoteClient
	}

	storedOffline, err := cache.Offline(ctx)
	if err != nil {
		logger.Warn("offline flag unreadable", zap.Error(err))
	}
	gate := syncer.NewGate(syncer.GateConfig{
		Remote:    gateRemote,
		ModeStore: cache,
		SubmitRPS: appConfig.SubmitRPS,
		Offline:   appConfig.Offline || storedOffline,
		Logger:    logger,
	})

	cachedCatalog, _, err := cache.LoadCatalog(ctx)
	if err != nil {
		logger.Warn("master data cache unreadable", zap.Error(err))
	}
	unpublished, err := cache.CatalogUnpublished(ctx)
	if err != nil {
		logger.Warn("master data publish marker unreadable", zap.Error(err))
	}
	master := masterdata.NewService(masterdata.ServiceConfig{
		Initial:     cachedCatalog,
		Mirror:      cache,
		Publisher:   gate,
		Logger:      logger,
		Unpublished: unpublished,
	})

	dispatcher := server.NewRealtimeDispatcher()
	reconciler := reports.NewReconciler(reports.ReconcilerConfig{
		Notifier: reports.FanOut(dispatcher, logging.NewNotifier(logger)),
		Location: appConfig.Location,
		SummaryWindow: &reports.SummaryWindow{
			StartHour: appConfig.SummaryStartHour,
			EndHour:   appConfig.SummaryEndHour,
		},
		Logger: logger,
	})

	metrics, err := syncer.NewMetrics(nil)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	reportSyncer, err := syncer.New(syncer.Config{
		Reconciler:   reconciler,
		Gate:         gate,
		Catalog:      master,
		Cache:        cache,
		Warnings:     dispatcher,
		Metrics:      metrics,
		PollInterval: appConfig.PollInterval,
		PendingGrace: appConfig.PendingGrace,
		Logger:       logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if _, err := reportSyncer.Restore(ctx); err != nil {
		logger.Warn("report cache unreadable", zap.Error(err))
	}

	sessions, err := session.NewManager(session.ManagerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		TokenTTL:      appConfig.SessionTTL,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:   sessions,
		Reconciler: reconciler,
		Sync:       reportSyncer,
		MasterData: master,
		Realtime:   dispatcher,
		Logger:     logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &application{
		config:     appConfig,
		logger:     logger,
		sqlDB:      sqlDB,
		remote:     remoteClient,
		reconciler: reconciler,
		master:     master,
		syncer:     reportSyncer,
		realtime:   dispatcher,
		handler:    handler,
	}, nil
}

// run serves HTTP and drives the poll loop until ctx ends or either fails.
func (a *application) run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              a.config.HTTPAddress,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	// Event streams end with the group so Shutdown does not wait on them.
	httpServer.BaseContext = func(net.Listener) context.Context { return groupCtx }
	group.Go(func() error {
		a.logger.Info("server starting", zap.String("address", a.config.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return a.syncer.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *application) close() {
	a.syncer.Close()
	if err := a.sqlDB.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
}
