package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/remote"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultSubmitRPS = 2.0

// ErrOffline indicates that the remote store was not contacted because offline mode is on.
var ErrOffline = errors.New("syncer: offline mode")

// Remote is the subset of the remote client the syncer needs.
type Remote interface {
	FetchAll(ctx context.Context) (remote.Snapshot, error)
	SaveReport(ctx context.Context, report reports.Report) error
	UpdateMaster(ctx context.Context, catalog masterdata.Catalog) error
}

// ModeStore persists the offline switch.
type ModeStore interface {
	SetOffline(ctx context.Context, enabled bool) error
}

// GateConfig wires a Gate.
type GateConfig struct {
	Remote    Remote
	ModeStore ModeStore
	// SubmitRPS bounds outbound writes; the script endpoint throttles bursts.
	SubmitRPS float64
	Offline   bool
	Logger    *zap.Logger
}

// Gate fronts every outbound write: it honours offline mode and paces requests.
type Gate struct {
	remote  Remote
	modes   ModeStore
	limiter *rate.Limiter
	offline atomic.Bool
	logger  *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(cfg GateConfig) *Gate {
	rps := cfg.SubmitRPS
	if rps <= 0 {
		rps = defaultSubmitRPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := &Gate{
		remote:  cfg.Remote,
		modes:   cfg.ModeStore,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
	gate.offline.Store(cfg.Offline || cfg.Remote == nil)
	return gate
}

// Offline reports whether outbound traffic is suspended.
func (g *Gate) Offline() bool {
	return g.offline.Load()
}

// SetOffline switches offline mode and persists the choice. Going online without a remote is refused.
func (g *Gate) SetOffline(ctx context.Context, enabled bool) error {
	if !enabled && g.remote == nil {
		return ErrNoRemote
	}
	if g.modes != nil {
		if err := g.modes.SetOffline(ctx, enabled); err != nil {
			return err
		}
	}
	g.offline.Store(enabled)
	g.logger.Info("offline mode changed", zap.Bool("offline", enabled))
	return nil
}

// FetchAll polls the remote store.
func (g *Gate) FetchAll(ctx context.Context) (remote.Snapshot, error) {
	if g.Offline() {
		return remote.Snapshot{}, ErrOffline
	}
	return g.remote.FetchAll(ctx)
}

// SaveReport pushes one report once the limiter admits it.
func (g *Gate) SaveReport(ctx context.Context, report reports.Report) error {
	if g.Offline() {
		return ErrOffline
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.remote.SaveReport(ctx, report)
}

// UpdateMaster pushes the catalog. In offline mode the change stays local and the returned error wraps
// masterdata.ErrPublishDeferred.
func (g *Gate) UpdateMaster(ctx context.Context, catalog masterdata.Catalog) error {
	if g.Offline() {
		return fmt.Errorf("%w: %w", ErrOffline, masterdata.ErrPublishDeferred)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.remote.UpdateMaster(ctx, catalog)
}
