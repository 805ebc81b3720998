package masterdata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownUnit indicates that the unit is not part of the catalog.
	ErrUnknownUnit = errors.New("masterdata: unknown unit")
	// ErrUnknownFeeder indicates that the feeder is not registered for the unit.
	ErrUnknownFeeder = errors.New("masterdata: unknown feeder")
	// ErrNoNames indicates that an add request carried no usable names.
	ErrNoNames = errors.New("masterdata: at least one name is required")
	// ErrNotFound indicates that the entry to delete does not exist.
	ErrNotFound = errors.New("masterdata: entry not found")
	// ErrPublishFailed indicates that a change was applied locally but not pushed to the remote store.
	ErrPublishFailed = errors.New("masterdata: publish failed")
	// ErrPublishDeferred is returned by publishers that keep the catalog local on purpose, such as in
	// offline mode. The change is published by the next poll.
	ErrPublishDeferred = errors.New("masterdata: publish deferred")
)

// ServiceError carries a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opAddOfficers    = "masterdata.add_officers"
	opDeleteOfficer  = "masterdata.delete_officer"
	opAddFeeders     = "masterdata.add_feeders"
	opDeleteFeeder   = "masterdata.delete_feeder"
	opAddKeypoints   = "masterdata.add_keypoints"
	opDeleteKeypoint = "masterdata.delete_keypoint"
	opResetDefaults  = "masterdata.reset_defaults"
	opAdoptPolled    = "masterdata.adopt_polled"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Mirror keeps the local copy of the catalog and whether it still has to be published.
type Mirror interface {
	SaveCatalog(ctx context.Context, catalog Catalog) error
	SetCatalogUnpublished(ctx context.Context, unpublished bool) error
}

// Publisher pushes the complete catalog to the remote store.
type Publisher interface {
	UpdateMaster(ctx context.Context, catalog Catalog) error
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Initial   Catalog
	Mirror    Mirror
	Publisher Publisher
	Logger    *zap.Logger

	// Unpublished restores the marker saved by an earlier process.
	Unpublished bool
}

// Service owns the in-memory catalog. Every mutation is applied locally, mirrored, then published as a
// whole. A failed or deferred publish keeps the local change and marks the catalog unpublished; polls
// republish an unpublished catalog instead of adopting the remote one.
type Service struct {
	mu          sync.RWMutex
	catalog     Catalog
	unpublished bool

	// writeMu orders mirror and publish calls so the remote store sees mutations in sequence.
	writeMu   sync.Mutex
	mirror    Mirror
	publisher Publisher
	logger    *zap.Logger
}

// NewService constructs a Service. A nil Initial catalog starts from the defaults.
func NewService(cfg ServiceConfig) *Service {
	initial := cfg.Initial.Clone()
	if len(initial) == 0 {
		initial = DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:     initial,
		unpublished: cfg.Unpublished,
		mirror:      cfg.Mirror,
		publisher:   cfg.Publisher,
		logger:      logger,
	}
}

// Unpublished reports whether local changes have not reached the remote store yet.
func (s *Service) Unpublished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unpublished
}

// Catalog returns a copy of the current catalog.
func (s *Service) Catalog() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Clone()
}

// AddOfficers registers names for unit, skipping names already present. It returns the names added.
func (s *Service) AddOfficers(ctx context.Context, unit string, names []string) ([]string, error) {
	var added []string
	err := s.mutate(ctx, opAddOfficers, func(catalog Catalog) error {
		if len(names) == 0 {
			return ErrNoNames
		}
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		entry.Officers, added = appendUnique(entry.Officers, names)
		if len(added) == 0 {
			return ErrNoNames
		}
		catalog[unit] = entry
		return nil
	})
	return added, err
}

// DeleteOfficer removes one officer from unit.
func (s *Service) DeleteOfficer(ctx context.Context, unit, name string) error {
	return s.mutate(ctx, opDeleteOfficer, func(catalog Catalog) error {
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		var removed bool
		entry.Officers, removed = without(entry.Officers, name)
		if !removed {
			return ErrNotFound
		}
		catalog[unit] = entry
		return nil
	})
}

// AddFeeders registers feeders for unit, skipping feeders already present.
func (s *Service) AddFeeders(ctx context.Context, unit string, names []string) ([]string, error) {
	var added []string
	err := s.mutate(ctx, opAddFeeders, func(catalog Catalog) error {
		if len(names) == 0 {
			return ErrNoNames
		}
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		entry.Feeders, added = appendUnique(entry.Feeders, names)
		if len(added) == 0 {
			return ErrNoNames
		}
		catalog[unit] = entry
		return nil
	})
	return added, err
}

// DeleteFeeder removes a feeder together with its keypoints.
func (s *Service) DeleteFeeder(ctx context.Context, unit, feeder string) error {
	return s.mutate(ctx, opDeleteFeeder, func(catalog Catalog) error {
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		var removed bool
		entry.Feeders, removed = without(entry.Feeders, feeder)
		if !removed {
			return ErrNotFound
		}
		delete(entry.Keypoints, feeder)
		catalog[unit] = entry
		return nil
	})
}

// AddKeypoints registers keypoints under a feeder of unit.
func (s *Service) AddKeypoints(ctx context.Context, unit, feeder string, names []string) ([]string, error) {
	var added []string
	err := s.mutate(ctx, opAddKeypoints, func(catalog Catalog) error {
		if len(names) == 0 {
			return ErrNoNames
		}
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		if !contains(entry.Feeders, feeder) {
			return ErrUnknownFeeder
		}
		if entry.Keypoints == nil {
			entry.Keypoints = make(map[string][]string)
		}
		entry.Keypoints[feeder], added = appendUnique(entry.Keypoints[feeder], names)
		if len(added) == 0 {
			return ErrNoNames
		}
		catalog[unit] = entry
		return nil
	})
	return added, err
}

// DeleteKeypoint removes one keypoint from a feeder of unit.
func (s *Service) DeleteKeypoint(ctx context.Context, unit, feeder, name string) error {
	return s.mutate(ctx, opDeleteKeypoint, func(catalog Catalog) error {
		entry, ok := catalog[unit]
		if !ok {
			return ErrUnknownUnit
		}
		keypoints, ok := entry.Keypoints[feeder]
		if !ok {
			return ErrUnknownFeeder
		}
		var removed bool
		entry.Keypoints[feeder], removed = without(keypoints, name)
		if !removed {
			return ErrNotFound
		}
		catalog[unit] = entry
		return nil
	})
}

// ResetDefaults replaces the catalog with the defaults and publishes it.
func (s *Service) ResetDefaults(ctx context.Context) error {
	return s.mutate(ctx, opResetDefaults, resetToDefaults)
}

func resetToDefaults(catalog Catalog) error {
	for name := range catalog {
		delete(catalog, name)
	}
	for name, unit := range DefaultCatalog() {
		catalog[name] = unit
	}
	return nil
}

// AdoptPolled takes over the catalog returned by a poll. While local changes are unpublished the local
// catalog is republished instead. An empty polled catalog means the remote store was never initialised:
// the defaults are published and used locally even when publishing fails.
func (s *Service) AdoptPolled(ctx context.Context, polled Catalog) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Unpublished() {
		s.logger.Info("republishing local master data changes")
		return s.publishLocked(ctx, opAdoptPolled, s.Catalog())
	}
	if len(polled) == 0 {
		s.logger.Info("remote master data empty, initialising defaults")
		return s.mutateLocked(ctx, opResetDefaults, resetToDefaults)
	}
	s.replaceLocked(ctx, opAdoptPolled, polled)
	return nil
}

// AdoptPublished installs a catalog the caller has already pushed to the remote store.
func (s *Service) AdoptPublished(ctx context.Context, published Catalog) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.replaceLocked(ctx, opAdoptPolled, published)
	s.markUnpublishedLocked(ctx, false)
}

func (s *Service) replaceLocked(ctx context.Context, operation string, catalog Catalog) {
	s.mu.Lock()
	s.catalog = catalog.Clone()
	snapshot := s.catalog.Clone()
	s.mu.Unlock()

	if err := s.saveMirror(ctx, snapshot); err != nil {
		s.logError(operation, "mirror_failed", err)
	}
}

func (s *Service) mutate(ctx context.Context, operation string, apply func(Catalog) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.mutateLocked(ctx, operation, apply)
}

func (s *Service) mutateLocked(ctx context.Context, operation string, apply func(Catalog) error) error {
	s.mu.Lock()
	working := s.catalog.Clone()
	if err := apply(working); err != nil {
		s.mu.Unlock()
		return newServiceError(operation, reasonFor(err), err)
	}
	s.catalog = working
	snapshot := working.Clone()
	s.mu.Unlock()

	if err := s.saveMirror(ctx, snapshot); err != nil {
		s.logError(operation, "mirror_failed", err)
	}
	return s.publishLocked(ctx, operation, snapshot)
}

// publishLocked pushes snapshot and records whether the remote store now holds it.
func (s *Service) publishLocked(ctx context.Context, operation string, snapshot Catalog) error {
	if s.publisher == nil {
		return nil
	}
	err := s.publisher.UpdateMaster(ctx, snapshot)
	switch {
	case err == nil:
		s.markUnpublishedLocked(ctx, false)
		return nil
	case errors.Is(err, ErrPublishDeferred):
		s.logger.Debug("master data kept local", zap.String("operation", operation))
		s.markUnpublishedLocked(ctx, true)
		return nil
	default:
		s.logError(operation, "publish_failed", err)
		s.markUnpublishedLocked(ctx, true)
		return newServiceError(operation, "publish_failed", fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}
}

func (s *Service) markUnpublishedLocked(ctx context.Context, unpublished bool) {
	s.mu.Lock()
	changed := s.unpublished != unpublished
	s.unpublished = unpublished
	s.mu.Unlock()

	if !changed || s.mirror == nil {
		return
	}
	if err := s.mirror.SetCatalogUnpublished(ctx, unpublished); err != nil {
		s.logError("masterdata.mark_unpublished", "mirror_failed", err)
	}
}

func (s *Service) saveMirror(ctx context.Context, snapshot Catalog) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.SaveCatalog(ctx, snapshot)
}

func (s *Service) logError(operation, reason string, err error) {
	s.logger.Error("master data error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrUnknownUnit):
		return "unknown_unit"
	case errors.Is(err, ErrUnknownFeeder):
		return "unknown_feeder"
	case errors.Is(err, ErrNoNames):
		return "no_names"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "invalid"
	}
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
