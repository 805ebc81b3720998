package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	namespaceReports  = "reports"
	namespaceCatalog  = "master"
	namespaceSettings = "settings"

	keyCollection  = "collection"
	keyOffline     = "offline_mode"
	keyUnpublished = "master_unpublished"
)

var errMissingDatabase = errors.New("store: database handle is required")

// Entry is one cached value, addressed by namespace and key.
type Entry struct {
	Namespace        string         `gorm:"column:namespace;primaryKey;size:64;not null"`
	Key              string         `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value            datatypes.JSON `gorm:"column:value;type:json;not null"`
	UpdatedAtSeconds int64          `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "patrol_cache_entries"
}

// Config wires a Store.
type Config struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store keeps the local copy of reports, master data and the offline flag.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// New constructs a Store over an opened database.
func New(cfg Config) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// SaveReports replaces the cached report collection.
func (s *Store) SaveReports(ctx context.Context, collection []reports.Report) error {
	if collection == nil {
		collection = []reports.Report{}
	}
	return s.put(ctx, namespaceReports, keyCollection, collection)
}

// LoadReports returns the cached report collection; an empty cache yields an empty slice.
func (s *Store) LoadReports(ctx context.Context) ([]reports.Report, error) {
	var collection []reports.Report
	if _, err := s.get(ctx, namespaceReports, keyCollection, &collection); err != nil {
		return nil, err
	}
	if collection == nil {
		collection = []reports.Report{}
	}
	return collection, nil
}

// SaveCatalog replaces the cached master data.
func (s *Store) SaveCatalog(ctx context.Context, catalog masterdata.Catalog) error {
	return s.put(ctx, namespaceCatalog, keyCollection, catalog)
}

// LoadCatalog returns the cached master data and whether one was stored.
func (s *Store) LoadCatalog(ctx context.Context) (masterdata.Catalog, bool, error) {
	var catalog masterdata.Catalog
	found, err := s.get(ctx, namespaceCatalog, keyCollection, &catalog)
	if err != nil {
		return nil, false, err
	}
	return catalog, found, nil
}

// SetCatalogUnpublished records whether the cached master data still has to be published.
func (s *Store) SetCatalogUnpublished(ctx context.Context, unpublished bool) error {
	return s.put(ctx, namespaceSettings, keyUnpublished, unpublished)
}

// CatalogUnpublished reads the marker written by SetCatalogUnpublished; it defaults to false.
func (s *Store) CatalogUnpublished(ctx context.Context) (bool, error) {
	var unpublished bool
	if _, err := s.get(ctx, namespaceSettings, keyUnpublished, &unpublished); err != nil {
		return false, err
	}
	return unpublished, nil
}

// SetOffline persists the offline-mode switch.
func (s *Store) SetOffline(ctx context.Context, enabled bool) error {
	return s.put(ctx, namespaceSettings, keyOffline, enabled)
}

// Offline reads the offline-mode switch; it defaults to false.
func (s *Store) Offline(ctx context.Context) (bool, error) {
	var enabled bool
	if _, err := s.get(ctx, namespaceSettings, keyOffline, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (s *Store) put(ctx context.Context, namespace, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", namespace, key, err)
	}
	entry := Entry{
		Namespace:        namespace,
		Key:              key,
		Value:            datatypes.JSON(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_s"}),
		}).
		Create(&entry).Error
	if err != nil {
		s.logger.Error("cache write failed", zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("store: write %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: read %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, fmt.Errorf("store: decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}
