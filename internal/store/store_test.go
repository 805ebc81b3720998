package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "patrol.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := New(Config{Database: db, Clock: func() time.Time { return time.Unix(1700000000, 0) }})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store
}

func TestNewRequiresDatabase(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without database")
	}
}

func TestReportsRoundTripThroughCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadReports(ctx)
	if err != nil {
		t.Fatalf("load from empty cache failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	photo := "https://drive.example.com/a"
	collection := []reports.Report{{
		ID:        "r1",
		Timestamp: time.Date(2025, time.May, 2, 3, 4, 5, 0, time.UTC),
		Month:     "Mei",
		Unit:      "ULP Baso",
		Officer1:  "Qori Sandi",
		Officer2:  "N/A",
	}}
	collection[0].Photos.After[2] = &photo

	if err := store.SaveReports(ctx, collection); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	collection[0].Keypoint = "overwritten"
	if err := store.SaveReports(ctx, collection); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := store.LoadReports(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if diff := cmp.Diff(collection, loaded); diff != "" {
		t.Fatalf("unexpected cached reports (-want +got):\n%s", diff)
	}
}

func TestCatalogAndOfflineFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.LoadCatalog(ctx); err != nil || found {
		t.Fatalf("expected no cached catalog, got found=%v err=%v", found, err)
	}
	catalog := masterdata.DefaultCatalog()
	if err := store.SaveCatalog(ctx, catalog); err != nil {
		t.Fatalf("save catalog failed: %v", err)
	}
	loaded, found, err := store.LoadCatalog(ctx)
	if err != nil || !found {
		t.Fatalf("expected cached catalog, got found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(catalog, loaded); diff != "" {
		t.Fatalf("unexpected catalog (-want +got):\n%s", diff)
	}

	if enabled, err := store.Offline(ctx); err != nil || enabled {
		t.Fatalf("expected offline to default to false, got %v %v", enabled, err)
	}
	if err := store.SetOffline(ctx, true); err != nil {
		t.Fatalf("set offline failed: %v", err)
	}
	if enabled, err := store.Offline(ctx); err != nil || !enabled {
		t.Fatalf("expected offline flag to persist, got %v %v", enabled, err)
	}

	if unpublished, err := store.CatalogUnpublished(ctx); err != nil || unpublished {
		t.Fatalf("expected publish marker to default to false, got %v %v", unpublished, err)
	}
	if err := store.SetCatalogUnpublished(ctx, true); err != nil {
		t.Fatalf("set publish marker failed: %v", err)
	}
	if unpublished, err := store.CatalogUnpublished(ctx); err != nil || !unpublished {
		t.Fatalf("expected publish marker to persist, got %v %v", unpublished, err)
	}
}

func TestApplyMigrationsDropsEmptyEntries(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "migration.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Create(&Entry{Namespace: "reports", Key: "collection", Value: []byte("null"), UpdatedAtSeconds: 1}).Error; err != nil {
		t.Fatalf("failed to insert entry: %v", err)
	}
	if err := db.Where("name = ?", migrationDropEmptyEntries).Delete(&migrationRecord{}).Error; err != nil {
		t.Fatalf("failed to reset migration record: %v", err)
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	var count int64
	if err := db.Model(&Entry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty entry to be removed, got %d rows", count)
	}
	var record migrationRecord
	if err := db.Where("name = ?", migrationDropEmptyEntries).Take(&record).Error; err != nil {
		t.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		t.Fatalf("expected migration timestamp to be set")
	}
}
