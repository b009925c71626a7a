package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage/db"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

// testStore 在临时 SQLite 库上装配持久化层，约束行为与生产一致.
func testStore(t *testing.T) *fingerprintStore {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "fingerprints.db")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	client := &db.Client{DB: gdb}
	if err := AutoMigrate(client); err != nil {
		t.Fatal(err)
	}

	return &fingerprintStore{client: client}
}

func completedRecord(assetID string) *model.Fingerprint {
	return &model.Fingerprint{
		ID:               model.NewFingerprintID(),
		AssetID:          assetID,
		UserID:           "user-1",
		ObjectKey:        "img/sample.png",
		FingerprintType:  types.AssetTypeImage,
		ProcessingStatus: types.StatusCompleted,
	}
}

func TestStore_DuplicateLiveInsert(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.InsertFingerprint(ctx, completedRecord("asset-1")); err != nil {
		t.Fatal(err)
	}

	err := store.InsertFingerprint(ctx, completedRecord("asset-1"))
	if !errors.Is(err, ErrDuplicateAsset) {
		t.Fatalf("second live insert error = %v, want ErrDuplicateAsset", err)
	}
}

func TestStore_DeleteThenReinsert(t *testing.T) {
	// 重建路径: 软删除后唯一索引必须放行同一 asset_id 的新记录.
	store := testStore(t)
	ctx := context.Background()

	if err := store.InsertFingerprint(ctx, completedRecord("asset-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteByAssetID(ctx, "asset-1"); err != nil {
		t.Fatal(err)
	}

	fresh := completedRecord("asset-1")
	if err := store.InsertFingerprint(ctx, fresh); err != nil {
		t.Fatalf("reinsert after soft delete failed: %v", err)
	}

	got, err := store.GetByAssetID(ctx, "asset-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != fresh.ID {
		t.Errorf("live record id = %s, want rebuilt %s", got.ID, fresh.ID)
	}

	// 旧行保留为历史，只是不再占用存活槽位.
	var total int64
	if err := store.client.GetDB().Unscoped().
		Model(&model.Fingerprint{}).
		Where("asset_id = ?", "asset-1").
		Count(&total).Error; err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("rows for asset = %d, want 2 (deleted + live)", total)
	}
}

func TestStore_GetAndDeleteMissing(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.GetByAssetID(ctx, "ghost"); !errors.Is(err, ErrFingerprintNotFound) {
		t.Errorf("get missing error = %v, want ErrFingerprintNotFound", err)
	}
	if err := store.DeleteByAssetID(ctx, "ghost"); !errors.Is(err, ErrFingerprintNotFound) {
		t.Errorf("delete missing error = %v, want ErrFingerprintNotFound", err)
	}
}

func TestStore_DeletedRecordInvisibleToQueries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.InsertFingerprint(ctx, completedRecord("asset-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteByAssetID(ctx, "asset-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetByAssetID(ctx, "asset-1"); !errors.Is(err, ErrFingerprintNotFound) {
		t.Errorf("get after delete error = %v, want ErrFingerprintNotFound", err)
	}

	records, err := store.ListByUser(ctx, "user-1", 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("list returned %d deleted records, want 0", len(records))
	}
}
