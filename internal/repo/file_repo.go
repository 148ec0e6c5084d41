// Package repo – FileRecord repository.
//
// File records carry upload metadata (name, owner, size, time) for quota
// accounting and listing. Identity is (hash, owner): re-uploading identical
// bytes returns the existing record instead of inserting a duplicate.
//
// Functions:
//
//   - CreateFileRecord(ctx, db, userID, hash, name, size) -> *domain.FileRecord, error
//     Inserts a record; on duplicate (hash, owner) returns the existing one.
//
//   - GetFileByHash(ctx, db, userID, hash) -> *domain.FileRecord, error
//     Fetches the owner's record for a content hash, or ErrNotFound.
//
//   - CountFiles / ListFilesPage: paginated, searchable, sortable listing.
//
//   - DeleteFileRecord(ctx, db, userID, hash) -> error
//     Soft-deletes the record; missing rows are a no-op.
//
//   - SumFileSizes(ctx, db, userID) -> int64, error
//     Total bytes recorded for the owner (quota accounting).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// fileOrderColumns whitelists sortable columns for ListFilesPage.
var fileOrderColumns = map[string]string{
	"name":        "name",
	"size":        "size",
	"uploaded_at": "uploaded_at",
}

// CreateFileRecord inserts an upload record owned by userID. When a record
// with the same (hash, owner) already exists, the existing record is
// returned unchanged.
func CreateFileRecord(ctx context.Context, db *gorm.DB, userID, hash, name string, size int64) (*domain.FileRecord, error) {
	rec := &domain.FileRecord{
		ID:         uuid.NewString(),
		Hash:       hash,
		Name:       name,
		UserID:     userID,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return GetFileByHash(ctx, db, userID, hash)
		}
		return nil, err
	}
	return rec, nil
}

// GetFileByHash fetches the owner's record for a content hash, or
// ErrNotFound when the owner never uploaded those bytes.
func GetFileByHash(ctx context.Context, db *gorm.DB, userID, hash string) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND hash = ?", userID, hash).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountFiles returns the number of records owned by userID matching the
// optional search term (substring of the display name).
func CountFiles(ctx context.Context, db *gorm.DB, userID, search string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.FileRecord{}).Where("user_id = ?", userID)
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListFilesPage returns a page of the owner's file records. orderBy is one
// of name|size|uploaded_at (anything else falls back to uploaded_at), order
// is asc|desc.
func ListFilesPage(ctx context.Context, db *gorm.DB, userID, search, orderBy, order string, offset, limit int) ([]domain.FileRecord, error) {
	col, ok := fileOrderColumns[orderBy]
	if !ok {
		col = "uploaded_at"
	}
	if order != "asc" {
		order = "desc"
	}

	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}

	var out []domain.FileRecord
	err := q.Order(col + " " + order).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteFileRecord soft-deletes the owner's record for a hash. Deleting an
// absent record is a no-op.
func DeleteFileRecord(ctx context.Context, db *gorm.DB, userID, hash string) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND hash = ?", userID, hash).
		Delete(&domain.FileRecord{}).Error
}

// SumFileSizes returns the total stored bytes recorded for the owner.
func SumFileSizes(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.FileRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}
