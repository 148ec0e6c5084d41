// Package services – FileService
//
// This file implements FileService, which owns the lifecycle of uploaded
// structure files: validation (extension, size, quota), content-addressed
// storage, metadata records, and the per-hash molecule statistics computed on
// first upload. Guests share one storage area with oldest-first eviction;
// registered users get a fixed quota with no eviction.
package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/chem"
	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/repo"
	"github.com/acctwo/charges-backend/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// supportedExtensions lists the structure-file formats the engine can parse.
var supportedExtensions = map[string]struct{}{
	".sdf":  {},
	".mol2": {},
	".pdb":  {},
	".cif":  {},
}

// QuotaInfo reports an owner's storage consumption.
type QuotaInfo struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// FileService coordinates upload validation, content-addressed storage, and
// file metadata records.
type FileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the content-addressed file storage.
	Store *storage.Store
	// Engine parses uploads for validation and statistics.
	Engine chem.Engine

	// MaxFileBytes caps a single uploaded file; <= 0 disables the check.
	MaxFileBytes int64
	// UserQuotaBytes caps a registered user's file area; <= 0 disables.
	UserQuotaBytes int64
	// GuestQuotaBytes caps the shared guest area; oldest guest files are
	// evicted to make room. <= 0 disables eviction and the check.
	GuestQuotaBytes int64
}

// Upload validates, stores, and records one uploaded file, computing its
// molecule statistics on first sight of the content hash. Re-uploading
// identical bytes returns the existing record without duplicating storage.
func (s *FileService) Upload(ctx context.Context, owner, name string, data []byte) (*domain.FileRecord, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.String("file.name", name),
			attribute.Int("file.size", len(data)),
		),
	)
	defer span.End()

	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, ErrInvalidFileType
	}
	size := int64(len(data))
	if s.MaxFileBytes > 0 && size > s.MaxFileBytes {
		return nil, ErrFileTooLarge
	}

	if err := s.reserveSpace(owner, size); err != nil {
		return nil, err
	}

	stored, err := s.Store.Save(owner, filepath.Base(name), data)
	if err != nil {
		return nil, err
	}

	// Parse up front: a file the engine cannot read is rejected at upload
	// time, not at calculation time, and its stats are cached for later
	// info/suitability requests.
	if sErr := s.ensureStats(ctx, stored); sErr != nil {
		_ = s.Store.Delete(owner, stored.Hash)
		return nil, sErr
	}

	return repo.CreateFileRecord(ctx, s.DB, owner, stored.Hash, stored.Name, stored.Size)
}

// reserveSpace enforces the owner's quota before storing size new bytes.
// Guests get oldest-first eviction from the shared area; users get a hard
// limit.
func (s *FileService) reserveSpace(owner string, size int64) error {
	if owner == "" {
		if s.GuestQuotaBytes <= 0 {
			return nil
		}
		if size > s.GuestQuotaBytes {
			return ErrQuotaExceeded
		}
		return s.Store.FreeGuestSpace(size, s.GuestQuotaBytes)
	}

	if s.UserQuotaBytes <= 0 {
		return nil
	}
	used, err := s.Store.UsedSpace(owner)
	if err != nil {
		return err
	}
	if used+size > s.UserQuotaBytes {
		return ErrQuotaExceeded
	}
	return nil
}

// ensureStats computes and stores molecule statistics for a stored file when
// none exist for its hash yet. A parse failure maps to ErrLoadFailed.
func (s *FileService) ensureStats(ctx context.Context, f storage.StoredFile) error {
	existing, err := repo.GetStats(ctx, s.DB, f.Hash)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	ms, err := s.Engine.Parse(ctx, f.Path, chem.ParseOptions{ReadHetatm: true})
	if err != nil {
		return ErrLoadFailed
	}
	_, err = repo.CreateStats(ctx, s.DB, statsFromMoleculeSet(f.Hash, ms))
	return err
}

// ListPage returns a page of the owner's file records with total count.
// search filters by display-name substring; orderBy is one of
// name|size|uploaded_at and order is asc|desc.
func (s *FileService) ListPage(ctx context.Context, owner, search, orderBy, order string, page, pageSize int) ([]domain.FileRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountFiles(ctx, s.DB, owner, search)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.FileRecord{}, 0, nil
	}
	items, err := repo.ListFilesPage(ctx, s.DB, owner, search, orderBy, order, offset, pageSize)
	return items, total, err
}

// Resolve locates the owner's stored file for a hash, for download handlers.
func (s *FileService) Resolve(ctx context.Context, owner, hash string) (storage.StoredFile, error) {
	f, err := s.Store.Resolve(owner, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.StoredFile{}, ErrFileNotFound
	}
	return f, err
}

// Delete removes the owner's stored file and its metadata record. Deleting a
// hash that is not stored fails with ErrFileNotFound; the shared stats row is
// left in place because other calculation sets may reference it.
func (s *FileService) Delete(ctx context.Context, owner, hash string) error {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.String("file.hash", hash),
		),
	)
	defer span.End()

	if _, err := s.Store.Resolve(owner, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if err := s.Store.Delete(owner, hash); err != nil {
		return err
	}
	return repo.DeleteFileRecord(ctx, s.DB, owner, hash)
}

// Quota reports the owner's storage consumption against their quota.
func (s *FileService) Quota(ctx context.Context, owner string) (QuotaInfo, error) {
	used, err := s.Store.UsedSpace(owner)
	if err != nil {
		return QuotaInfo{}, err
	}
	limit := s.UserQuotaBytes
	if owner == "" {
		limit = s.GuestQuotaBytes
	}
	return QuotaInfo{UsedBytes: used, QuotaBytes: limit}, nil
}
