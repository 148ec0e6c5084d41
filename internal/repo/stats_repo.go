// Package repo – MoleculeSetStats repository.
//
// Stats are computed once per distinct file hash and never mutated. The
// atom-type histogram lives in a child table keyed by the same hash.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// GetStats returns the cached molecule statistics for a file hash with the
// atom-type histogram preloaded, or (nil, nil) when none were stored yet.
func GetStats(ctx context.Context, db *gorm.DB, fileHash string) (*domain.MoleculeSetStats, error) {
	var s domain.MoleculeSetStats
	err := db.WithContext(ctx).
		Preload("AtomTypeCounts").
		First(&s, "file_hash = ?", fileHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStats stores molecule statistics for a file hash, including the
// histogram rows. Losing a concurrent-insert race resolves to the stored
// row, preserving the compute-once lifecycle.
func CreateStats(ctx context.Context, db *gorm.DB, stats *domain.MoleculeSetStats) (*domain.MoleculeSetStats, error) {
	for i := range stats.AtomTypeCounts {
		if stats.AtomTypeCounts[i].ID == "" {
			stats.AtomTypeCounts[i].ID = uuid.NewString()
		}
		stats.AtomTypeCounts[i].FileHash = stats.FileHash
	}

	err := db.WithContext(ctx).Create(stats).Error
	if err == nil {
		return stats, nil
	}
	if IsUniqueViolation(err) {
		return GetStats(ctx, db, stats.FileHash)
	}
	return nil, err
}
