// Package repo – AdvancedSettings repository.
//
// AdvancedSettings rows are immutable values deduplicated by a unique index
// over (read_hetatm, ignore_water, permissive_types). Get-or-create is the
// only write path; rows are never updated or deleted individually.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// GetOrCreateSettings returns the settings row with the given values,
// creating it when absent. A concurrent insert losing the uniqueness race is
// resolved by re-reading the winner's row, so callers never observe a
// conflict.
func GetOrCreateSettings(ctx context.Context, db *gorm.DB, readHetatm, ignoreWater, permissiveTypes bool) (*domain.AdvancedSettings, error) {
	find := func() (*domain.AdvancedSettings, error) {
		var s domain.AdvancedSettings
		err := db.WithContext(ctx).
			Where("read_hetatm = ? AND ignore_water = ? AND permissive_types = ?",
				readHetatm, ignoreWater, permissiveTypes).
			First(&s).Error
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	if s, err := find(); err == nil {
		return s, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	s := &domain.AdvancedSettings{
		ID:              uuid.NewString(),
		ReadHetatm:      readHetatm,
		IgnoreWater:     ignoreWater,
		PermissiveTypes: permissiveTypes,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsUniqueViolation(err) {
			return find()
		}
		return nil, err
	}
	return s, nil
}
