// Package repo – CalculationSet repository.
//
// A calculation set is the unit callers see: one computation id grouping the
// settings, configs, input-file stats, and cached calculations of a batch.
// Sets exclusively own their calculations (cascade delete); configs, settings
// and stats are shared rows attached through join tables.
//
// All reads return fully-materialized object graphs via explicit preloads;
// no lazy loading happens past a function's return.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// GetSet fetches a calculation set with settings, configs, stats (including
// atom-type histograms), and owned calculations preloaded. Returns
// (nil, nil) when the id does not exist, mirroring a cache-miss style lookup.
func GetSet(ctx context.Context, db *gorm.DB, id string) (*domain.CalculationSet, error) {
	var set domain.CalculationSet
	err := db.WithContext(ctx).
		Preload("Settings").
		Preload("Configs").
		Preload("Stats").
		Preload("Stats.AtomTypeCounts").
		Preload("Calculations").
		Preload("Calculations.Config").
		First(&set, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// CreateSet inserts a new, empty calculation set bound to a settings row.
// ErrConflict means the id already exists (another request created it first).
func CreateSet(ctx context.Context, db *gorm.DB, id, userID, settingsID string) (*domain.CalculationSet, error) {
	set := &domain.CalculationSet{
		ID:         id,
		UserID:     userID,
		SettingsID: settingsID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(set).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return set, nil
}

// AddSetConfig attaches a config to a set's manifest. Attaching an already
// attached config is a no-op (the join table carries a composite primary
// key).
func AddSetConfig(ctx context.Context, db *gorm.DB, setID, configID string) error {
	err := db.WithContext(ctx).Exec(
		"INSERT INTO calculation_set_configs (calculation_set_id, calculation_config_id) VALUES (?, ?)",
		setID, configID).Error
	if err != nil && !IsUniqueViolation(err) {
		return err
	}
	return nil
}

// AddSetStats associates a file's molecule stats with a set. Idempotent like
// AddSetConfig.
func AddSetStats(ctx context.Context, db *gorm.DB, setID, fileHash string) error {
	err := db.WithContext(ctx).Exec(
		"INSERT INTO calculation_set_stats (calculation_set_id, molecule_set_stats_file_hash) VALUES (?, ?)",
		setID, fileHash).Error
	if err != nil && !IsUniqueViolation(err) {
		return err
	}
	return nil
}

// DeleteSet removes a calculation set, its owned calculations, and its join
// rows. Deleting a non-existent id is a no-op, not an error. Shared configs,
// settings, and stats rows are left in place for other sets.
func DeleteSet(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("set_id = ?", id).Delete(&domain.Calculation{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM calculation_set_configs WHERE calculation_set_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM calculation_set_stats WHERE calculation_set_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.CalculationSet{}, "id = ?", id).Error
	})
}

// CountSets returns the number of non-empty calculation sets owned by userID.
func CountSets(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CalculationSet{}).
		Where("user_id = ?", userID).
		Where("EXISTS (SELECT 1 FROM calculations c WHERE c.set_id = calculation_sets.id)").
		Count(&total).Error
	return total, err
}

// ListSetsPage returns a page of the user's non-empty calculation sets,
// newest first, with the same preloads as GetSet.
func ListSetsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CalculationSet, error) {
	var out []domain.CalculationSet
	err := db.WithContext(ctx).
		Preload("Settings").
		Preload("Configs").
		Preload("Stats").
		Preload("Stats.AtomTypeCounts").
		Preload("Calculations").
		Preload("Calculations.Config").
		Where("user_id = ?", userID).
		Where("EXISTS (SELECT 1 FROM calculations c WHERE c.set_id = calculation_sets.id)").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetsStats returns aggregate metadata for a user's calculation sets: the
// total number of rows and the greatest CreatedAt among them. Used for ETag
// generation on list endpoints. When the user has no sets, count is 0 and
// maxCreatedAt is nil.
func SetsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.CalculationSet{}).Where("user_id = ?", userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
