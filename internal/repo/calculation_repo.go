// Package repo – Calculation repository.
//
// Calculations are the atomic cached units of the dedup layer. The cache key
// is the composite (file_hash, method, parameters, read_hetatm, ignore_water,
// permissive_types), enforced by a unique index over (file_hash, config_id,
// settings_id) combined with value-deduplicated config and settings rows.
//
// Functions:
//
//   - GetCalculation(ctx, db, key) -> *domain.Calculation, error
//     Exact composite-key cache lookup across all calculation sets.
//
//   - CreateCalculation(ctx, db, calc) -> error
//     Inserts a freshly computed calculation; ErrConflict when another
//     writer stored the same cache key first.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// CalculationKey identifies a cached calculation. All fields are required;
// Parameters is nil for parameter-free methods (stored as the empty string).
type CalculationKey struct {
	FileHash        string
	Method          string
	Parameters      *string
	ReadHetatm      bool
	IgnoreWater     bool
	PermissiveTypes bool
}

// GetCalculation returns the single calculation matching the composite cache
// key, or ErrNotFound. The lookup is global: a hit may belong to a different
// calculation set than the caller's, which is exactly what makes it a cache.
func GetCalculation(ctx context.Context, db *gorm.DB, key CalculationKey) (*domain.Calculation, error) {
	params := ""
	if key.Parameters != nil {
		params = *key.Parameters
	}

	q := db.WithContext(ctx).
		Joins("JOIN calculation_configs cfg ON cfg.id = calculations.config_id").
		Joins("JOIN advanced_settings st ON st.id = calculations.settings_id").
		Where("calculations.file_hash = ?", key.FileHash).
		Where("cfg.method = ? AND cfg.parameters = ?", key.Method, params).
		Where("st.read_hetatm = ? AND st.ignore_water = ? AND st.permissive_types = ?",
			key.ReadHetatm, key.IgnoreWater, key.PermissiveTypes)

	var c domain.Calculation
	if err := q.First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCalculation inserts a newly computed calculation. ErrConflict means a
// concurrent batch computed the same tuple and won the insert race; callers
// should re-read via GetCalculation and reuse the stored row.
func CreateCalculation(ctx context.Context, db *gorm.DB, calc *domain.Calculation) error {
	if err := db.WithContext(ctx).Create(calc).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetCalculationByID fetches one calculation row by primary key.
func GetCalculationByID(ctx context.Context, db *gorm.DB, id string) (*domain.Calculation, error) {
	var c domain.Calculation
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
