// Package repo – CalculationConfig repository.
//
// Config rows are immutable (method, parameters) values deduplicated by a
// unique index. Parameter-free methods are stored with an empty-string
// parameters column rather than NULL, because SQLite treats NULLs as distinct
// under unique indexes and the index would not dedup them.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"
)

// GetOrCreateConfig returns the config row for (method, parameters),
// creating it when absent. A nil parameters pointer means a parameter-free
// method and maps to the empty-string column value. Losing a
// concurrent-insert race resolves to the winner's row.
func GetOrCreateConfig(ctx context.Context, db *gorm.DB, method string, parameters *string) (*domain.CalculationConfig, error) {
	params := ""
	if parameters != nil {
		params = *parameters
	}

	find := func() (*domain.CalculationConfig, error) {
		var c domain.CalculationConfig
		err := db.WithContext(ctx).
			Where("method = ? AND parameters = ?", method, params).
			First(&c).Error
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	if c, err := find(); err == nil {
		return c, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := &domain.CalculationConfig{
		ID:         uuid.NewString(),
		Method:     method,
		Parameters: params,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsUniqueViolation(err) {
			return find()
		}
		return nil, err
	}
	return c, nil
}
