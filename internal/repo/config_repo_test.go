package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/acctwo/charges-backend/internal/domain"
)

func strptr(s string) *string { return &s }

func TestGetOrCreateConfig_DedupIncludingNilParameters(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	bare, err := GetOrCreateConfig(ctx, db, "eem", nil)
	if err != nil {
		t.Fatalf("create bare config: %v", err)
	}
	if bare.Parameters != "" {
		t.Fatalf("expected empty parameters, got %q", bare.Parameters)
	}

	// nil parameters must dedup against the stored empty string, not against
	// a named set.
	again, err := GetOrCreateConfig(ctx, db, "eem", nil)
	if err != nil {
		t.Fatalf("re-get bare config: %v", err)
	}
	if again.ID != bare.ID {
		t.Fatalf("expected dedup of parameter-free (eem), got %q vs %q", again.ID, bare.ID)
	}

	named, err := GetOrCreateConfig(ctx, db, "eem", strptr("EEM_00_NEEMP_ccd2016_npa"))
	if err != nil {
		t.Fatalf("create named config: %v", err)
	}
	if named.ID == bare.ID {
		t.Fatal("parameter-free (eem) and (eem, params) must be distinct rows")
	}

	named2, err := GetOrCreateConfig(ctx, db, "eem", strptr("EEM_00_NEEMP_ccd2016_npa"))
	if err != nil {
		t.Fatalf("re-get named config: %v", err)
	}
	if named2.ID != named.ID {
		t.Fatalf("expected dedup of named config, got %q vs %q", named2.ID, named.ID)
	}

	// Different method, same parameter name, still distinct.
	other, err := GetOrCreateConfig(ctx, db, "qeq", strptr("EEM_00_NEEMP_ccd2016_npa"))
	if err != nil {
		t.Fatalf("create other-method config: %v", err)
	}
	if other.ID == named.ID {
		t.Fatal("method is part of the config identity")
	}
}

// Parameter-free configs are stored with an empty-string parameters column so
// the unique index rejects duplicates at the store level. With NULL instead,
// SQLite would treat every row as distinct and the calculation cache key,
// which is keyed on config id, could be split across duplicate config rows.
func TestParameterFreeConfig_StoreLevelUniqueness(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	first := &domain.CalculationConfig{ID: uuid.NewString(), Method: "eem"}
	if err := db.WithContext(ctx).Create(first).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := &domain.CalculationConfig{ID: uuid.NewString(), Method: "eem"}
	if err := db.WithContext(ctx).Create(dup).Error; !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate parameter-free config, got %v", err)
	}

	// A writer losing this race inside GetOrCreateConfig resolves to the
	// winner's row.
	got, err := GetOrCreateConfig(ctx, db, "eem", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConfig: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected winner row %q, got %q", first.ID, got.ID)
	}
}
