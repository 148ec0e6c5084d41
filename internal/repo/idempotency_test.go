package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdempotency_CreateThenGet(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "key-1", "set-1", 1, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.ComputationID != "set-1" {
		t.Fatalf("record fields unset: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ComputationID != "set-1" || got.Status != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestIdempotency_ExpiredIsNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "set-1", 1, time.Millisecond); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	_, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().Add(time.Second))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired key, got %v", err)
	}
}

func TestIdempotency_DuplicateKey(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "set-1", 1, time.Hour); err != nil {
		t.Fatalf("first CreateIdempotency: %v", err)
	}
	_, err := CreateIdempotency(ctx, db, "u1", "key-1", "set-2", 1, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key under another user is a separate scope.
	if _, err := CreateIdempotency(ctx, db, "u2", "key-1", "set-3", 1, time.Hour); err != nil {
		t.Fatalf("other-user CreateIdempotency: %v", err)
	}
}

func TestIdempotency_EmptyKeyIsNotFound(t *testing.T) {
	db := newRepoDB(t)
	_, err := GetIdempotency(context.Background(), db, "u1", "  ", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}
}
