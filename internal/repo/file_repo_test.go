package repo

import (
	"context"
	"errors"
	"testing"
)

func TestCreateFileRecord_DedupByHashAndOwner(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	first, err := CreateFileRecord(ctx, db, "u1", "abc123", "mol.sdf", 42)
	if err != nil {
		t.Fatalf("first CreateFileRecord: %v", err)
	}
	if first.ID == "" || first.UploadedAt.IsZero() {
		t.Fatalf("record fields unset: %+v", first)
	}

	// Same bytes, same owner: the existing record comes back.
	again, err := CreateFileRecord(ctx, db, "u1", "abc123", "renamed.sdf", 42)
	if err != nil {
		t.Fatalf("duplicate CreateFileRecord: %v", err)
	}
	if again.ID != first.ID || again.Name != "mol.sdf" {
		t.Fatalf("expected original record, got %+v", again)
	}

	// Same bytes, different owner: a separate record.
	other, err := CreateFileRecord(ctx, db, "u2", "abc123", "mol.sdf", 42)
	if err != nil {
		t.Fatalf("other-owner CreateFileRecord: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("owners must not share file records")
	}
}

func TestGetFileByHash_NotFound(t *testing.T) {
	db := newRepoDB(t)
	_, err := GetFileByHash(context.Background(), db, "u1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilesPage_SearchSortAndWhitelist(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	seed := []struct {
		hash, name string
		size       int64
	}{
		{"h1", "alanine.sdf", 100},
		{"h2", "benzene.mol2", 300},
		{"h3", "alanine_dimer.pdb", 200},
	}
	for _, s := range seed {
		if _, err := CreateFileRecord(ctx, db, "u1", s.hash, s.name, s.size); err != nil {
			t.Fatalf("seed %s: %v", s.name, err)
		}
	}

	// Search narrows by name substring.
	n, err := CountFiles(ctx, db, "u1", "alanine")
	if err != nil || n != 2 {
		t.Fatalf("CountFiles(search) = (%d, %v), want 2", n, err)
	}

	// Sort by size ascending.
	page, err := ListFilesPage(ctx, db, "u1", "", "size", "asc", 0, 10)
	if err != nil {
		t.Fatalf("ListFilesPage: %v", err)
	}
	if len(page) != 3 || page[0].Name != "alanine.sdf" || page[2].Name != "benzene.mol2" {
		t.Fatalf("size asc order wrong: %+v", page)
	}

	// Unknown sort column falls back without error.
	if _, err := ListFilesPage(ctx, db, "u1", "", "uploaded_at; DROP TABLE files", "asc", 0, 10); err != nil {
		t.Fatalf("whitelist fallback errored: %v", err)
	}

	// Offset/limit paginate.
	page, err = ListFilesPage(ctx, db, "u1", "", "size", "asc", 1, 1)
	if err != nil || len(page) != 1 || page[0].Name != "alanine_dimer.pdb" {
		t.Fatalf("pagination wrong: %+v err=%v", page, err)
	}
}

func TestDeleteFileRecord_SoftDeleteAndNoop(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreateFileRecord(ctx, db, "u1", "abc123", "mol.sdf", 42); err != nil {
		t.Fatalf("CreateFileRecord: %v", err)
	}
	if err := DeleteFileRecord(ctx, db, "u1", "abc123"); err != nil {
		t.Fatalf("DeleteFileRecord: %v", err)
	}
	if _, err := GetFileByHash(ctx, db, "u1", "abc123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing record is a no-op.
	if err := DeleteFileRecord(ctx, db, "u1", "never-existed"); err != nil {
		t.Fatalf("delete absent record: %v", err)
	}
}

func TestSumFileSizes(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	// Empty owner sums to zero.
	total, err := SumFileSizes(ctx, db, "u1")
	if err != nil || total != 0 {
		t.Fatalf("empty SumFileSizes = (%d, %v)", total, err)
	}

	if _, err := CreateFileRecord(ctx, db, "u1", "h1", "a.sdf", 100); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if _, err := CreateFileRecord(ctx, db, "u1", "h2", "b.sdf", 250); err != nil {
		t.Fatalf("seed b: %v", err)
	}
	if _, err := CreateFileRecord(ctx, db, "u2", "h3", "c.sdf", 999); err != nil {
		t.Fatalf("seed c: %v", err)
	}

	total, err = SumFileSizes(ctx, db, "u1")
	if err != nil || total != 350 {
		t.Fatalf("SumFileSizes = (%d, %v), want 350", total, err)
	}
}
