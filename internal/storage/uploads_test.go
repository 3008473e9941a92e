// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"path/filepath"
	"testing"

	"github.com/zhangdahai112/LocalManus/internal/manus"
)

func newTestStore(t *testing.T) *UploadStore {
	t.Helper()
	store, err := OpenUploadStore(filepath.Join(t.TempDir(), "uploads.db"))
	if err != nil {
		t.Fatalf("OpenUploadStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	files := []manus.UploadedFile{
		{Filename: "1_a.pdf", OriginalFilename: "a.pdf", FilePath: "/srv/up/1_a.pdf"},
		{Filename: "2_b.txt", OriginalFilename: "b.txt", FilePath: "/srv/up/2_b.txt"},
	}
	for _, f := range files {
		if err := store.Record(f); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first.
	if records[0].File.OriginalFilename != "b.txt" {
		t.Errorf("expected b.txt first, got %q", records[0].File.OriginalFilename)
	}
}

func TestRecordSamePathRefreshes(t *testing.T) {
	store := newTestStore(t)

	file := manus.UploadedFile{Filename: "1_a.pdf", OriginalFilename: "a.pdf", FilePath: "/srv/up/1_a.pdf"}
	if err := store.Record(file); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(file); err != nil {
		t.Fatal(err)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("re-recording the same path should not duplicate, got %d rows", len(records))
	}
}

func TestFindByName(t *testing.T) {
	store := newTestStore(t)

	if err := store.Record(manus.UploadedFile{
		Filename: "7_report.pdf", OriginalFilename: "report.pdf", FilePath: "/srv/up/7_report.pdf",
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := store.FindByName("report.pdf")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if rec == nil || rec.File.FilePath != "/srv/up/7_report.pdf" {
		t.Errorf("unexpected record: %+v", rec)
	}

	missing, err := store.FindByName("nope.txt")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown name, got %+v", missing)
	}
}

func TestRecentEmptyCatalog(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Recent(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty, got %d", len(records))
	}
}
