package blacklist

import (
	"context"
	"path/filepath"
	"testing"

	"subscout/internal/language"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddAndContains(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "blacklist.db"))
	en := language.MustParse("en")
	fr := language.MustParse("fr")

	if store.Contains(1, en, "opensubtitles", "abc") {
		t.Fatal("empty store reported membership")
	}
	if err := store.Add(context.Background(), 1, en, "opensubtitles", "abc"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !store.Contains(1, en, "opensubtitles", "abc") {
		t.Fatal("added entry not found")
	}
	// Different language, video, or id must not collide.
	if store.Contains(1, fr, "opensubtitles", "abc") ||
		store.Contains(2, en, "opensubtitles", "abc") ||
		store.Contains(1, en, "opensubtitles", "xyz") {
		t.Fatal("membership leaked across key fields")
	}
	// Duplicate add is a no-op.
	if err := store.Add(context.Background(), 1, en, "opensubtitles", "abc"); err != nil {
		t.Fatalf("duplicate Add: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestForcedLanguageIsDistinctKey(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "blacklist.db"))
	fr := language.MustParse("fr")
	frForced := fr.WithForced(true)
	if err := store.Add(context.Background(), 1, frForced, "podnapisi", "42"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if store.Contains(1, fr, "podnapisi", "42") {
		t.Fatal("forced entry matched non-forced lookup")
	}
	if !store.Contains(1, frForced, "podnapisi", "42") {
		t.Fatal("forced entry lost")
	}
}

func TestSeedSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.db")
	store := openStore(t, path)
	en := language.MustParse("en")
	if err := store.Add(context.Background(), 7, en, "supersubtitles", "pack-3"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, path)
	if !reopened.Contains(7, en, "supersubtitles", "pack-3") {
		t.Fatal("entry not seeded after reopen")
	}
	entries, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].CandidateID != "pack-3" {
		t.Fatalf("List = %+v", entries)
	}
}

func TestClear(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "blacklist.db"))
	en := language.MustParse("en")
	if err := store.Add(context.Background(), 1, en, "p", "c"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Len() != 0 || store.Contains(1, en, "p", "c") {
		t.Fatal("Clear left entries behind")
	}
}
