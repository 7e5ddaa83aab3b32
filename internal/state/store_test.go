package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ph-top5-bot/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewFileStore(path)
	ctx := context.Background()

	states := map[string]DailyState{
		"2025-01-15": {
			Date:             "2025-01-15",
			DiscordMessageID: "msg-1",
			LastItems:        []model.Post{{ID: "1", Name: "Thing", Rank: 1, Votes: 150}},
			LastUpdated:      time.Now().Truncate(time.Second),
			TotalUpdates:     2,
		},
	}
	if err := store.Save(ctx, states); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st, ok := got["2025-01-15"]
	if !ok {
		t.Fatal("entry missing after round trip")
	}
	if st.DiscordMessageID != "msg-1" || st.TotalUpdates != 2 || len(st.LastItems) != 1 {
		t.Errorf("unexpected entry: %+v", st)
	}
	if st.LastItems[0].Votes != 150 {
		t.Errorf("votes = %d, want 150", st.LastItems[0].Votes)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load of missing file should not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %d entries", len(got))
	}
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("]["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected parse error for corrupt file")
	}
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	store := NewFileStore(path)
	if err := store.Save(context.Background(), map[string]DailyState{}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
}

func TestFileStoreSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")
	if err := NewFileStore(path).Save(context.Background(), map[string]DailyState{}); err != nil {
		t.Fatalf("Save should create parent dirs, got %v", err)
	}
}
