package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ph-top5-bot/internal/model"
)

// DailyState is the per-calendar-date record of the last published ranking.
type DailyState struct {
	Date             string       `json:"date"` // YYYY-MM-DD in the source timezone
	DiscordMessageID string       `json:"discordMessageId"`
	LastItems        []model.Post `json:"lastItems"`
	LastUpdated      time.Time    `json:"lastUpdated"`
	TotalUpdates     int          `json:"totalUpdates"`
}

// Store persists the date-keyed daily state map.
type Store interface {
	// Load returns the persisted map, or an empty map when nothing has been
	// saved yet.
	Load(ctx context.Context) (map[string]DailyState, error)
	// Save fully overwrites the persisted map. A reader must never observe a
	// partially written result.
	Save(ctx context.Context, states map[string]DailyState) error
}

// FileStore keeps the state map as a single JSON file, written via a temp
// file and rename so readers never see a torn write.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (map[string]DailyState, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]DailyState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	states := map[string]DailyState{}
	if err := json.Unmarshal(b, &states); err != nil {
		return nil, fmt.Errorf("state: parse %s: %w", s.path, err)
	}
	return states, nil
}

func (s *FileStore) Save(ctx context.Context, states map[string]DailyState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir %s: %w", dir, err)
	}
	b, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	return nil
}
