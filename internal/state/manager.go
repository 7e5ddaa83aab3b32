package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ph-top5-bot/internal/model"
)

// Stats summarizes the cache contents.
type Stats struct {
	TotalDates   int `json:"totalDates"`
	TotalUpdates int `json:"totalUpdates"`
}

// Manager is the change-detection cache: it holds the last published ranking
// per date, classifies fresh fetches against it, and persists synchronously
// through the configured Store on every update.
//
// The map is only mutated from the scheduler's poll path, but reads come in
// from the monitoring endpoints too, so a RWMutex guards it.
type Manager struct {
	store  Store
	maxAge time.Duration

	mu    sync.RWMutex
	cache map[string]DailyState
}

func NewManager(store Store, maxAge time.Duration) *Manager {
	return &Manager{
		store:  store,
		maxAge: maxAge,
		cache:  map[string]DailyState{},
	}
}

// Initialize loads the persisted map and sweeps out entries older than the
// configured max age. A missing or unreadable file is tolerated: the cache
// starts empty rather than failing startup.
func (m *Manager) Initialize(ctx context.Context) error {
	states, err := m.store.Load(ctx)
	if err != nil {
		slog.Warn("state: failed to load cache, starting fresh", "error", err)
		states = map[string]DailyState{}
	}
	m.mu.Lock()
	m.cache = states
	m.mu.Unlock()
	slog.Info("state: cache loaded", "entries", len(states))
	return m.cleanupOld(ctx)
}

func (m *Manager) cleanupOld(ctx context.Context) error {
	cutoff := time.Now().Add(-m.maxAge)
	m.mu.Lock()
	cleaned := 0
	for date, st := range m.cache {
		if st.LastUpdated.Before(cutoff) {
			delete(m.cache, date)
			cleaned++
		}
	}
	m.mu.Unlock()
	if cleaned == 0 {
		return nil
	}
	slog.Info("state: cleaned up old cache entries", "cleaned", cleaned)
	return m.save(ctx)
}

func (m *Manager) save(ctx context.Context) error {
	m.mu.RLock()
	snapshot := make(map[string]DailyState, len(m.cache))
	for k, v := range m.cache {
		snapshot[k] = v
	}
	m.mu.RUnlock()
	return m.store.Save(ctx, snapshot)
}

// State returns the cached entry for a date, if any.
func (m *Manager) State(date string) (DailyState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.cache[date]
	return st, ok
}

// MessageID returns the message id last used for a date, or "" when the date
// has not been published yet.
func (m *Manager) MessageID(date string) string {
	st, ok := m.State(date)
	if !ok {
		return ""
	}
	return st.DiscordMessageID
}

// Update records a successful publish for a date and persists the full map
// before returning. A save failure is surfaced: losing the write silently
// would desynchronize the cache from the set of published messages.
func (m *Manager) Update(ctx context.Context, date, messageID string, posts []model.Post) error {
	m.mu.Lock()
	totalUpdates := 1
	if prev, ok := m.cache[date]; ok {
		totalUpdates = prev.TotalUpdates + 1
	}
	items := make([]model.Post, len(posts))
	copy(items, posts)
	m.cache[date] = DailyState{
		Date:             date,
		DiscordMessageID: messageID,
		LastItems:        items,
		LastUpdated:      time.Now(),
		TotalUpdates:     totalUpdates,
	}
	m.mu.Unlock()

	if err := m.save(ctx); err != nil {
		slog.Error("state: failed to save cache", "date", date, "error", err)
		return err
	}
	slog.Info("state: daily state updated",
		"date", date, "message_id", messageID, "posts", len(posts), "total_updates", totalUpdates)
	return nil
}

// DetectChanges diffs incoming posts against the cached entry for a date.
// It is a pure read: the cache is never mutated.
func (m *Manager) DetectChanges(date string, posts []model.Post) model.StateChange {
	cached, ok := m.State(date)
	if !ok {
		changes := make([]model.PostChange, 0, len(posts))
		for _, p := range posts {
			changes = append(changes, model.PostChange{
				PostID:   p.ID,
				PostName: p.Name,
				NewRank:  p.Rank,
				NewVotes: p.Votes,
				Type:     model.ChangeNew,
			})
		}
		return model.StateChange{
			Type:    model.ChangeNew,
			Changes: changes,
			Summary: fmt.Sprintf("Initial post with %d products", len(posts)),
		}
	}

	prev := make(map[string]model.Post, len(cached.LastItems))
	for _, p := range cached.LastItems {
		prev[p.ID] = p
	}
	cur := make(map[string]model.Post, len(posts))
	for _, p := range posts {
		cur[p.ID] = p
	}

	var changes []model.PostChange
	for _, p := range cached.LastItems {
		if _, ok := cur[p.ID]; !ok {
			changes = append(changes, model.PostChange{
				PostID:   p.ID,
				PostName: p.Name,
				OldRank:  p.Rank,
				OldVotes: p.Votes,
				Type:     model.ChangeRemoved,
			})
		}
	}
	for _, p := range posts {
		old, ok := prev[p.ID]
		if !ok {
			changes = append(changes, model.PostChange{
				PostID:   p.ID,
				PostName: p.Name,
				NewRank:  p.Rank,
				NewVotes: p.Votes,
				Type:     model.ChangeNew,
			})
			continue
		}
		rankChanged := old.Rank != p.Rank
		votesChanged := old.Votes != p.Votes
		switch {
		case rankChanged:
			// A rank change carries the vote delta too when both moved.
			c := model.PostChange{
				PostID:   p.ID,
				PostName: p.Name,
				OldRank:  old.Rank,
				NewRank:  p.Rank,
				Type:     model.ChangeRank,
			}
			if votesChanged {
				c.OldVotes = old.Votes
				c.NewVotes = p.Votes
			}
			changes = append(changes, c)
		case votesChanged:
			changes = append(changes, model.PostChange{
				PostID:   p.ID,
				PostName: p.Name,
				OldVotes: old.Votes,
				NewVotes: p.Votes,
				Type:     model.ChangeVotes,
			})
		}
	}

	if len(changes) == 0 {
		return model.StateChange{
			Type:    model.ChangeNone,
			Changes: []model.PostChange{},
			Summary: "No changes detected",
		}
	}
	return model.StateChange{
		Type:    aggregateType(changes),
		Changes: changes,
		Summary: summarize(changes),
	}
}

// aggregateType picks the overall verdict: rank changes dominate vote
// changes; new/removed only decide the type when nothing else changed.
func aggregateType(changes []model.PostChange) model.ChangeType {
	for _, want := range []model.ChangeType{model.ChangeRank, model.ChangeVotes, model.ChangeNew, model.ChangeRemoved} {
		for _, c := range changes {
			if c.Type == want {
				return want
			}
		}
	}
	return model.ChangeNone
}

func summarize(changes []model.PostChange) string {
	counts := map[model.ChangeType]int{}
	for _, c := range changes {
		counts[c.Type]++
	}
	var parts []string
	add := func(n int, singular, plural string) {
		if n == 0 {
			return
		}
		word := plural
		if n == 1 {
			word = singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, word))
	}
	add(counts[model.ChangeVotes], "vote change", "vote changes")
	add(counts[model.ChangeRank], "rank change", "rank changes")
	add(counts[model.ChangeNew], "new post", "new posts")
	add(counts[model.ChangeRemoved], "removed post", "removed posts")
	return strings.Join(parts, ", ")
}

// ShouldUpdate reports whether the incoming posts warrant a publish.
func (m *Manager) ShouldUpdate(date string, posts []model.Post) bool {
	return m.DetectChanges(date, posts).Type != model.ChangeNone
}

// Stats returns cache totals for the status endpoint.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, st := range m.cache {
		total += st.TotalUpdates
	}
	return Stats{TotalDates: len(m.cache), TotalUpdates: total}
}

// Shutdown flushes the cache one final time.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.save(ctx); err != nil {
		slog.Error("state: shutdown save failed", "error", err)
		return err
	}
	slog.Info("state: shutdown complete")
	return nil
}
