package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ph-top5-bot/internal/clock"
	"ph-top5-bot/internal/discord"
	"ph-top5-bot/internal/metrics"
	"ph-top5-bot/internal/model"
	"ph-top5-bot/internal/state"
)

// RankingSource fetches the current top-N ranked posts. It is expected to
// retry transient failures internally before surfacing an error.
type RankingSource interface {
	FetchTopPosts(ctx context.Context, limit int) (*model.TopPostsResult, error)
}

// Publisher creates or edits the daily ranking message.
type Publisher interface {
	PostTopPosts(ctx context.Context, posts []model.Post, dateString string, opts discord.EmbedOptions) discord.MessageResult
	EditTopPosts(ctx context.Context, messageID string, posts []model.Post, dateString string, opts discord.EmbedOptions) discord.MessageResult
}

// Config holds the orchestration knobs.
type Config struct {
	FetchTime     string // HH:MM in the clock's target timezone
	Polling       PollingConfig
	MaxDailyPolls int
	GracePeriod   time.Duration
	TopN          int
	Embed         discord.EmbedOptions
}

// DailySchedule describes the single in-flight polling cycle.
type DailySchedule struct {
	Date           string    `json:"date"` // YYYY-MM-DD in the source timezone
	NextFetchTime  time.Time `json:"nextFetchTime"`
	IsActive       bool      `json:"isActive"`
	TotalPolls     int       `json:"totalPolls"`
	LastPollTime   time.Time `json:"lastPollTime"`
	LastChangeTime time.Time `json:"lastChangeTime"`
}

// Status is a read-only snapshot for the monitoring endpoints.
type Status struct {
	IsRunning            bool           `json:"isRunning"`
	CurrentSchedule      *DailySchedule `json:"currentSchedule"`
	AdaptiveState        AdaptiveState  `json:"adaptiveState"`
	NextPollDelaySeconds float64        `json:"nextPollDelaySeconds"`
}

// Scheduler runs one polling cycle per calendar day: fetch the ranking,
// diff it against the cached state, publish or edit the channel message when
// something changed, and adapt the polling cadence to observed activity.
type Scheduler struct {
	source    RankingSource
	publisher Publisher
	states    *state.Manager
	clock     *clock.Clock
	cfg       Config

	mu       sync.Mutex // guards running, cancel, schedule, adaptive
	running  bool
	cancel   context.CancelFunc
	schedule *DailySchedule
	adaptive AdaptiveState

	pollMu sync.Mutex // at most one poll in flight (loop or manual trigger)
}

func New(source RankingSource, publisher Publisher, states *state.Manager, clk *clock.Clock, cfg Config) *Scheduler {
	return &Scheduler{
		source:    source,
		publisher: publisher,
		states:    states,
		clock:     clk,
		cfg:       cfg,
		adaptive:  NewAdaptiveState(cfg.Polling),
	}
}

// Start runs the day-cycle loop until the context is cancelled or Stop is
// called. Calling Start while already running is a no-op; a second loop is
// never created.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("scheduler: already running")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	slog.Info("scheduler: started", "fetch_time", s.cfg.FetchTime)
	for {
		s.runDailyCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		next, err := s.clock.NextOccurrence(s.cfg.FetchTime)
		if err != nil {
			// fetch time is validated at startup; treat as fatal
			return err
		}
		wait := s.clock.Until(next)
		slog.Info("scheduler: next daily cycle scheduled",
			"next_fetch", next.Format(time.RFC3339), "wait", wait.Round(time.Second))
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

// Stop cancels the running loop, including any pending inter-poll wait.
// Idempotent; no further poll fires after it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		slog.Info("scheduler: stopped")
	}
}

// Status returns a snapshot of the current schedule and adaptive state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		IsRunning:            s.running,
		AdaptiveState:        s.adaptive,
		NextPollDelaySeconds: s.adaptive.CurrentInterval.Seconds(),
	}
	if s.schedule != nil {
		snap := *s.schedule
		st.CurrentSchedule = &snap
	}
	return st
}

// TriggerManualPoll performs exactly one poll against a transient schedule
// rooted at now. The day-level recurring schedule is left untouched.
func (s *Scheduler) TriggerManualPoll(ctx context.Context) model.PollResult {
	slog.Info("scheduler: manual poll triggered")
	sched := &DailySchedule{
		Date:          s.clock.SourceDateKey(),
		NextFetchTime: s.clock.Now(),
		IsActive:      true,
	}
	res := s.performPoll(ctx, sched)
	slog.Info("scheduler: manual poll completed",
		"success", res.Success, "posts_fetched", res.PostsFetched, "changes_detected", res.ChangesDetected)
	return res
}

// runDailyCycle executes one calendar day: reset the adaptive state, install
// a fresh schedule, wait out the grace period, then poll until the day ends.
// Any panic is contained here so the outer loop always schedules tomorrow.
func (s *Scheduler) runDailyCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler: daily cycle aborted", "panic", r)
		}
	}()

	date := s.clock.SourceDateKey()
	next, err := s.clock.NextOccurrence(s.cfg.FetchTime)
	if err != nil {
		slog.Error("scheduler: cannot compute next fetch time", "error", err)
		return
	}

	s.mu.Lock()
	s.adaptive = NewAdaptiveState(s.cfg.Polling)
	s.schedule = &DailySchedule{Date: date, NextFetchTime: next, IsActive: true}
	s.mu.Unlock()
	metrics.PollInterval.Set(s.cfg.Polling.InitialInterval.Seconds())

	slog.Info("scheduler: starting daily cycle", "date", date, "grace_period", s.cfg.GracePeriod)
	if !sleepCtx(ctx, s.cfg.GracePeriod) {
		return
	}
	s.pollLoop(ctx)

	s.mu.Lock()
	if s.schedule != nil {
		s.schedule.IsActive = false
	}
	s.mu.Unlock()
}

// pollLoop polls, decides whether to continue, and waits the adaptive
// interval between iterations. Poll failures are logged and folded into the
// backoff rule; only Stop or day end exits the loop.
func (s *Scheduler) pollLoop(ctx context.Context) {
	s.mu.Lock()
	sched := s.schedule
	s.mu.Unlock()
	if sched == nil {
		return
	}

	slog.Info("scheduler: polling loop started", "date", sched.Date,
		"initial_interval", s.cfg.Polling.InitialInterval)
	for {
		if ctx.Err() != nil {
			return
		}
		res := s.performPoll(ctx, sched)
		if !res.Success {
			slog.Error("scheduler: poll failed, continuing", "error", res.Err,
				"next_delay", res.NextPollDelay)
		}
		if s.shouldStopPolling(sched) {
			slog.Info("scheduler: stopping polling for today",
				"date", sched.Date, "total_polls", sched.TotalPolls)
			return
		}
		s.mu.Lock()
		wait := s.adaptive.CurrentInterval
		s.mu.Unlock()
		slog.Debug("scheduler: next poll scheduled", "delay", wait, "total_polls", sched.TotalPolls)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// performPoll runs a single fetch/diff/publish round against the given
// schedule and applies the adaptive rules to its outcome.
func (s *Scheduler) performPoll(ctx context.Context, sched *DailySchedule) model.PollResult {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	now := s.clock.Now()
	s.mu.Lock()
	sched.LastPollTime = now
	sched.TotalPolls++
	pollNumber := sched.TotalPolls
	s.mu.Unlock()
	date := sched.Date
	metrics.PollsTotal.Inc()

	slog.Debug("scheduler: performing poll", "poll", pollNumber, "date", date)

	fetched, err := s.source.FetchTopPosts(ctx, s.cfg.TopN)
	if err != nil {
		return s.failPoll(0, false, err.Error())
	}
	posts := fetched.Posts

	change := s.states.DetectChanges(date, posts)
	if change.Type == model.ChangeNone {
		s.mu.Lock()
		s.adaptive = s.adaptive.Observe(false, now, s.cfg.Polling)
		delay := s.adaptive.CurrentInterval
		s.mu.Unlock()
		metrics.PollInterval.Set(delay.Seconds())
		slog.Debug("scheduler: no changes detected", "poll", pollNumber, "interval", delay)
		return model.PollResult{
			Success:       true,
			PostsFetched:  len(posts),
			NextPollDelay: delay,
		}
	}
	metrics.ChangesDetected.Inc()
	slog.Info("scheduler: changes detected", "date", date, "summary", change.Summary)

	display := s.clock.FormatDisplay(now)
	messageID := s.states.MessageID(date)
	var mr discord.MessageResult
	if messageID != "" {
		mr = s.publisher.EditTopPosts(ctx, messageID, posts, display, s.cfg.Embed)
		if mr.Success {
			metrics.MessagesEdited.Inc()
		}
	} else {
		mr = s.publisher.PostTopPosts(ctx, posts, display, s.cfg.Embed)
		if mr.Success {
			metrics.MessagesPosted.Inc()
		}
		messageID = mr.MessageID
	}
	if !mr.Success {
		return s.failPoll(len(posts), true, mr.Err)
	}

	if err := s.states.Update(ctx, date, messageID, posts); err != nil {
		return s.failPoll(len(posts), true, err.Error())
	}
	metrics.CacheDates.Set(float64(s.states.Stats().TotalDates))

	s.mu.Lock()
	sched.LastChangeTime = s.clock.Now()
	s.adaptive = s.adaptive.Observe(true, now, s.cfg.Polling)
	delay := s.adaptive.CurrentInterval
	s.mu.Unlock()
	metrics.PollInterval.Set(delay.Seconds())

	return model.PollResult{
		Success:         true,
		PostsFetched:    len(posts),
		ChangesDetected: true,
		MessageUpdated:  true,
		NextPollDelay:   delay,
	}
}

// failPoll applies the failure backoff and builds the result.
func (s *Scheduler) failPoll(postsFetched int, changesDetected bool, errMsg string) model.PollResult {
	metrics.PollFailures.Inc()
	s.mu.Lock()
	s.adaptive = s.adaptive.ObserveFailure(s.cfg.Polling)
	delay := s.adaptive.CurrentInterval
	s.mu.Unlock()
	metrics.PollInterval.Set(delay.Seconds())
	return model.PollResult{
		Success:         false,
		PostsFetched:    postsFetched,
		ChangesDetected: changesDetected,
		Err:             errMsg,
		NextPollDelay:   delay,
	}
}

// shouldStopPolling is checked after every poll: the day ends when the poll
// ceiling is hit or the source-timezone date has rolled over.
func (s *Scheduler) shouldStopPolling(sched *DailySchedule) bool {
	s.mu.Lock()
	totalPolls := sched.TotalPolls
	s.mu.Unlock()
	if totalPolls >= s.cfg.MaxDailyPolls {
		slog.Warn("scheduler: reached maximum daily polls",
			"max_polls", s.cfg.MaxDailyPolls, "total_polls", totalPolls)
		return true
	}
	if current := s.clock.SourceDateKey(); current != sched.Date {
		slog.Info("scheduler: new day detected",
			"old_date", sched.Date, "new_date", current)
		return true
	}
	return false
}

// sleepCtx waits for d or until ctx is cancelled; reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
