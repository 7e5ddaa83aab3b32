package scheduler

import "time"

// PollingConfig bounds the adaptive interval state machine.
type PollingConfig struct {
	InitialInterval   time.Duration
	MinInterval       time.Duration
	MaxInterval       time.Duration
	Multiplier        float64
	ActivityThreshold int
}

// AdaptiveState tracks the polling cadence for the current day. It is a plain
// value: transitions return a new state and perform no I/O, so the
// poll/interval logic is testable without timers.
type AdaptiveState struct {
	CurrentInterval      time.Duration `json:"currentInterval"`
	ConsecutiveNoChanges int           `json:"consecutiveNoChanges"`
	ConsecutiveChanges   int           `json:"consecutiveChanges"`
	LastActivityTime     time.Time     `json:"lastActivityTime"` // zero when no activity yet
	IsActivePeriod       bool          `json:"isActivePeriod"`
}

// inactivityWindow is how long after the last change the period still counts
// as active.
const inactivityWindow = 2 * time.Hour

// growAfter is how many consecutive no-change polls trigger interval growth.
const growAfter = 3

// NewAdaptiveState returns the per-day initial state.
func NewAdaptiveState(cfg PollingConfig) AdaptiveState {
	return AdaptiveState{CurrentInterval: clamp(cfg.InitialInterval, cfg)}
}

// Observe folds one poll outcome into the state. A change streak at or above
// the activity threshold shrinks the interval; a no-change streak of three or
// more grows it. The interval never leaves [MinInterval, MaxInterval].
func (s AdaptiveState) Observe(hadChange bool, now time.Time, cfg PollingConfig) AdaptiveState {
	if hadChange {
		s.ConsecutiveChanges++
		s.ConsecutiveNoChanges = 0
		s.LastActivityTime = now
		s.IsActivePeriod = true
		if s.ConsecutiveChanges >= cfg.ActivityThreshold {
			s.CurrentInterval = clamp(time.Duration(float64(s.CurrentInterval)/cfg.Multiplier), cfg)
		}
		return s
	}

	s.ConsecutiveNoChanges++
	s.ConsecutiveChanges = 0
	if s.ConsecutiveNoChanges >= growAfter {
		s.CurrentInterval = clamp(time.Duration(float64(s.CurrentInterval)*cfg.Multiplier), cfg)
	}
	if !s.LastActivityTime.IsZero() && now.Sub(s.LastActivityTime) > inactivityWindow {
		s.IsActivePeriod = false
	}
	return s
}

// ObserveFailure applies the backoff rule for a failed poll: the interval is
// doubled and clamped to the maximum. Activity counters are untouched.
func (s AdaptiveState) ObserveFailure(cfg PollingConfig) AdaptiveState {
	s.CurrentInterval = clamp(s.CurrentInterval*2, cfg)
	return s
}

func clamp(d time.Duration, cfg PollingConfig) time.Duration {
	if d < cfg.MinInterval {
		return cfg.MinInterval
	}
	if d > cfg.MaxInterval {
		return cfg.MaxInterval
	}
	return d
}
