package scheduler

import (
	"math/rand"
	"testing"
	"time"
)

var testPolling = PollingConfig{
	InitialInterval:   120 * time.Second,
	MinInterval:       60 * time.Second,
	MaxInterval:       600 * time.Second,
	Multiplier:        1.5,
	ActivityThreshold: 2,
}

func TestNewAdaptiveState(t *testing.T) {
	s := NewAdaptiveState(testPolling)
	if s.CurrentInterval != 120*time.Second {
		t.Errorf("interval = %v, want 120s", s.CurrentInterval)
	}
	if s.ConsecutiveChanges != 0 || s.ConsecutiveNoChanges != 0 || s.IsActivePeriod {
		t.Errorf("unexpected initial state: %+v", s)
	}
	if !s.LastActivityTime.IsZero() {
		t.Errorf("lastActivityTime should start zero")
	}
}

func TestNewAdaptiveStateClampsInitial(t *testing.T) {
	cfg := testPolling
	cfg.InitialInterval = 10 * time.Second // below min
	if s := NewAdaptiveState(cfg); s.CurrentInterval != cfg.MinInterval {
		t.Errorf("interval = %v, want clamped to %v", s.CurrentInterval, cfg.MinInterval)
	}
}

func TestChangesShrinkIntervalAtThreshold(t *testing.T) {
	now := time.Now()
	s := NewAdaptiveState(testPolling)

	s = s.Observe(true, now, testPolling)
	if s.CurrentInterval != 120*time.Second {
		t.Errorf("one change below threshold should not shrink, got %v", s.CurrentInterval)
	}
	if !s.IsActivePeriod || s.ConsecutiveChanges != 1 {
		t.Errorf("state after first change: %+v", s)
	}

	s = s.Observe(true, now, testPolling)
	want := time.Duration(float64(120*time.Second) / 1.5)
	if s.CurrentInterval != want {
		t.Errorf("interval = %v, want %v", s.CurrentInterval, want)
	}
}

func TestShrinkFloorsAtMin(t *testing.T) {
	now := time.Now()
	s := NewAdaptiveState(testPolling)
	for i := 0; i < 20; i++ {
		s = s.Observe(true, now, testPolling)
	}
	if s.CurrentInterval != testPolling.MinInterval {
		t.Errorf("interval = %v, want floor %v", s.CurrentInterval, testPolling.MinInterval)
	}
}

func TestNoChangesGrowInterval(t *testing.T) {
	now := time.Now()
	s := NewAdaptiveState(testPolling)

	s = s.Observe(false, now, testPolling)
	s = s.Observe(false, now, testPolling)
	if s.CurrentInterval != 120*time.Second {
		t.Errorf("two no-change polls should not grow, got %v", s.CurrentInterval)
	}
	s = s.Observe(false, now, testPolling)
	want := time.Duration(float64(120*time.Second) * 1.5)
	if s.CurrentInterval != want {
		t.Errorf("interval = %v, want %v", s.CurrentInterval, want)
	}
}

func TestGrowthCapsAtMax(t *testing.T) {
	now := time.Now()
	s := NewAdaptiveState(testPolling)
	for i := 0; i < 30; i++ {
		s = s.Observe(false, now, testPolling)
	}
	if s.CurrentInterval != testPolling.MaxInterval {
		t.Errorf("interval = %v, want cap %v", s.CurrentInterval, testPolling.MaxInterval)
	}
}

func TestChangeResetsNoChangeStreak(t *testing.T) {
	now := time.Now()
	s := NewAdaptiveState(testPolling)
	s = s.Observe(false, now, testPolling)
	s = s.Observe(false, now, testPolling)
	s = s.Observe(true, now, testPolling)
	if s.ConsecutiveNoChanges != 0 {
		t.Errorf("no-change streak = %d, want 0", s.ConsecutiveNoChanges)
	}
	s = s.Observe(false, now, testPolling)
	if s.ConsecutiveChanges != 0 {
		t.Errorf("change streak = %d, want 0", s.ConsecutiveChanges)
	}
}

func TestActivePeriodExpiresAfterTwoHours(t *testing.T) {
	start := time.Now()
	s := NewAdaptiveState(testPolling)
	s = s.Observe(true, start, testPolling)
	if !s.IsActivePeriod {
		t.Fatal("change should mark period active")
	}
	s = s.Observe(false, start.Add(time.Hour), testPolling)
	if !s.IsActivePeriod {
		t.Error("period expired too early")
	}
	s = s.Observe(false, start.Add(2*time.Hour+time.Minute), testPolling)
	if s.IsActivePeriod {
		t.Error("period should have expired after 2h of inactivity")
	}
}

func TestFailureDoublesAndClamps(t *testing.T) {
	s := NewAdaptiveState(testPolling)
	s = s.ObserveFailure(testPolling)
	if s.CurrentInterval != 240*time.Second {
		t.Errorf("interval = %v, want 240s", s.CurrentInterval)
	}
	s = s.ObserveFailure(testPolling)
	s = s.ObserveFailure(testPolling)
	if s.CurrentInterval != testPolling.MaxInterval {
		t.Errorf("interval = %v, want cap %v", s.CurrentInterval, testPolling.MaxInterval)
	}
	if s.ConsecutiveChanges != 0 || s.ConsecutiveNoChanges != 0 {
		t.Errorf("failure must not touch activity counters: %+v", s)
	}
}

func TestIntervalNeverLeavesBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	s := NewAdaptiveState(testPolling)
	for i := 0; i < 1000; i++ {
		switch rng.Intn(3) {
		case 0:
			s = s.Observe(true, now, testPolling)
		case 1:
			s = s.Observe(false, now, testPolling)
		default:
			s = s.ObserveFailure(testPolling)
		}
		now = now.Add(time.Duration(rng.Intn(600)) * time.Second)
		if s.CurrentInterval < testPolling.MinInterval || s.CurrentInterval > testPolling.MaxInterval {
			t.Fatalf("iteration %d: interval %v out of [%v, %v]",
				i, s.CurrentInterval, testPolling.MinInterval, testPolling.MaxInterval)
		}
	}
}
