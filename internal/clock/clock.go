package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock resolves dates and trigger instants in the two configured timezones.
// Source is the zone that defines the day boundary (Product Hunt's day);
// Target is the zone the daily fetch time-of-day is interpreted in.
// All other packages go through Clock instead of computing time directly.
type Clock struct {
	source *time.Location
	target *time.Location

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// New loads and validates both timezone identifiers. An unknown zone is a
// configuration error and must abort startup.
func New(sourceTZ, targetTZ string) (*Clock, error) {
	src, err := time.LoadLocation(sourceTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid source timezone %q: %w", sourceTZ, err)
	}
	tgt, err := time.LoadLocation(targetTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid target timezone %q: %w", targetTZ, err)
	}
	return &Clock{source: src, target: tgt, now: time.Now}, nil
}

// WithNow returns a copy using the given now func. Test hook.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c2 := *c
	c2.now = now
	return &c2
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	return c.now()
}

// SourceNow returns the current wall-clock time in the source zone.
func (c *Clock) SourceNow() time.Time {
	return c.now().In(c.source)
}

// TargetNow returns the current wall-clock time in the target zone.
func (c *Clock) TargetNow() time.Time {
	return c.now().In(c.target)
}

// SourceDateKey returns today's date in the source zone as YYYY-MM-DD.
// This key scopes the daily cycle and the change-detection cache.
func (c *Clock) SourceDateKey() string {
	return c.SourceNow().Format("2006-01-02")
}

// NextOccurrence returns the next future instant at the given HH:MM wall-clock
// time in the target zone. If that time has already passed today, the
// occurrence is tomorrow; the result is never in the past.
func (c *Clock) NextOccurrence(timeOfDay string) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	now := c.TargetNow()
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, c.target)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target, nil
}

// Until returns the duration from now until t, floored at zero so that clock
// skew never produces a negative wait.
func (c *Clock) Until(t time.Time) time.Duration {
	d := t.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// FormatDisplay renders an instant as a human date in the source zone,
// e.g. "January 2, 2006", for the published message title.
func (c *Clock) FormatDisplay(t time.Time) string {
	return t.In(c.source).Format("January 2, 2006")
}

// Info reports both zones and their current local times, for logging and the
// health endpoint.
func (c *Clock) Info() map[string]string {
	return map[string]string{
		"source_timezone": c.source.String(),
		"target_timezone": c.target.String(),
		"source_time":     c.SourceNow().Format(time.RFC3339),
		"target_time":     c.TargetNow().Format(time.RFC3339),
	}
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
