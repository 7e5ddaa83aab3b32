package config

import (
	"fmt"
	"strings"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// ProductHuntConfig controls the ranking data source.
type ProductHuntConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
	TopN   int    `mapstructure:"top_n"`
}

// DiscordConfig controls where the daily ranking message is published.
type DiscordConfig struct {
	Token      string `mapstructure:"token"`
	ChannelID  string `mapstructure:"channel_id"`
	EmbedColor int    `mapstructure:"embed_color"`
	FooterText string `mapstructure:"footer_text"`
}

// TimeConfig holds the two timezones and the daily fetch trigger.
// SourceTimezone defines the day boundary (Product Hunt's day); TargetTimezone
// is the zone the fetch_at_local wall-clock time is interpreted in.
type TimeConfig struct {
	SourceTimezone string `mapstructure:"source_timezone"`
	TargetTimezone string `mapstructure:"target_timezone"`
	FetchAtLocal   string `mapstructure:"fetch_at_local"` // HH:MM
	PollSeconds    int    `mapstructure:"poll_seconds"`
}

// SchedulerConfig bounds the adaptive polling loop.
type SchedulerConfig struct {
	MinIntervalSeconds int     `mapstructure:"min_interval_seconds"`
	MaxIntervalSeconds int     `mapstructure:"max_interval_seconds"`
	Multiplier         float64 `mapstructure:"multiplier"`
	ActivityThreshold  int     `mapstructure:"activity_threshold"`
	MaxDailyPolls      int     `mapstructure:"max_daily_polls"`
	GracePeriod        string  `mapstructure:"grace_period"` // duration string, e.g. "5m"
}

// CacheConfig selects and tunes the daily-state store.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"` // "file" or "redis"
	FilePath string `mapstructure:"file_path"`
	MaxAge   string `mapstructure:"max_age"` // duration string, e.g. "168h"
}

// RedisConfig holds redis connection settings (used when cache.backend=redis).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MonitorConfig controls the health/metrics HTTP server.
type MonitorConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the top-level configuration structure.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	ProductHunt ProductHuntConfig `mapstructure:"producthunt"`
	Discord     DiscordConfig     `mapstructure:"discord"`
	Time        TimeConfig        `mapstructure:"time"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.ProductHunt.APIURL == "" {
		c.ProductHunt.APIURL = "https://api.producthunt.com/v2/api/graphql"
	}
	if c.ProductHunt.TopN == 0 {
		c.ProductHunt.TopN = 5
	}
	if c.Discord.EmbedColor == 0 {
		c.Discord.EmbedColor = 0xda552f // Product Hunt orange
	}
	if c.Discord.FooterText == "" {
		c.Discord.FooterText = "Auto-updating until midnight PT"
	}
	if c.Time.SourceTimezone == "" {
		c.Time.SourceTimezone = "America/Los_Angeles"
	}
	if c.Time.TargetTimezone == "" {
		c.Time.TargetTimezone = c.Time.SourceTimezone
	}
	if c.Time.FetchAtLocal == "" {
		c.Time.FetchAtLocal = "00:05"
	}
	if c.Time.PollSeconds == 0 {
		c.Time.PollSeconds = 120
	}
	if c.Scheduler.MinIntervalSeconds == 0 {
		c.Scheduler.MinIntervalSeconds = 60
	}
	if c.Scheduler.MaxIntervalSeconds == 0 {
		c.Scheduler.MaxIntervalSeconds = 600
	}
	if c.Scheduler.Multiplier == 0 {
		c.Scheduler.Multiplier = 1.5
	}
	if c.Scheduler.ActivityThreshold == 0 {
		c.Scheduler.ActivityThreshold = 2
	}
	if c.Scheduler.MaxDailyPolls == 0 {
		c.Scheduler.MaxDailyPolls = 1000
	}
	if c.Scheduler.GracePeriod == "" {
		c.Scheduler.GracePeriod = "5m"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.FilePath == "" {
		c.Cache.FilePath = "./data/cache.json"
	}
	if c.Cache.MaxAge == "" {
		c.Cache.MaxAge = "168h" // one week
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Monitor.Addr == "" {
		c.Monitor.Addr = ":3000"
	}
}

// Validate checks required fields and basic bounds before startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProductHunt.Token) == "" {
		return fmt.Errorf("producthunt.token is required")
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required")
	}
	if strings.TrimSpace(c.Discord.ChannelID) == "" {
		return fmt.Errorf("discord.channel_id is required")
	}
	if c.Time.PollSeconds < 30 {
		return fmt.Errorf("time.poll_seconds must be >= 30, got %d", c.Time.PollSeconds)
	}
	if c.Scheduler.MinIntervalSeconds > c.Scheduler.MaxIntervalSeconds {
		return fmt.Errorf("scheduler.min_interval_seconds (%d) exceeds max_interval_seconds (%d)",
			c.Scheduler.MinIntervalSeconds, c.Scheduler.MaxIntervalSeconds)
	}
	switch c.Cache.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", "file", "redis", c.Cache.Backend)
	}
	return nil
}
