package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ph-top5-bot/internal/clock"
	"ph-top5-bot/internal/config"
	"ph-top5-bot/internal/discord"
	"ph-top5-bot/internal/monitor"
	"ph-top5-bot/internal/producthunt"
	"ph-top5-bot/internal/redisclient"
	"ph-top5-bot/internal/scheduler"
	"ph-top5-bot/internal/state"
	"ph-top5-bot/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and monitoring server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		initLogger(cfg.App.LogLevel)
		if err := cfg.Validate(); err != nil {
			return err
		}

		clk, err := clock.New(cfg.Time.SourceTimezone, cfg.Time.TargetTimezone)
		if err != nil {
			return err
		}
		// Reject a bad fetch time before any scheduling begins.
		if _, err := clk.NextOccurrence(cfg.Time.FetchAtLocal); err != nil {
			return err
		}
		info := clk.Info()
		slog.Info("timezone configuration",
			"source", info["source_timezone"], "target", info["target_timezone"],
			"source_time", info["source_time"], "target_time", info["target_time"])

		states, closeStore, err := buildStateManager(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := states.Initialize(cmd.Context()); err != nil {
			return err
		}
		stats := states.Stats()
		slog.Info("state manager initialized", "dates", stats.TotalDates, "updates", stats.TotalUpdates)

		grace, err := time.ParseDuration(cfg.Scheduler.GracePeriod)
		if err != nil {
			return fmt.Errorf("invalid scheduler.grace_period: %w", err)
		}

		ph := producthunt.NewClient(cfg.ProductHunt.APIURL, cfg.ProductHunt.Token)
		dc := discord.New("", cfg.Discord.Token, cfg.Discord.ChannelID)

		sched := scheduler.New(ph, dc, states, clk, scheduler.Config{
			FetchTime: cfg.Time.FetchAtLocal,
			Polling: scheduler.PollingConfig{
				InitialInterval:   time.Duration(cfg.Time.PollSeconds) * time.Second,
				MinInterval:       time.Duration(cfg.Scheduler.MinIntervalSeconds) * time.Second,
				MaxInterval:       time.Duration(cfg.Scheduler.MaxIntervalSeconds) * time.Second,
				Multiplier:        cfg.Scheduler.Multiplier,
				ActivityThreshold: cfg.Scheduler.ActivityThreshold,
			},
			MaxDailyPolls: cfg.Scheduler.MaxDailyPolls,
			GracePeriod:   grace,
			TopN:          cfg.ProductHunt.TopN,
			Embed: discord.EmbedOptions{
				IncludeThumbnail: true,
				Color:            cfg.Discord.EmbedColor,
				FooterText:       cfg.Discord.FooterText,
			},
		})
		mon := monitor.NewServer(cfg.Monitor.Addr, clk, sched, states)

		mgr := worker.NewManager(sched, mon)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		err = mgr.Start(ctx)

		// Flush the cache on the way out.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if serr := states.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
		return err
	},
}

// buildStateManager selects the configured store backend.
func buildStateManager(cfg config.Config) (*state.Manager, func(), error) {
	maxAge, err := time.ParseDuration(cfg.Cache.MaxAge)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cache.max_age: %w", err)
	}
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redisclient.New(cfg.Redis)
		store := state.NewRedisStore(rdb, "")
		return state.NewManager(store, maxAge), func() { _ = rdb.Close() }, nil
	default:
		store := state.NewFileStore(cfg.Cache.FilePath)
		return state.NewManager(store, maxAge), func() {}, nil
	}
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
