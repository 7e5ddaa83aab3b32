package cmd

import (
	"context"
	"fmt"
	"time"

	"ph-top5-bot/internal/clock"
	"ph-top5-bot/internal/discord"
	"ph-top5-bot/internal/producthunt"
	"ph-top5-bot/internal/scheduler"

	"github.com/spf13/cobra"
)

// triggerCmd runs exactly one fetch/diff/publish round and exits. Useful for
// verifying credentials and for forcing an out-of-band update.
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Perform a single poll and publish if the ranking changed",
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
		states, closeStore, err := buildStateManager(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := states.Initialize(ctx); err != nil {
			return err
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
			TopN:          cfg.ProductHunt.TopN,
			Embed: discord.EmbedOptions{
				IncludeThumbnail: true,
				Color:            cfg.Discord.EmbedColor,
				FooterText:       cfg.Discord.FooterText,
			},
		})

		res := sched.TriggerManualPoll(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "success=%t posts=%d changes=%t updated=%t\n",
			res.Success, res.PostsFetched, res.ChangesDetected, res.MessageUpdated)
		if !res.Success {
			return fmt.Errorf("poll failed: %s", res.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
