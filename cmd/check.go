package cmd

import (
	"context"
	"fmt"
	"time"

	"ph-top5-bot/internal/discord"
	"ph-top5-bot/internal/producthunt"

	"github.com/spf13/cobra"
)

// checkCmd probes the Product Hunt API and the Discord channel with the
// configured credentials.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify Product Hunt and Discord connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		initLogger(cfg.App.LogLevel)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ph := producthunt.NewClient(cfg.ProductHunt.APIURL, cfg.ProductHunt.Token)
		if err := ph.TestConnection(ctx); err != nil {
			return fmt.Errorf("product hunt check failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "product hunt: ok")

		dc := discord.New("", cfg.Discord.Token, cfg.Discord.ChannelID)
		if err := dc.TestConnection(ctx); err != nil {
			return fmt.Errorf("discord check failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "discord: ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
