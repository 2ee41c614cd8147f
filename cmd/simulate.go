package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/surgitrack/internal/simulate"
	"github.com/okian/surgitrack/pkg/logger"
)

func newSimulateCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a running server with synthetic trainees and verify the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := simulate.Run(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			logger.Get().Info(cmd.Context(), "final statistics",
				logger.Int("usersRegistered", stats.UsersRegistered),
				logger.Int("attemptsSubmitted", stats.AttemptsSubmitted),
				logger.Int("attemptsSuccessful", stats.AttemptsSuccessful),
				logger.Int("attemptsDuplicate", stats.AttemptsDuplicate),
				logger.Int("attemptsFailed", stats.AttemptsFailed),
				logger.Int("proficient", stats.Proficient),
				logger.Int("leaderboardEntries", stats.LeaderboardEntries),
				logger.Duration("duration", stats.Duration))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.Users, "users", cfg.Users, "number of trainees to register")
	f.IntVar(&cfg.Attempts, "attempts", cfg.Attempts, "number of attempts to submit")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent submitters")
	f.IntVar(&cfg.TopN, "top", cfg.TopN, "leaderboard entries to fetch and verify")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", cfg.Settle, "wait before reading the leaderboard")
	f.Float64Var(&cfg.RetryRatio, "retry-ratio", cfg.RetryRatio, "share of attempts retried with the same idempotency key")
	f.Uint64Var(&cfg.Seed, "seed", 0, "generator seed (0 picks one)")
	return cmd
}
