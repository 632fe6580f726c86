package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"event-aggregator/internal/bootstrap"
	"event-aggregator/internal/config"
	"event-aggregator/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

var rootCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Send synthetic events, with replays, to the aggregator",
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.String("target", "", "aggregator publish URL (overrides TARGET_URL)")
	f.Float64("replay-prob", 0, "probability of resending a known event (overrides REPLAY_PROBABILITY)")
	f.Float64("rate", 0, "events per second; 0 means unlimited (overrides PUBLISH_RATE)")
	f.Int("count", 0, "stop after this many sends; 0 runs until interrupted (overrides PUBLISH_COUNT)")
	f.Duration("start-delay", 0, "wait before the first send (overrides START_DELAY)")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if cfg.ReplayProbability < 0 || cfg.ReplayProbability > 1 {
		return fmt.Errorf("replay probability must be within [0, 1], got %v", cfg.ReplayProbability)
	}

	if err := logx.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	log := logx.L().With(zap.String("target", cfg.TargetURL))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := bootstrap.BuildGenerator(cfg, log)
	g.Start(ctx)
	return nil
}

// applyFlags overrides cfg with the flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("target") {
		cfg.TargetURL, err = f.GetString("target")
	}
	if err == nil && f.Changed("replay-prob") {
		cfg.ReplayProbability, err = f.GetFloat64("replay-prob")
	}
	if err == nil && f.Changed("rate") {
		cfg.PublishRate, err = f.GetFloat64("rate")
	}
	if err == nil && f.Changed("count") {
		cfg.PublishCount, err = f.GetInt("count")
	}
	if err == nil && f.Changed("start-delay") {
		cfg.StartDelay, err = f.GetDuration("start-delay")
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
