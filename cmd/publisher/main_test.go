package main

import (
	"testing"
	"time"

	"event-aggregator/internal/config"

	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Config{TargetURL: "http://aggregator:8080/publish", ReplayProbability: 0.3, PublishRate: 18}

	require.NoError(t, rootCmd.Flags().Parse([]string{"--target", "http://localhost:9000/publish", "--count", "50", "--start-delay", "0s"}))
	require.NoError(t, applyFlags(rootCmd, &cfg))

	require.Equal(t, "http://localhost:9000/publish", cfg.TargetURL)
	require.Equal(t, 50, cfg.PublishCount)
	require.Equal(t, time.Duration(0), cfg.StartDelay)
	require.Equal(t, 0.3, cfg.ReplayProbability)
	require.Equal(t, 18.0, cfg.PublishRate)
}
