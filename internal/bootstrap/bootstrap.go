package bootstrap

import (
	"context"
	"net/http"
	"time"

	"event-aggregator/internal/config"
	"event-aggregator/internal/infrastructure/httpx"
	"event-aggregator/internal/infrastructure/provider"
	"event-aggregator/internal/infrastructure/worker"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// retryConnect runs op with exponential backoff until it succeeds or ctx ends.
func retryConnect(ctx context.Context, log *zap.Logger, op func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err != nil {
			log.Warn("store.connect_retry", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(exp, ctx))
}

// BuildGenerator wires the synthetic publisher from cfg.
func BuildGenerator(cfg config.Config, log *zap.Logger) *worker.Generator {
	limit := rate.Inf
	if cfg.PublishRate > 0 {
		limit = rate.Limit(cfg.PublishRate)
	}
	burst := cfg.PublishBurst
	if burst <= 0 {
		burst = 1
	}
	return &worker.Generator{
		Source: provider.NewSynthetic(uint64(time.Now().UnixNano())),
		Sender: &worker.HTTPSender{
			Client: &httpx.Client{
				HTTP: &http.Client{Timeout: cfg.RequestTimeout},
				Log:  log,
			},
			URL: cfg.TargetURL,
		},
		Limiter:           rate.NewLimiter(limit, burst),
		ReplayProbability: cfg.ReplayProbability,
		Memory:            cfg.ReplayMemory,
		Count:             cfg.PublishCount,
		StartDelay:        cfg.StartDelay,
		Log:               log,
	}
}
