//go:build wireinject

package bootstrap

import (
	"context"

	"github.com/google/wire"
)

var apiSet = wire.NewSet(
	ProvideLogger,
	ProvideConfig,
	ProvideStore,
	ProvideMetricsModule,
	ProvideMetrics,
	ProvideNotifier,
	ProvideIngestionService,
	ProvideServer,
	wire.Struct(new(API), "*"),
)

// InitAPI builds the aggregator with all of its dependencies.
func InitAPI(ctx context.Context) (*API, func(), error) {
	wire.Build(apiSet)
	return nil, nil, nil
}
