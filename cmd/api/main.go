package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"event-aggregator/internal/bootstrap"
	infraconfig "event-aggregator/internal/infrastructure/config"
	httpserver "event-aggregator/internal/infrastructure/http"
	"event-aggregator/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap.InitAPI(ctx)
	if err != nil {
		logx.L().Fatal("bootstrap api", zap.Error(err))
	}
	defer cleanup()

	logger := app.Log
	addr := ":" + app.Config.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewRouter(app.Server),
		ReadHeaderTimeout: infraconfig.DefaultReadHeaderTimeout,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr), zap.String("storage", app.Config.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
