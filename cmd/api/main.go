// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", false)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize app")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("mode", cfg.GinMode).Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		application.close()
		log.Fatal().Err(err).Msg("http server failed")
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	application.close()
	log.Info().Msg("API server stopped")
}
