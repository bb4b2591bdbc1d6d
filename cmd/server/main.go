package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"priceresolver/internal/config"
	"priceresolver/internal/httpx"
	"priceresolver/internal/logging"
	"priceresolver/internal/provider/factory"
)

func main() {
	// Config
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		boot := logging.New(config.Log{})
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.Log)

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	f, err := factory.New(cfg, httpClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("provider")
	}

	s := &server{
		provider:    f.Provider(),
		maxBatch:    cfg.Server.MaxBatch,
		concurrency: cfg.Server.MaxConcurrency,
		timeout:     timeout,
		log:         log,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}
