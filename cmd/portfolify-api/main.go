package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/internal/httpx"
	"github.com/IamSamk/Portfolify/internal/orchestrator"
	"github.com/IamSamk/Portfolify/internal/provider"
	"github.com/IamSamk/Portfolify/internal/store"
	"github.com/IamSamk/Portfolify/internal/ws"
	"github.com/IamSamk/Portfolify/pkg/config"
	"github.com/IamSamk/Portfolify/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := make([]domain.Account, 0)
	for _, account := range config.LoadAccounts(cfg.DefaultMaxDeploys) {
		seed = append(seed, domain.Account{
			ID:             account.ID,
			Credential:     account.Credential,
			TeamID:         account.TeamID,
			MaxDeployments: account.MaxDeployments,
			Active:         true,
		})
	}

	accountStore := store.New(cfg.StateFile, cfg.CredEncryptionKey, seed, log)
	accountStore.Load()
	if err := accountStore.Save(); err != nil {
		// Fail fast: running without a writable state file silently
		// loses quota tracking on every deployment.
		log.Error("state file not writable", "path", cfg.StateFile, "error", err)
		os.Exit(1)
	}

	providerClient := provider.New(
		cfg.ProviderAPIURL,
		cfg.DeployRequestTimeout,
		cfg.DeployPollInterval,
		cfg.DeployPollAttempts,
		log,
	)

	hub := ws.NewHub()
	deploySvc := orchestrator.New(accountStore, providerClient, hub, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, deploySvc, accountStore, hub, limiter, cfg)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "accounts", len(accountStore.Snapshot()))
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
