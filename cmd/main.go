/*
Package main is the entry point for the RTChat server.

It is responsible for loading configuration, initializing the global logging system and telemetry,
opening the storage tiers, starting the chat core, setting up the HTTP server, and gracefully
handling operating system interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtchat/internal/app/account"
	"rtchat/internal/app/chat"
	"rtchat/internal/app/db"
	"rtchat/internal/app/store"
	"rtchat/internal/configs"
	"rtchat/internal/handler"
	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/telemetry"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("storage_backend", cfg.StorageBackend).
		Dur("token_ttl", cfg.TokenTTL).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logx.Fatal(err, "Failed to set up telemetry")
	}

	st := store.NewTiered(openDurable(ctx, cfg), store.NewMemory(), cfg.PersistTimeout)

	// Initialize Chat Manager
	manager := chat.NewManager(st)
	if err := manager.Start(ctx); err != nil {
		logx.Fatal(err, "Failed to start chat core")
	}

	verifier := jwt.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	accounts := account.NewService(st, verifier)

	if cfg.SeedDemoUser {
		if err := accounts.SeedDemo(ctx); err != nil {
			logx.Error(err, "Failed to seed demo account")
		}
	}

	// Setup HTTP server and routes
	router, stopLimiters := handler.Router(&handler.AppDeps{
		Manager:  manager,
		Accounts: accounts,
		Verifier: verifier,
		Config:   cfg,
	})
	defer stopLimiters()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("RTChat Server starting on http://localhost%s", serverAddr), "storage", st.Name(), "durable", st.Durable())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	if err := st.Close(); err != nil {
		logx.Error(err, "Failed to close storage")
	}

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Failed to flush telemetry")
	}

	logx.Info("Server gracefully stopped.")
}

// openDurable opens the configured durable backend. When it cannot be opened the server
// keeps running on the in-memory tier alone.
func openDurable(ctx context.Context, cfg *configs.AppConfig) store.Backend {
	switch cfg.StorageBackend {
	case configs.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Error(err, "Database unavailable, running without database (in-memory storage only)")
			return nil
		}
		logx.Info("Connected to PostgreSQL")
		return store.NewPostgres(pool)

	case configs.BackendBadger:
		b, err := store.OpenBadger(cfg.BadgerPath)
		if err != nil {
			logx.Error(err, "Badger unavailable, running without database (in-memory storage only)")
			return nil
		}
		logx.Info("Opened Badger store", "path", cfg.BadgerPath)
		return b

	default:
		logx.Info("Running without database (in-memory storage only)")
		return nil
	}
}
