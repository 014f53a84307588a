/*
Package main is the entry point for the signaling server.

It is responsible for loading configuration, initializing the global logging system,
opening the optional call-log database, starting the signaling hub, serving HTTP,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"signalhub/internal/app/calllog"
	"signalhub/internal/app/db"
	"signalhub/internal/app/signal"
	"signalhub/internal/configs"
	"signalhub/internal/handler"
	"signalhub/internal/pkg/logx"
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
		Dur("session_ttl", cfg.SessionTTL).
		Dur("ring_timeout", cfg.RingTimeout).
		Bool("call_log", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder calllog.Recorder = calllog.Nop{}
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to initialize call log database")
		}
		recorder = calllog.NewPostgres(pool)
	}

	hub := signal.NewHub(signal.Options{
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		RingTimeout:   cfg.RingTimeout,
		Recorder:      recorder,
	})
	go hub.Run()

	// Setup HTTP server and routes
	router := handler.Router(ctx, &handler.AppDeps{Hub: hub, Config: cfg})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Signal server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Hijacked websocket connections are not tracked by Shutdown; the hub closes them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Stop()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		logx.Warn("Hub did not stop before the shutdown deadline")
	}

	if err := recorder.Close(shutdownCtx); err != nil {
		logx.Error(err, "Failed to flush call log")
	}

	logx.Info("Server gracefully stopped.")
}
