package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included) runs
// before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Releases the database lock and flushes buffers before returning.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core: store, registry, broadcaster, services
	store := repositories.NewMessageStore(db, logger)
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(registry, logger)
	roomService := services.NewRoomService(store, broadcaster, logger, config.MaxContentLength)

	// 4. Transports
	mux := http.NewServeMux()
	httpapi.NewHandler(roomService, logger).Register(mux)
	mux.Handle("GET /cable", ws.NewHandler(registry, roomService, config.ConnectionBufferSize, logger))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	// 5. Lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return exitRuntime, fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return exitRuntime, fmt.Errorf("shutdown failed: %w", err)
	}
	return exitOK, nil
}
