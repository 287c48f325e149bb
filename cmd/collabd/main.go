package main

import (
	"collab-lab/contract"
	"collab-lab/infrastructure/httpapi"
	"collab-lab/infrastructure/ws"
	"collab-lab/internal"
	"collab-lab/moderation"
	"collab-lab/repositories"
	"collab-lab/runtime"
	"collab-lab/runtime/workers"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "collabd terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle, so that deferred
// cleanups always execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Snapshot archive
	archive, err := openSnapshotStore(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing snapshot archive...")
		_ = archive.Close()
	}()

	// 3. Chat moderation
	var filter contract.ChatFilter = moderation.NewChatFilter(nil, logger)
	if config.ModerationEnabled {
		charReplacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return exitConfig, err
		}
		if filter, err = moderation.NewDefaultChatFilter(charReplacement, logger); err != nil {
			return exitRuntime, fmt.Errorf("moderation init failed: %w", err)
		}
	}

	// 4. Supervision & registry
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry(logger, sup, archive, filter, runtime.RegistryOptions{
		CommandBufferSize: config.CommandBufferSize,
		Strict:            config.Strict,
		ArchiveTimeout:    config.WriteTimeout,
	})
	sup.Add(
		workers.NewIdleSweepWorker(logger, registry, config.SweepInterval, config.IdleThreshold),
		workers.NewHeartbeatWorker(logger, config.HeartbeatInterval),
	)

	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP server
	gateway := ws.NewGateway(logger, registry, ws.Options{
		KeepaliveInterval: config.KeepaliveInterval,
		MissedPongLimit:   config.MissedPongLimit,
		BufferSize:        config.ConnectionBufferSize,
		WriteTimeout:      config.WriteTimeout,
		MaxMessageSize:    int64(config.MaxMessageSize),
		AllowedOrigins:    config.Origins(),
	})
	api := httpapi.NewServer(logger, registry, gateway, archive)
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting collaboration server", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		sup.Stop()
		<-supervisorDone
		return exitRuntime, err
	}

	// 7. Graceful shutdown: stop accepting requests, then let every session
	// worker close its connections and archive its document.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	select {
	case <-supervisorDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers did not stop before the shutdown timeout")
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func openSnapshotStore(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.SnapshotStore, error) {
	switch config.SnapshotBackend {
	case internal.SnapshotPostgres:
		repository, err := repositories.NewPostgresSnapshotRepository(ctx, config.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Snapshots archived in Postgres")
		return repository, nil
	case internal.SnapshotNone:
		logger.Info("Snapshot archive disabled")
		return repositories.NoopSnapshotRepository{}, nil
	default:
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		logger.Info("Snapshots archived in BadgerDB", "path", config.BadgerFilepath)
		return badgerStore{SnapshotRepository: repositories.NewSnapshotRepository(db, logger), db: db}, nil
	}
}

// badgerStore closes the database it was opened with.
type badgerStore struct {
	repositories.SnapshotRepository
	db *badger.DB
}

func (s badgerStore) Close() error {
	return s.db.Close()
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
