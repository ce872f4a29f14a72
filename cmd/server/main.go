package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch-chat/auth"
	"dispatch-chat/directory"
	"dispatch-chat/httpapi"
	"dispatch-chat/internal"
	"dispatch-chat/observability"
	"dispatch-chat/repositories"
	"dispatch-chat/runtime"
	"dispatch-chat/runtime/workers"
	"dispatch-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Engine
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()
	roomRepository := repositories.NewRoomRepository(db, log)

	supervisor := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, db, messageRepository, roomRepository,
		supervisor, registry, config.BufferSize, config.ConnectionBufferSize, config.SinkTimeout)

	monitor := observability.NewMonitor(log,
		messageRepository.SkippedRecords, roomRepository.SkippedRecords)
	orchestrator.AddSinks(monitor)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator.Start(ctx)

	// 5. External collaborators & Services
	drivers := directory.NewCachedDirectory(
		directory.NewHTTPDirectory(config.DirectoryBaseURL, config.DirectoryTimeout),
		config.DirectoryCacheTTL,
	)
	chatService := services.NewChatService(orchestrator)
	conversationService := services.NewConversationService(log, roomRepository, messageRepository, drivers)
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)

	// 6. HTTP Server
	api := httpapi.NewAPI(log, chatService, conversationService, monitor, tokens)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: api.Router()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
