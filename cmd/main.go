package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/auth"
	"pairchat/infrastructure/http/server"
	"pairchat/internal"
	"pairchat/repositories"
	"pairchat/runtime/workers"
	"pairchat/services"

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
// centralizes error reporting, so every deferred cleanup executes before
// the process exits.
func run() error {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: .env file not found or could not be loaded: %v\n", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Membership store (SQLite)
	membershipDB, err := repositories.OpenMembershipDB(ctx, config.MembershipDBPath)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing membership store...")
		_ = membershipDB.Close()
	}()

	// 4. Stream store (BadgerDB)
	streamDB, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("stream store opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing stream store...")
		_ = streamDB.Close()
	}()

	// 5. Repositories & Services
	chatRepository := repositories.NewChatRepository(membershipDB, log)
	userRepository := repositories.NewUserRepository(membershipDB, log)
	messageRepository := repositories.NewMessageRepository(streamDB, log)
	defer func() { _ = messageRepository.Close() }()
	keySlotRepository := repositories.NewKeySlotRepository(streamDB, log)

	tokens := auth.NewTokenManager(config.AuthTokenSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(log,
		chatRepository, messageRepository, keySlotRepository,
		config.StorageTimeout, config.MaxContentLength, config.ReadPageSize)
	authService := services.NewAuthService(log, userRepository, tokens)

	// 6. Background retention sweeper under supervision
	supervisor := workers.NewSupervisor(log, config.RestartInterval).
		Add(workers.NewRetentionWorker(log,
			chatRepository, messageRepository, keySlotRepository,
			config.SweepInterval, config.MessageWindow))
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()

	// 7. HTTP server
	router := server.NewRouter(log, tokens,
		server.NewAuthHandler(log, authService),
		server.NewChatHandler(log, chatService))
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.InspectPort != nil {
		internal.StartInspectServer(streamDB, log, *config.InspectPort)
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return nil
}
