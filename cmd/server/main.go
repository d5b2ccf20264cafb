package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"

	"sealmax-messenger/auth"
	"sealmax-messenger/handlers"
	"sealmax-messenger/internal"
	"sealmax-messenger/observability"
	"sealmax-messenger/repositories"
	"sealmax-messenger/runtime"
	"sealmax-messenger/runtime/workers"
	"sealmax-messenger/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility
	// is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup,
// sequence release) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = userRepository.Close() }()

	// 3. Live pipeline: registry, router worker, supervision
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	registry := runtime.NewRegistry()
	router := runtime.NewRouterWorker(logger, registry, messageRepository, metrics, config.CommandBufferSize)
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(router)

	// 4. Services & HTTP surface
	tokens := auth.NewTokenManager([]byte(config.JWTSecret), config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(logger, router, messageRepository, userRepository)

	app := fiber.New(fiber.Config{AppName: "Sealmax Messenger"})
	handlers.SetupRoutes(app,
		handlers.NewAuthHandler(logger, authService),
		handlers.NewChatHandler(logger, chatService),
		handlers.NewWSHandler(logger, chatService, registry, tokens, metrics, config.ConnectionBufferSize),
		tokens,
		promRegistry,
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting message router...")
		supervisor.Run(ctx)
	}()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 7. Graceful shutdown: stop accepting connections, then drain the
	// router so in-flight messages finish their fan-out.
	logger.Info("Shutting down gracefully...")
	if err := app.Shutdown(); err != nil {
		logger.Warn("HTTP shutdown error", "error", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
