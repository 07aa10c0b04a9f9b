package main

import (
	"chat-client/domain"
	"chat-client/infrastructure/api"
	"chat-client/infrastructure/realtime"
	"chat-client/internal"
	"chat-client/repositories"
	"chat-client/runtime"
	"chat-client/services"
	"chat-client/ui/cli"
	"chat-client/ui/tui"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

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

	logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return exitConfig, fmt.Errorf("log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	log := fileLogger(config.LogLevel, logFile)

	// 2. Session store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING).
		WithLogger(nil))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Wiring
	httpAPI := api.NewClient(config.APIURL, config.HTTPTimeout, log)
	transport := realtime.NewTransport(config.Transport(), log)
	defer transport.Disconnect()
	repository := repositories.NewSessionRepository(db, log)
	page := domain.Page{Number: 1, Limit: config.PageLimit}

	client := runtime.NewClient(
		ctx,
		services.NewAuthService(httpAPI, repository, transport, log, config.HTTPTimeout),
		services.NewDirectoryService(httpAPI, transport, log, config.HTTPTimeout),
		services.NewConversationService(httpAPI, transport, log, config.HTTPTimeout, page),
		transport,
		log,
	)

	// 5. Presenter
	log.Info("Starting chat client", "presenter", config.Presenter, "api", config.APIURL, "ws", config.WSURL)
	var program *tea.Program
	switch config.Presenter {
	case internal.PresenterCLI:
		program = tea.NewProgram(cli.New(client, os.Stdout),
			tea.WithContext(ctx), tea.WithInput(nil), tea.WithoutRenderer())
		go func() {
			if err := cli.ReadLines(os.Stdin, program.Send); err != nil {
				log.Warn("Input closed", "error", err)
			}
		}()
	default:
		program = tea.NewProgram(tui.New(client), tea.WithContext(ctx), tea.WithAltScreen())
	}

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return exitRuntime, fmt.Errorf("presenter failed: %w", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

// fileLogger builds the sdk-go logger with its output sent to w.
// The handler binds to the standard streams when it is created, so they are swapped meanwhile.
func fileLogger(level string, w *os.File) *slog.Logger {
	stdout, stderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = w, w
	defer func() { os.Stdout, os.Stderr = stdout, stderr }()
	return logs.GetLoggerFromString(level)
}
