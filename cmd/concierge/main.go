// Concierge is a conversational agent for the Evolyn account database.
//
// It exposes an HTTP chat API backed by an LLM with database tools for
// account lookups, facility lookups, and note keeping, plus an
// interactive terminal chat for local use. Configuration is loaded from
// a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	concierge serve              Start the API server
//	concierge chat               Interactive terminal chat
//	concierge seed <file.json>   Load mock data into the database
//	concierge version            Print version and build information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/evolyn/concierge/internal/agent"
	"github.com/evolyn/concierge/internal/buildinfo"
	"github.com/evolyn/concierge/internal/config"
	"github.com/evolyn/concierge/internal/conversation"
	"github.com/evolyn/concierge/internal/llm"
	"github.com/evolyn/concierge/internal/store"
	"github.com/evolyn/concierge/internal/web"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	_ "github.com/mattn/go-sqlite3"    // SQLite driver for database/sql
)

const shutdownTimeout = 10 * time.Second

// main is intentionally minimal. It constructs the OS-level environment
// and delegates immediately to [run], keeping os.Exit, os.Stdout, and
// os.Args out of the application logic so the lifecycle can be driven
// from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which interferes with
// calling run() concurrently from tests, and the argument surface here
// is small.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag %q (try -h)", args[i])
			}
		}
	}

	switch command {
	case "", "serve":
		return runServe(ctx, stdout, configPath)
	case "chat":
		return runChat(ctx, stdout, configPath)
	case "seed":
		return runSeed(stdout, configPath, cmdArgs)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	default:
		return fmt.Errorf("unknown command %q (try -h)", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintf(w, `concierge - conversational agent for the Evolyn database

Usage:
  concierge [flags] <command> [args]

Commands:
  serve              Start the API server (default)
  chat               Interactive terminal chat
  seed <file.json>   Load mock data into the database
  version            Print version and build information

Flags:
  -config <path>     Config file (default: auto-discovered)
  -h                 Show this help
`)
	return nil
}

// bootstrap loads configuration and constructs the shared service
// graph used by serve and chat.
func bootstrap(stdout io.Writer, configPath string) (*config.Config, *slog.Logger, *agent.Orchestrator, *store.Store, error) {
	configPath, err := config.FindConfig(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "version", buildinfo.Version, "config", configPath)

	recordStore, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	convos, err := conversation.NewStore(recordStore.DB(), recordStore.Driver())
	if err != nil {
		recordStore.Close()
		return nil, nil, nil, nil, fmt.Errorf("open conversation store: %w", err)
	}

	var client llm.Client
	switch cfg.LLM.Provider {
	case "openai":
		client = llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, logger)
	case "ollama":
		client = llm.NewOllamaClient(cfg.LLM.BaseURL, logger)
	default:
		recordStore.Close()
		return nil, nil, nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	orchestrator := agent.New(logger, client, cfg.LLM.Model, cfg.LLM.MaxIterations, recordStore, convos)
	return cfg, logger, orchestrator, recordStore, nil
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, logger, orchestrator, recordStore, err := bootstrap(stdout, configPath)
	if err != nil {
		return err
	}
	defer recordStore.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(cfg.Listen.Address, cfg.Listen.Port, orchestrator, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
