package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/cli"
	"github.com/iudanet/offsync/internal/client/iocli"
	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/models"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// staticToken простейший TokenProvider: токен задаётся флагом или
// переменной окружения, ротация - забота внешней подсистемы
type staticToken string

func (t staticToken) AccessToken(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("no access token configured, use -token or OFFSYNC_TOKEN")
	}
	return string(t), nil
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "offsync-client.db", "Path to local database")
	userID := flag.String("user", os.Getenv("OFFSYNC_USER"), "User identity")
	token := flag.String("token", os.Getenv("OFFSYNC_TOKEN"), "Access token")
	tablesFlag := flag.String("tables", "tasks", "Comma-separated tables to sync")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	store, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	backend := api.NewClient(*serverURL, staticToken(*token))

	cfg := sync.Config{Tables: parseTables(*tablesFlag)}

	engine, err := sync.NewEngine(ctx, cfg, store, backend, *userID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create sync engine: %v\n", err)
		os.Exit(1)
	}

	c := cli.New(engine, iocli.NewStdio())

	var runErr error
	switch command {
	case "create":
		runErr = c.RunCreate(ctx, args[1:])
	case "set":
		runErr = c.RunSet(ctx, args[1:])
	case "incr", "increment":
		runErr = c.RunIncrement(ctx, args[1:])
	case "delete":
		runErr = c.RunDelete(ctx, args[1:])
	case "get":
		runErr = c.RunGet(ctx, args[1:])
	case "list":
		runErr = c.RunList(ctx, args[1:])
	case "status":
		runErr = c.RunStatus(ctx, args[1:])
	case "conflicts":
		runErr = c.RunConflicts(ctx, args[1:])
	case "sync":
		runErr = c.RunSync(ctx, args[1:])
	case "run":
		runErr = c.RunDaemon(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		cli.PrintUsage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// parseTables разбирает флаг -tables в политики таблиц.
// Политики конфликтов (исключённые поля, аддитивные поля) в CLI
// задаются значениями по умолчанию: пустая политика на таблицу.
func parseTables(raw string) []models.TableConfig {
	var tables []models.TableConfig
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tables = append(tables, models.TableConfig{Table: name})
	}
	return tables
}

func printVersion() {
	fmt.Printf("Offsync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
