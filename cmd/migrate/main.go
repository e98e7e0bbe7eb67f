package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/infrastructure/config"
	"github.com/paklog/inventory-service/internal/infrastructure/event"
	"github.com/paklog/inventory-service/internal/infrastructure/logger"
	"github.com/paklog/inventory-service/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command, rest := args[0], args[1:]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	path, err := resolveMigrationsPath(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}

	log.Info("migration tool started",
		zap.String("command", command),
		zap.String("migrations_path", path),
	)

	// create and list work offline; everything else needs the database
	switch command {
	case "create":
		runCreate(log, path, rest)
		return
	case "list":
		runList(log, path)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}
	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}
	case "step":
		n := intArg(log, rest, "Step count required. Usage: migrate step <n>")
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}
	case "goto":
		v := intArg(log, rest, "Version required. Usage: migrate goto <version>")
		if v < 0 {
			log.Fatal("Version must not be negative", zap.Int("value", v))
		}
		if err := m.GoTo(uint(v)); err != nil {
			log.Fatal("Migration goto failed", zap.Error(err))
		}
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
			return
		}
		log.Info("Current migration version",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
	case "force":
		v := intArg(log, rest, "Version required. Usage: migrate force <version>")
		log.Warn("Forcing migration version - use with caution!")
		if err := m.Force(v); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}
	case "drop":
		if !hasConfirmFlag(rest) {
			log.Fatal("Drop cancelled. Use 'migrate drop -confirm' to confirm.")
		}
		if err := m.Drop(); err != nil {
			log.Fatal("Drop failed", zap.Error(err))
		}
	case "events":
		runEventUpgrade(log, db, rest)
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// resolveMigrationsPath settles on an absolute migrations directory: the
// -path flag if given, then ./migrations, then the directory two levels
// above the binary (repo layout when run from bin/).
func resolveMigrationsPath(flagPath string) (string, error) {
	path := flagPath
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

func runCreate(log *zap.Logger, path string, args []string) {
	if len(args) < 1 {
		log.Fatal("Migration name required. Usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(path, args[0], description)
	if err != nil {
		log.Fatal("Failed to create migration", zap.Error(err))
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
}

func runList(log *zap.Logger, path string) {
	migrations, err := migration.ListMigrations(path)
	if err != nil {
		log.Fatal("Failed to list migrations", zap.Error(err))
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return
	}
	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
}

// runEventUpgrade rewrites stored outbox payloads for one event type to
// the current schema version. Without -apply it only reports the version
// histogram and what a run would change.
func runEventUpgrade(log *zap.Logger, db *sql.DB, args []string) {
	if len(args) < 1 {
		log.Fatal("Event type required. Usage: migrate events <event_type> [-apply]")
	}
	eventType := args[0]
	apply := hasFlag(args[1:], "apply")

	serializer := event.NewVersionedSerializer(log)
	event.RegisterAllEvents(serializer)
	migrator := event.NewEventMigrator(serializer, log)

	if err := migrator.ValidateUpgradeChain(eventType); err != nil {
		log.Fatal("Upgrade chain incomplete", zap.Error(err))
	}

	rows, err := db.Query(`SELECT id, payload FROM outbox_events WHERE event_type = $1`, eventType)
	if err != nil {
		log.Fatal("Failed to load outbox payloads", zap.Error(err))
	}
	defer rows.Close()

	var (
		ids      []string
		payloads [][]byte
	)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			log.Fatal("Failed to scan outbox row", zap.Error(err))
		}
		ids = append(ids, id)
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Failed to read outbox rows", zap.Error(err))
	}

	analysis, err := migrator.AnalyzePayloads(eventType, payloads)
	if err != nil {
		log.Fatal("Failed to analyze payloads", zap.Error(err))
	}
	log.Info("Outbox payload versions",
		zap.String("event_type", eventType),
		zap.Int("current_version", analysis.CurrentVersion),
		zap.Int("total", analysis.TotalEvents),
		zap.Int("up_to_date", analysis.UpToDate),
		zap.Int("needs_migration", analysis.NeedsMigration),
		zap.Any("by_version", analysis.VersionCounts),
	)
	if analysis.NeedsMigration == 0 {
		log.Info("Nothing to migrate")
		return
	}

	if !apply {
		result, err := migrator.MigratePayloads(context.Background(), eventType, payloads)
		if err != nil {
			log.Fatal("Dry run failed", zap.Error(err))
		}
		log.Info("Dry run complete (use -apply to write)",
			zap.Int("would_upgrade", result.Upgraded),
			zap.Int("would_fail", result.Failed),
			zap.Duration("took", result.Duration()),
		)
		for _, f := range result.FailedPayloads {
			log.Warn("Payload rejected by upgrade chain",
				zap.Int("version", f.Version),
				zap.String("error", f.Error),
			)
		}
		return
	}

	upgraded, failed := 0, 0
	for i, payload := range payloads {
		if serializer.GetEventVersion(payload) >= analysis.CurrentVersion {
			continue
		}
		next, version, err := serializer.UpgradePayloadOnly(eventType, payload)
		if err != nil {
			failed++
			log.Warn("Skipping payload", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		if _, err := db.Exec(
			`UPDATE outbox_events SET payload = $1, updated_at = now() WHERE id = $2`,
			next, ids[i],
		); err != nil {
			log.Fatal("Failed to write upgraded payload", zap.String("id", ids[i]), zap.Error(err))
		}
		upgraded++
		log.Debug("Payload upgraded", zap.String("id", ids[i]), zap.Int("to_version", version))
	}
	log.Info("Event payload migration complete",
		zap.String("event_type", eventType),
		zap.Int("upgraded", upgraded),
		zap.Int("failed", failed),
	)
}

func intArg(log *zap.Logger, args []string, usage string) int {
	if len(args) < 1 {
		log.Fatal(usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatal("Invalid number", zap.String("value", args[0]))
	}
	return n
}

func hasConfirmFlag(args []string) bool {
	return hasFlag(args, "confirm")
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "-"+name || arg == "--"+name {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Inventory Service Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  drop -confirm         Drop all database objects (DANGEROUS)
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations
  events <type> [-apply]  Upgrade stored outbox payloads for an event type
                          to the current schema version (dry run without -apply)

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  INVENTORY_DATABASE_HOST, INVENTORY_DATABASE_PORT, INVENTORY_DATABASE_USER,
  INVENTORY_DATABASE_PASSWORD, INVENTORY_DATABASE_DBNAME, INVENTORY_DATABASE_SSLMODE

Examples:
  # Apply all pending migrations
  migrate up

  # Roll back the last migration
  migrate step -1

  # Create a new migration
  migrate create add_serial_numbers_table "Track serialized units per SKU"

  # Check current version
  migrate version`)
}
