// Command blm-migrate applies, rolls back, or reports the state of the
// State Store Gateway's embedded schema migrations without starting the
// full control plane. Deployments that run migrations as a separate job
// (init container, CI step) use this instead of the blm binary's
// migrate-on-boot behavior.
package main

import (
	stdsql "database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

func main() {
	configDir := flag.String("config-dir", os.Getenv("CONFIG_DIR"), "Optional directory containing a .env file")
	flag.Parse()

	if *configDir != "" {
		envPath := filepath.Join(*configDir, ".env")
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: could not load %s: %v", envPath, err)
		}
	}

	storeURL := os.Getenv("STORE_URL")
	if storeURL == "" {
		log.Fatal("STORE_URL is required")
	}

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	db, err := stdsql.Open("pgx", storeURL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	m, err := store.NewMigrator(db)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied yet")
			return
		}
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
	default:
		log.Fatalf("Unknown command %q (expected up, down, or version)", command)
	}
}
