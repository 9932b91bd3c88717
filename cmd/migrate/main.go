package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vaultkeep/vaultkeep/internal/infra"
	"github.com/vaultkeep/vaultkeep/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down>")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  DATABASE_URL    - Postgres connection string (required)")
		fmt.Println("  MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL"), Format: "text", Service: "vaultkeep-migrate"})

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	migrator, err := infra.OpenMigrator(os.Getenv("DATABASE_URL"), dir, logger)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer migrator.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up' or 'down')\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		logger.Error("migrate "+os.Args[1], "error", err)
		os.Exit(1)
	}
}
