// Command migrate runs the embedded goose migrations against DATABASE_URL.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-iap-wallet/internal/repo"
	"github.com/tbourn/go-iap-wallet/internal/sysutil"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}
	_ = godotenv.Load()
	sysutil.SetupLogger(os.Stderr, os.Getenv("LOG_LEVEL"), true)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL environment variable is required")
	}
	db, err := repo.OpenPostgres(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	command, args := os.Args[1], os.Args[2:]
	if err := repo.RunMigrations(context.Background(), db, command, args...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
}
