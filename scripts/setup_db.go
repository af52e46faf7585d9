package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/audit"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/postgres"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	"github.com/joho/godotenv"
)

const tableExistsSQL = `SELECT EXISTS (
	SELECT FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
)`

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatalf("DATABASE_URL must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("=== Setting Up Database ===")

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	fmt.Println("Connected to database")

	if err := store.NewPostgresBlobs(pool).EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to create document table: %v", err)
	}
	if err := audit.NewLogger(pool).EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to create audit table: %v", err)
	}

	fmt.Println("=== Verifying Tables ===")
	for _, table := range []string{"folder_permission_documents", "sync_runs"} {
		var exists bool
		if err := pool.QueryRow(ctx, tableExistsSQL, table).Scan(&exists); err != nil {
			fmt.Printf("Error checking table '%s': %v\n", table, err)
			continue
		}
		if exists {
			fmt.Printf("Table '%s' ready\n", table)
		} else {
			fmt.Printf("Table '%s' NOT created\n", table)
		}
	}

	fmt.Println("=== Database Setup Complete ===")
	fmt.Println("Next: set STORE_BACKEND=postgres and run 'go run ./cmd/accadmin'")
}
