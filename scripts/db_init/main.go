package main

import (
	"context"
	"fmt"
	"os"

	dbfs "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/config"
	"github.com/garnizeh/folio/internal/db"
	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/repository/sqlite"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	raw, err := dbfs.PortfolioSeed()
	if cfg.Data.FixturePath != "" {
		raw, err = os.ReadFile(cfg.Data.FixturePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	ds, err := fixtures.Load(ctx, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	n, err := sqlite.New(database, nil).Seed(ctx, ds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database initialized successfully (%d records seeded).\n", n)
}
