package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kdl-rgb/bytells/internal/config"
	"github.com/kdl-rgb/bytells/internal/fleet"
	fleetpostgres "github.com/kdl-rgb/bytells/internal/fleet/postgres"
)

func main() {
	size := flag.Int("size", 0, "number of operations to generate; 0 uses BYTELLS_DATASET_SIZE")
	seed := flag.Int64("seed", 0, "generator seed; 0 uses BYTELLS_DATASET_SEED")
	replace := flag.Bool("replace", false, "delete existing operations before inserting")
	flag.Parse()

	cfg, err := config.LoadFromEnv("bytells-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Dataset.DSN == "" {
		fmt.Fprintln(os.Stderr, "BYTELLS_DATASET_DSN is required")
		os.Exit(1)
	}
	if *size <= 0 {
		*size = cfg.Dataset.Size
	}
	if *seed == 0 {
		*seed = cfg.Dataset.Seed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := fleetpostgres.Open(ctx, fleetpostgres.ConfigFrom(cfg.Dataset))
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store := fleetpostgres.NewStore(db)
	ds := fleet.Generate(*seed, *size, time.Now().UTC())
	inserted, err := store.Seed(ctx, ds, fleetpostgres.SeedOptions{Replace: *replace})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	total, err := store.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("inserted %d operation(s); %d total\n", inserted, total)
}
