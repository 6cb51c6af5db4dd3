package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ipocket/ipocket/internal/backup"
	"github.com/ipocket/ipocket/internal/config"
	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/seed"
	"github.com/ipocket/ipocket/internal/store"
)

// runBackup archives the database to a tar.gz file. Run it with the
// server stopped so the SQLite file is quiescent.
func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	output := fs.String("output", "", "output archive path (default: ipocket-backup-<date>.tar.gz)")
	_ = fs.Parse(args)

	v, err := config.Load(*configPath)
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}
	dbPath := v.GetString("database.path")

	archivePath := *output
	if archivePath == "" {
		archivePath = fmt.Sprintf("ipocket-backup-%s.tar.gz", time.Now().UTC().Format("2006-01-02"))
	}

	if err := backup.Create(context.Background(), dbPath, archivePath); err != nil {
		fatalf("backup failed: %v", err)
	}
	fmt.Printf("Backup written to %s\n", archivePath)
}

// runRestore extracts a backup archive into a target directory.
func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	input := fs.String("input", "", "backup archive path (required)")
	target := fs.String("target", ".", "directory to restore into")
	force := fs.Bool("force", false, "overwrite existing files")
	_ = fs.Parse(args)

	if *input == "" {
		fatalf("-input is required")
	}
	if err := backup.Restore(context.Background(), *input, *target, *force); err != nil {
		fatalf("restore failed: %v", err)
	}
	fmt.Printf("Backup restored to %s\n", *target)
}

// runSeed loads the demo inventory into the configured database.
func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	v, err := config.Load(*configPath)
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}

	db, err := store.New(v.GetString("database.path"))
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx, "inventory", inventory.Migrations()); err != nil {
		fatalf("migrations failed: %v", err)
	}
	if err := seed.Demo(ctx, inventory.NewStore(db.DB())); err != nil {
		fatalf("seed failed: %v", err)
	}
	fmt.Println("Demo inventory seeded")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
