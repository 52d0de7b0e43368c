package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"lead_bot/internal/storage"
	"lead_bot/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the lead bot database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "./data/bot.db"), "path to sqlite database")

	gooseCmds := []struct {
		use, short string
		run        func(db *sql.DB, dir string) error
	}{
		{"up", "Migrate to the latest version", func(db *sql.DB, dir string) error { return goose.Up(db, dir) }},
		{"up-one", "Migrate one version up", func(db *sql.DB, dir string) error { return goose.UpByOne(db, dir) }},
		{"down", "Roll back one version", func(db *sql.DB, dir string) error { return goose.Down(db, dir) }},
		{"status", "Show migration status", func(db *sql.DB, dir string) error { return goose.Status(db, dir) }},
		{"version", "Show current version", func(db *sql.DB, dir string) error { return goose.Version(db, dir) }},
		{"reset", "Roll back all migrations", func(db *sql.DB, dir string) error { return goose.Reset(db, dir) }},
	}
	for _, gc := range gooseCmds {
		root.AddCommand(&cobra.Command{
			Use:   gc.use,
			Short: gc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(dbPath, func(db *sql.DB) error {
					if err := gc.run(db, "."); err != nil {
						return fmt.Errorf("%s: %w", cmd.Name(), err)
					}
					return nil
				})
			},
		})
	}

	root.AddCommand(pruneCmd(&dbPath))
	return root
}

func pruneCmd(dbPath *string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete delivered-post records older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := storage.NewSQLite(*dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.PruneNotified(context.Background(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d record(s) older than %s\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "retention period")
	return cmd
}

func withDB(path string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		return err
	}
	return fn(db)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
