package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/yourusername/complaint-tracker/internal/config"
	"github.com/yourusername/complaint-tracker/pkg/database"
)

var (
	configPath string
	sourceURL  string
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the complaint tracker database schema",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "path", "", "migrations source URL (defaults to database.migrations_path)")

	rootCmd.AddCommand(upCmd(), downCmd(), forceCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withMigrator opens a plain lib/pq connection and hands fn a migrator
func withMigrator(fn func(m *migrateV4.Migrate) error) error {
	dbCfg, err := config.LoadDatabase(configPath)
	if err != nil {
		return err
	}
	source := sourceURL
	if source == "" {
		source = dbCfg.MigrationsPath
	}

	db, err := sql.Open("postgres", dbCfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db, source)
	if err != nil {
		return err
	}
	return fn(m)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrateV4.ErrNoChange) {
		log.Println("[Migrate] no change")
		return nil
	}
	return err
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrateV4.Migrate) error {
				return ignoreNoChange(m.Up())
			})
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withMigrator(func(m *migrateV4.Migrate) error {
				return ignoreNoChange(m.Steps(-steps))
			})
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer, got %q", args[0])
			}
			return withMigrator(func(m *migrateV4.Migrate) error {
				if err := m.Force(version); err != nil {
					return fmt.Errorf("failed to force version %d: %w", version, err)
				}
				log.Printf("[Migrate] forced version %d", version)
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrateV4.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrateV4.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	}
}
