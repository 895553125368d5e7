package main

import (
	"fmt"
	"os"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/spf13/cobra"
)

var (
	dbURLFlag    string
	migrateSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(database *db.DB) error {
			if err := database.MigrateUp(); err != nil {
				return err
			}
			return printVersion(cmd, database)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(database *db.DB) error {
			if err := database.MigrateDown(migrateSteps); err != nil {
				return err
			}
			return printVersion(cmd, database)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(database *db.DB) error {
			return printVersion(cmd, database)
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&dbURLFlag, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back (0 for all)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func databaseURL(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("database URL is required: set --db-url or DATABASE_URL")
}

func withDatabase(cmd *cobra.Command, fn func(*db.DB) error) error {
	url, err := databaseURL(dbURLFlag)
	if err != nil {
		return err
	}
	database, err := db.Connect(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

func printVersion(cmd *cobra.Command, database *db.DB) error {
	version, dirty, err := database.MigrationVersion()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}
