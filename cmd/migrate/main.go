// Command migrate applies, inspects and rolls back the gatehouse schema.
package main

import (
	"fmt"
	"os"
	"strconv"

	"gatehouse/internal/config"
	"gatehouse/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	var (
		cfg *config.Config
		db  *gorm.DB
	)

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Gatehouse schema migrations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.LoadConfig(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if db, err = database.Open(cfg); err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending SQL migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := database.RunMigrations(cmd.Context(), db); err != nil {
					return fmt.Errorf("sql migrations failed: %w", err)
				}
				cmd.Println("sql migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "auto",
			Short: "Run GORM AutoMigrate (non-production only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg.DBSchemaMode = database.SchemaModeAuto
				if err := database.ApplySchema(cmd.Context(), db, cfg); err != nil {
					return fmt.Errorf("auto schema apply failed: %w", err)
				}
				cmd.Println("automigrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema policy and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				status, err := database.GetSchemaStatus(cmd.Context(), db, cfg)
				if err != nil {
					return fmt.Errorf("schema status failed: %w", err)
				}
				cmd.Printf("driver=%s mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
					status.Driver, status.Mode, status.Env, status.RunSQL, status.RunAuto,
					len(status.AppliedVersions), len(status.PendingMigrations))
				for _, m := range status.PendingMigrations {
					cmd.Printf("pending: %s\n", m)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "down <version>",
			Short: "Roll back one migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := database.RollbackMigration(cmd.Context(), db, version); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				cmd.Printf("rolled back migration %d\n", version)
				return nil
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
