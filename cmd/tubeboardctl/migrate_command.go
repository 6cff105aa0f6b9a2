package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/tubeboard-api/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(func(db *database.DB) error {
				if err := db.RunMigrations(); err != nil {
					return err
				}
				return printVersion(cmd, db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(func(db *database.DB) error {
				return printVersion(cmd, db)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, db *database.DB) error {
	version, dirty, err := db.MigrationVersion()
	if err != nil {
		return err
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d%s\n", db.Driver(), version, suffix)
	return err
}
