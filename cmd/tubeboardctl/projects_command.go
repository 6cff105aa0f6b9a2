package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/tubeboard-api/internal/config"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List or delete projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *state.Store, _ *config.Config) error {
				projects := store.Projects()
				if ctx.jsonOutput {
					return writeJSON(cmd, projects)
				}
				return writeTable(cmd,
					[]string{"ID", "Name", "Video", "Generations", "Messages", "Created"},
					projectRows(projects),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
					nil,
				)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project (its ledger entries are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *state.Store, _ *config.Config) error {
				if err := store.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
				return err
			})
		},
	})

	return cmd
}

func projectRows(projects []models.Project) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.VideoURL,
			strconv.Itoa(len(p.Generations)),
			strconv.Itoa(len(p.ChatHistory)),
			p.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}
