package main

import (
	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/tubeboard-api/internal/config"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

func newCostsCommand(ctx *commandContext) *cobra.Command {
	var byProject bool

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show the cost ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *state.Store, _ *config.Config) error {
				rate := store.Preferences().ExchangeRate
				if byProject {
					spend := store.CostByProject()
					if ctx.jsonOutput {
						return writeJSON(cmd, spend)
					}
					return writeTable(cmd,
						[]string{"Project", "Cost"},
						projectCostRows(spend, rate),
						[]columnAlignment{alignLeft, alignRight},
						[]string{"Total", pricing.FormatDual(store.TotalCost(), rate)},
					)
				}

				entries := store.CostHistory()
				if ctx.jsonOutput {
					return writeJSON(cmd, entries)
				}
				return writeTable(cmd,
					[]string{"Time", "Project", "Type", "Model", "Input", "Output", "Cost"},
					costRows(entries, rate),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
					[]string{"", "", "", "", "", "Total", pricing.FormatDual(store.TotalCost(), rate)},
				)
			})
		},
	}

	cmd.Flags().BoolVar(&byProject, "by-project", false, "Group spend by project name")
	return cmd
}

func costRows(entries []models.CostEntry, rate float64) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.ProjectName,
			string(e.Type),
			e.Model,
			pricing.FormatTokens(e.Tokens.Input),
			pricing.FormatTokens(e.Tokens.Output),
			pricing.FormatDual(e.Cost, rate),
		})
	}
	return rows
}

func projectCostRows(spend []models.ProjectCost, rate float64) [][]string {
	rows := make([][]string, 0, len(spend))
	for _, p := range spend {
		rows = append(rows, []string{p.ProjectName, pricing.FormatDual(p.Cost, rate)})
	}
	return rows
}
