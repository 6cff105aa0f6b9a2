package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/tubeboard-api/internal/database"
)

func newDocumentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List the stored documents and their sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(func(db *database.DB) error {
				docs, err := db.Documents(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					type doc struct {
						Key       string `json:"key"`
						Bytes     int    `json:"bytes"`
						UpdatedAt string `json:"updated_at"`
					}
					out := make([]doc, 0, len(docs))
					for _, d := range docs {
						out = append(out, doc{Key: d.Key, Bytes: len(d.Value), UpdatedAt: d.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")})
					}
					return writeJSON(cmd, out)
				}

				rows := make([][]string, 0, len(docs))
				for _, d := range docs {
					rows = append(rows, []string{d.Key, strconv.Itoa(len(d.Value)), d.UpdatedAt.Local().Format("2006-01-02 15:04:05")})
				}
				return writeTable(cmd,
					[]string{"Key", "Bytes", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
					nil,
				)
			})
		},
	}
}
