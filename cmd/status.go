package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/application"
)

func newStatusCmd(open appOpener) *cobra.Command {
	var (
		asJSON    bool
		columns   int
		countOnly bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the board, counts and participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			snapshot, err := app.service.Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("read numbers: %w", err)
			}

			return writeSummaryOutput(cmd, app, application.Summarize(snapshot), board.RenderOptions{
				Columns:   columns,
				HideBoard: countOnly,
			}, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")
	cmd.Flags().IntVar(&columns, "columns", 0, "Numbers per board row")
	cmd.Flags().BoolVar(&countOnly, "no-board", false, "Print counts and participants only")

	return cmd
}

func writeSummaryOutput(cmd *cobra.Command, app *app, summary application.Summary, opts board.RenderOptions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	rendered, err := app.boardRenderer(summary, opts)
	if err != nil {
		return fmt.Errorf("render board: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
