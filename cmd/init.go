package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the numbers if the store is empty",
		Long:  "init creates total_numbers unclaimed numbers. Running it against a store that already holds numbers changes nothing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			created, err := app.service.Initialize(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize numbers: %w", err)
			}

			if !created {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Numbers already initialized; nothing changed.")
				return nil
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %d numbers.\n", app.service.Total())
			return nil
		},
	}
}
