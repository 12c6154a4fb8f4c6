package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/domain"
)

func newClaimCmd(open appOpener) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "claim <number>",
		Short: "Claim a number under your name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSlotID(args[0])
			if err != nil {
				return err
			}

			app, err := open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			slot, err := runClaimProgress(cmd.Context(), cmd.ErrOrStderr(), id, name, func(ctx context.Context) (domain.Slot, error) {
				return app.service.TryClaim(ctx, id, name)
			})
			if err != nil {
				return describeClaimError(id, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Number %d is yours, %s.\n", slot.ID, board.SanitizeForTerminal(slot.TakenBy))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name to claim the number under")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func parseSlotID(raw string) (domain.SlotID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", strings.TrimSpace(raw))
	}
	return domain.SlotID(n), nil
}

// describeClaimError keeps the sentinel in the chain so callers can still
// match on it.
func describeClaimError(id domain.SlotID, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		return fmt.Errorf("a name is required to claim number %d: %w", id, err)
	case errors.Is(err, domain.ErrAlreadyTaken):
		return fmt.Errorf("number %d is already taken: %w", id, err)
	case errors.Is(err, domain.ErrConflict):
		return fmt.Errorf("someone else claimed number %d first: %w", id, err)
	case errors.Is(err, domain.ErrSlotNotFound):
		return fmt.Errorf("number %d does not exist: %w", id, err)
	case errors.Is(err, domain.ErrNotInitialized):
		return fmt.Errorf("no numbers yet, run `numsel init` first: %w", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fmt.Errorf("store unavailable, try again: %w", err)
	default:
		return fmt.Errorf("claim number %d: %w", id, err)
	}
}
