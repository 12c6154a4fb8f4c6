package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

func newWatchCmd(open appOpener) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a summary line every time the numbers change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if err := app.ensureInitialized(ctx); err != nil {
				return err
			}

			h := app.newHub()
			if err := h.Start(ctx); err != nil {
				return fmt.Errorf("start sync: %w", err)
			}
			defer h.Close()

			var (
				delivered int
				once      sync.Once
				done      = make(chan struct{})
			)
			out := cmd.OutOrStdout()
			sub, err := h.Subscribe(ctx, func(snapshot domain.Snapshot) {
				if count > 0 && delivered >= count {
					return
				}
				writeSummaryLine(out, application.Summarize(snapshot))
				delivered++
				if count > 0 && delivered >= count {
					once.Do(func() { close(done) })
				}
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer sub.Unsubscribe()

			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many updates (0 runs until interrupted)")

	return cmd
}

func writeSummaryLine(out io.Writer, summary application.Summary) {
	claims := make([]string, 0, len(summary.Participants))
	for _, slot := range summary.Participants {
		claims = append(claims, fmt.Sprintf("#%d %s", slot.ID, board.SanitizeForTerminal(slot.TakenBy)))
	}

	line := fmt.Sprintf("available=%d taken=%d total=%d", summary.Available, summary.Taken, summary.Total)
	if len(claims) > 0 {
		line += " participants=" + strings.Join(claims, ", ")
	}
	_, _ = fmt.Fprintln(out, line)
}
