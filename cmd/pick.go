package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

var errQuit = errors.New("quit")

func newPickCmd(open appOpener) *cobra.Command {
	var (
		name    string
		columns int
	)

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick a free number interactively",
		Long:  "pick shows the live board, asks for a number and a name, and claims it after you confirm. The board refreshes as other people claim numbers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := open(cmd, false)
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

			session := application.NewClientSession(app.service, h, app.logger.Named("session"))
			if err := session.Start(ctx); err != nil {
				return err
			}
			defer session.Close()

			select {
			case <-session.Updates():
			case <-ctx.Done():
				return ctx.Err()
			}

			p := &picker{
				cmd:     cmd,
				app:     app,
				session: session,
				input:   bufio.NewReader(cmd.InOrStdin()),
				name:    strings.TrimSpace(name),
				columns: columns,
			}
			err = p.run(ctx)
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name to claim under (asked for when empty)")
	cmd.Flags().IntVar(&columns, "columns", 0, "Numbers per board row")

	return cmd
}

type picker struct {
	cmd     *cobra.Command
	app     *app
	session *application.ClientSession
	input   *bufio.Reader
	name    string
	columns int
}

func (p *picker) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snapshot := p.session.Snapshot()
		if err := p.showBoard(snapshot, 0); err != nil {
			return err
		}
		if snapshot.AvailableCount() == 0 {
			p.println("All numbers are taken.")
			return nil
		}

		answer, err := p.prompt("Pick a number (q to quit): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(answer, "q") {
			return errQuit
		}

		id, err := parseSlotID(answer)
		if err != nil {
			p.println(err.Error())
			continue
		}
		if err := p.session.Select(id); err != nil {
			if errors.Is(err, domain.ErrSlotNotFound) {
				p.printf("Number %d does not exist.\n", id)
			} else {
				p.printf("Number %d is not available.\n", id)
			}
			continue
		}

		done, err := p.confirm(ctx, id)
		if err != nil || done {
			return err
		}
	}
}

// confirm walks a selected number through naming and confirmation. It
// reports done once a claim commits.
func (p *picker) confirm(ctx context.Context, id domain.SlotID) (bool, error) {
	if err := p.showBoard(p.session.Snapshot(), id); err != nil {
		_ = p.session.Cancel()
		return false, err
	}

	name := p.name
	if name == "" {
		var err error
		name, err = p.prompt("Your name: ")
		if err != nil {
			_ = p.session.Cancel()
			return false, err
		}
	}
	if err := p.session.EditName(name); err != nil {
		return false, err
	}

	answer, err := p.prompt(fmt.Sprintf("Claim number %d as %s? [y/N]: ", id, board.SanitizeForTerminal(name)))
	if err != nil {
		_ = p.session.Cancel()
		return false, err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		_ = p.session.Cancel()
		p.println("Cancelled.")
		return false, nil
	}

	slot, err := p.session.Confirm(ctx)
	if err == nil {
		p.printf("Number %d is yours, %s.\n", slot.ID, board.SanitizeForTerminal(slot.TakenBy))
		return true, nil
	}

	p.println(describeClaimError(id, err).Error())
	if p.session.State() != application.StateIdle {
		_ = p.session.Cancel()
	}
	return false, nil
}

// showBoard draws the board. A non-zero selected number is highlighted.
func (p *picker) showBoard(snapshot domain.Snapshot, selected domain.SlotID) error {
	rendered, err := p.app.boardRenderer(application.Summarize(snapshot), board.RenderOptions{
		Columns:  p.columns,
		Selected: selected,
	})
	if err != nil {
		return fmt.Errorf("render board: %w", err)
	}
	p.println(rendered)
	return nil
}

// prompt returns the trimmed line. End of input with nothing typed quits.
func (p *picker) prompt(label string) (string, error) {
	_, _ = fmt.Fprint(p.cmd.OutOrStdout(), label)

	line, err := p.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if errors.Is(err, io.EOF) && line == "" {
		_, _ = fmt.Fprintln(p.cmd.OutOrStdout())
		return "", errQuit
	}

	return line, nil
}

func (p *picker) println(line string) {
	_, _ = fmt.Fprintln(p.cmd.OutOrStdout(), line)
}

func (p *picker) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.cmd.OutOrStdout(), format, args...)
}
