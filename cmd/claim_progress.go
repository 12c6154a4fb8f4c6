package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/domain"
)

type claimOutcome int

const (
	claimPending claimOutcome = iota
	claimCommitted
	claimTaken
	claimConflict
	claimFailed
)

func outcomeOf(err error) claimOutcome {
	switch {
	case err == nil:
		return claimCommitted
	case errors.Is(err, domain.ErrAlreadyTaken):
		return claimTaken
	case errors.Is(err, domain.ErrConflict):
		return claimConflict
	default:
		return claimFailed
	}
}

type claimResultMsg struct {
	slot domain.Slot
	err  error
}

// claimProgressModel spins while one claim attempt runs and leaves a one-line
// verdict behind once it settles.
type claimProgressModel struct {
	spinner spinner.Model
	id      domain.SlotID
	name    string
	attempt tea.Cmd

	outcome claimOutcome
	slot    domain.Slot
	err     error

	won  lipgloss.Style
	lost lipgloss.Style
}

func newClaimProgressModel(id domain.SlotID, name string, attempt tea.Cmd) claimProgressModel {
	return claimProgressModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("214"))),
		),
		id:      id,
		name:    name,
		attempt: attempt,
		won:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		lost:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

func (m claimProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.attempt)
}

func (m claimProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case claimResultMsg:
		m.slot = msg.slot
		m.err = msg.err
		m.outcome = outcomeOf(msg.err)
		return m, tea.Quit
	case spinner.TickMsg:
		if m.outcome != claimPending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m claimProgressModel) View() string {
	switch m.outcome {
	case claimPending:
		return fmt.Sprintf("%s Claiming number %d for %s...", m.spinner.View(), m.id, board.SanitizeForTerminal(m.name))
	case claimCommitted:
		return m.won.Render(fmt.Sprintf("✓ number %d claimed", m.slot.ID)) + "\n"
	case claimTaken:
		return m.lost.Render(fmt.Sprintf("✗ number %d is already taken", m.id)) + "\n"
	case claimConflict:
		return m.lost.Render(fmt.Sprintf("✗ number %d went to someone else first", m.id)) + "\n"
	default:
		// The returned error is reported by the caller.
		return ""
	}
}

// runClaimProgress shows progress on output while attempt runs and returns
// the attempt's result.
func runClaimProgress(ctx context.Context, output io.Writer, id domain.SlotID, name string, attempt func(context.Context) (domain.Slot, error)) (domain.Slot, error) {
	attemptCmd := func() tea.Msg {
		slot, err := attempt(ctx)
		return claimResultMsg{slot: slot, err: err}
	}

	p := tea.NewProgram(
		newClaimProgressModel(id, name, attemptCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return domain.Slot{}, err
	}

	result, ok := finalModel.(claimProgressModel)
	if !ok {
		return domain.Slot{}, fmt.Errorf("unexpected final claim model type %T", finalModel)
	}

	return result.slot, result.err
}
