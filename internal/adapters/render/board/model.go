package board

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

var ErrUnexpectedBoardModel = errors.New("unexpected final board model type")

type selection int

const (
	selectionNone selection = iota
	selectionHeld
	selectionLost
)

// boardMsg delivers the summary the board is drawn from.
type boardMsg struct {
	summary application.Summary
}

// boardModel keeps the highlighted number only while it is still free in the
// summary it draws. A number taken in the meantime is reported instead.
type boardModel struct {
	summary   application.Summary
	opts      RenderOptions
	styles    styles
	selection selection
	frame     string
}

func newBoardModel(summary application.Summary, opts RenderOptions) boardModel {
	return boardModel{summary: summary, opts: opts, styles: newStyles()}
}

func (m boardModel) Init() tea.Cmd {
	summary := m.summary
	return func() tea.Msg { return boardMsg{summary: summary} }
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	draw, ok := msg.(boardMsg)
	if !ok {
		return m, nil
	}

	m.summary = draw.summary
	opts := m.opts
	m.selection = resolveSelection(draw.summary, opts.Selected)
	if m.selection != selectionHeld {
		opts.Selected = 0
	}

	m.frame = renderView(draw.summary, opts, m.styles)
	if note := m.selectionNote(); note != "" {
		m.frame = lipgloss.JoinVertical(lipgloss.Left, m.frame, note)
	}

	return m, tea.Quit
}

func (m boardModel) View() string {
	return m.frame
}

func (m boardModel) selectionNote() string {
	switch m.selection {
	case selectionHeld:
		return m.styles.section.Render(m.styles.selected.Render(fmt.Sprintf("selected: #%d", m.opts.Selected)))
	case selectionLost:
		return m.styles.section.Render(m.styles.empty.Render(fmt.Sprintf("number %d is no longer available", m.opts.Selected)))
	default:
		return ""
	}
}

func resolveSelection(summary application.Summary, id domain.SlotID) selection {
	if id == 0 {
		return selectionNone
	}
	for _, slot := range summary.Numbers {
		if slot.ID == id && !slot.IsTaken {
			return selectionHeld
		}
	}
	return selectionLost
}

// Render draws the board once and returns it as a string.
func Render(summary application.Summary, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newBoardModel(summary, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	drawn, ok := finalModel.(boardModel)
	if !ok {
		return "", ErrUnexpectedBoardModel
	}

	return drawn.View(), nil
}
