package board

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

const defaultColumns = 10

type RenderOptions struct {
	Columns int
	// Selected is highlighted on the board; zero means no selection.
	Selected domain.SlotID
	// HideBoard prints only counts and participants.
	HideBoard bool
}

func renderView(summary application.Summary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Number Selection"),
		s.header.Render(fmt.Sprintf("available: %d  taken: %d  total: %d", summary.Available, summary.Taken, summary.Total)),
	}

	if summary.Total == 0 {
		lines = append(lines, s.empty.Render("Numbers are not initialized yet. Run `numsel init`."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, renderProgressBar(summary.Available, summary.Total, 30, s))
	if !opts.HideBoard {
		lines = append(lines, s.section.Render(renderGrid(summary.Numbers, opts, s)))
	}
	lines = append(lines, s.section.Render(renderParticipants(summary.Participants, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderGrid(numbers []domain.Slot, opts RenderOptions, s styles) string {
	columns := opts.Columns
	if columns <= 0 {
		columns = defaultColumns
	}
	width := len(fmt.Sprint(len(numbers)))

	rows := make([]string, 0, len(numbers)/columns+1)
	cells := make([]string, 0, columns)
	for _, slot := range numbers {
		label := fmt.Sprintf("%*d", width, slot.ID)
		switch {
		case slot.ID == opts.Selected:
			cells = append(cells, s.selected.Render(label))
		case slot.IsTaken:
			cells = append(cells, s.taken.Render(label))
		default:
			cells = append(cells, s.free.Render(label))
		}

		if len(cells) == columns {
			rows = append(rows, strings.Join(cells, " "))
			cells = cells[:0]
		}
	}
	if len(cells) > 0 {
		rows = append(rows, strings.Join(cells, " "))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderParticipants(participants []domain.Slot, s styles) string {
	lines := []string{s.title.Render("Participants")}
	if len(participants) == 0 {
		lines = append(lines, s.empty.Render("Nobody has picked a number yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, slot := range participants {
		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.participant.Render(fmt.Sprintf("#%d", slot.ID)),
			" ",
			s.claimant.Render(SanitizeForTerminal(slot.TakenBy)),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProgressBar(available, total, width int, s styles) string {
	if width <= 0 || total <= 0 {
		return ""
	}

	fraction := float64(available) / float64(total)
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", empty)),
		s.barBracket.Render("]"),
	)
}

// SanitizeForTerminal drops control characters so a claimant name cannot
// move the cursor or recolor the terminal.
func SanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f) {
			return -1
		}
		return r
	}, value)
}
