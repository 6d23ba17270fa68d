// internal/display/terminal.go
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tamzrod/mattebox/internal/filter"
)

// FullRefreshEvery is the number of partial updates between full clears,
// matching the e-paper ghosting limit.
const FullRefreshEvery = 5

// splitAt is the longest name drawn on a single line.
const splitAt = 5

const clearScreen = "\x1b[2J\x1b[H"

// Terminal draws the filter panel on a terminal.
// Safe for concurrent use; redraws are serialized.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	boxID   string
	updates int

	frame     lipgloss.Style
	title     lipgloss.Style
	label     lipgloss.Style
	highlight lipgloss.Style
	empty     lipgloss.Style
}

// NewTerminal renders to out. Colours follow out's capabilities.
func NewTerminal(out io.Writer, boxID string) *Terminal {
	r := lipgloss.NewRenderer(out)
	return &Terminal{
		out:   out,
		boxID: boxID,

		frame:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#8BC34A")).Padding(0, 1),
		title:     r.NewStyle().Bold(true),
		label:     r.NewStyle().Foreground(lipgloss.Color("#f2f2f2")),
		highlight: r.NewStyle().Reverse(true).Bold(true),
		empty:     r.NewStyle().Faint(true),
	}
}

// Redraw renders the section. Every FullRefreshEvery-th call clears the
// screen first.
func (t *Terminal) Redraw(sec filter.Section, highlight uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if t.updates%FullRefreshEvery == 0 {
		b.WriteString(clearScreen)
	}
	t.updates++

	b.WriteString(t.Render(sec, highlight))
	b.WriteString("\n")

	// Fire-and-forget: a broken terminal must not stall the controller.
	_, _ = io.WriteString(t.out, b.String())
}

// Render returns the panel without writing it.
func (t *Terminal) Render(sec filter.Section, highlight uint8) string {
	lines := []string{t.title.Render("FILTERS")}

	for i, slot := range sec.ByPosition() {
		pos := uint8(i + 1)

		marker := " "
		if pos == highlight {
			marker = ">"
		}

		var body []string
		if slot.Occupied() {
			body = nameLines(slot.Name.String())
		} else {
			body = []string{"-"}
		}

		for j, text := range body {
			prefix := fmt.Sprintf("%s%d ", marker, pos)
			if j > 0 {
				prefix = "   "
			}
			style := t.label
			switch {
			case pos == highlight:
				style = t.highlight
			case !slot.Occupied():
				style = t.empty
			}
			lines = append(lines, prefix+style.Render(text))
		}
	}

	if t.boxID != "" {
		lines = append(lines, t.empty.Render(t.boxID))
	}
	return t.frame.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// nameLines splits names longer than splitAt over two lines.
func nameLines(name string) []string {
	if len(name) <= splitAt {
		return []string{name}
	}
	return []string{name[:splitAt], name[splitAt:]}
}
