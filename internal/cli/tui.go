package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/blockorder/pkg/layout"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// FunctionListModel - Interactive layout browser
// =============================================================================

// functionRow is one entry of the browser: a hot function or a cold
// placeholder.
type functionRow struct {
	hot  *layout.FunctionClusterInfo
	cold *layout.ColdPlaceholder
}

func (r functionRow) name() string {
	if r.hot != nil {
		return r.hot.Name
	}
	return r.cold.Name
}

// FunctionListModel is the bubbletea model for browsing a layout. Enter
// toggles the block order of the selected function.
type FunctionListModel struct {
	rows     []functionRow
	Cursor   int
	Offset   int
	Height   int
	Expanded bool
}

// NewFunctionListModel lists the hot functions of l followed by its cold
// placeholders.
func NewFunctionListModel(l *layout.Layout) FunctionListModel {
	rows := make([]functionRow, 0, len(l.Functions)+len(l.Cold))
	for _, f := range l.Functions {
		rows = append(rows, functionRow{hot: f})
	}
	for i := range l.Cold {
		rows = append(rows, functionRow{cold: &l.Cold[i]})
	}
	return FunctionListModel{rows: rows, Height: 15}
}

func (m FunctionListModel) Init() tea.Cmd {
	return nil
}

func (m FunctionListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			m.Expanded = !m.Expanded
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 14
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m FunctionListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Block Layout"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(listDimStyle.Render("  no functions"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.rows))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		if r.hot != nil {
			f := r.hot
			rows = append(rows, []string{
				cursor, f.Name, strconv.Itoa(f.Clusters[0].LayoutIndex),
				strconv.Itoa(len(f.HotBBIndexes())), strconv.Itoa(len(f.ColdBBIndexes())),
				formatGain(f.OriginalScore.Total(), f.OptimizedScore.Total()),
			})
			continue
		}
		rows = append(rows, []string{cursor, r.cold.Name, "—", "0", blockCount(r.cold), "cold"})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Function", "Index", "Hot", "Cold", "Gain").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.rows) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if m.rows[idx].hot == nil {
				base = base.Foreground(colorDim)
			} else if col == 5 {
				base = base.Foreground(colorGreen)
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))

	if m.Expanded {
		b.WriteString("\n\n")
		b.WriteString(m.details(m.rows[m.Cursor]))
	}
	return b.String()
}

// details describes where the blocks of one function end up.
func (m FunctionListModel) details(r functionRow) string {
	var b strings.Builder
	b.WriteString(listSelectedStyle.Render(r.name()))
	b.WriteString("\n")
	if r.cold != nil {
		fmt.Fprintf(&b, "  %s %d\n", listDimStyle.Render("cold region"), r.cold.ColdClusterLayoutIndex)
		b.WriteString(listDimStyle.Render("  no hot blocks; kept in original order"))
		return b.String()
	}
	f := r.hot
	for _, c := range f.Clusters {
		fmt.Fprintf(&b, "  %s %d  %s\n", listDimStyle.Render("cluster"), c.LayoutIndex, joinInts(c.BBIndexes))
	}
	fmt.Fprintf(&b, "  %s %d  %s\n", listDimStyle.Render("cold   "), f.ColdClusterLayoutIndex, joinInts(f.ColdBBIndexes()))
	fmt.Fprintf(&b, "  %s intra %d → %d, calls %d → %d",
		listDimStyle.Render("score  "),
		f.OriginalScore.Intra, f.OptimizedScore.Intra,
		f.OriginalScore.InterOut, f.OptimizedScore.InterOut)
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func blockCount(p *layout.ColdPlaceholder) string {
	if p.CFG == nil {
		return "—"
	}
	return strconv.Itoa(len(p.CFG.Nodes))
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "—"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}
