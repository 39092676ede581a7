package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// File Output
// =============================================================================

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// =============================================================================
// Key-Value Output
// =============================================================================

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Stats Display
// =============================================================================

// printRunStats prints profile sizes and cache status on a single line.
func printRunStats(res *pipeline.Result) {
	parts := []string{
		fmt.Sprintf("%d/%d functions hot", res.Stats.HotFunctions, res.Stats.Functions),
		fmt.Sprintf("%d/%d blocks hot", res.Stats.HotBlocks, res.Stats.Blocks),
	}
	if imp := res.Layout.Totals().Improvement(); imp > 0 {
		parts = append(parts, fmt.Sprintf("score x%.3f", imp))
	}

	status := iconFresh
	statusStyle := styleComputed
	if res.CacheInfo.LayoutHit {
		status = iconCached
		statusStyle = styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	line += StyleDim.Render(" · ") + statusStyle.Render(status)
	fmt.Println(line)
}

// layoutTable renders the hottest functions of l by optimized score. At most
// limit rows are shown; limit <= 0 shows all.
func layoutTable(l *layout.Layout, limit int) string {
	funcs := slices.Clone(l.Functions)
	slices.SortStableFunc(funcs, func(a, b *layout.FunctionClusterInfo) int {
		return cmp.Compare(b.OptimizedScore.Total(), a.OptimizedScore.Total())
	})
	more := 0
	if limit > 0 && len(funcs) > limit {
		more = len(funcs) - limit
		funcs = funcs[:limit]
	}

	rows := make([][]string, 0, len(funcs))
	for _, f := range funcs {
		rows = append(rows, []string{
			f.Name,
			strconv.Itoa(len(f.HotBBIndexes())),
			strconv.Itoa(len(f.ColdBBIndexes())),
			strconv.FormatInt(f.OriginalScore.Total(), 10),
			strconv.FormatInt(f.OptimizedScore.Total(), 10),
			formatGain(f.OriginalScore.Total(), f.OptimizedScore.Total()),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Function", "Hot", "Cold", "Original", "Optimized", "Gain").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return lipgloss.NewStyle().Foreground(colorWhite)
			case col == 5:
				return lipgloss.NewStyle().Foreground(colorGreen)
			default:
				return lipgloss.NewStyle().Foreground(colorGray)
			}
		})

	out := t.Render()
	if more > 0 {
		out += "\n" + StyleDim.Render(fmt.Sprintf("  … %d more hot functions", more))
	}
	if n := len(l.Cold); n > 0 {
		out += "\n" + StyleDim.Render(fmt.Sprintf("  %d cold functions kept in original order", n))
	}
	return out
}

// formatGain renders optimized/original as a multiplier.
func formatGain(orig, opt int64) string {
	if orig == 0 {
		if opt == 0 {
			return "—"
		}
		return "new"
	}
	return fmt.Sprintf("x%.2f", float64(opt)/float64(orig))
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Utilities
// =============================================================================

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}
