package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// renderTable left-aligns rows into padded columns.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return mutedStyle.Render("-")
	}
	return formatTime(*t)
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return mutedStyle.Render("-")
	}
	return tagStyle.Render(strings.Join(tags, ","))
}

func categoryLabel(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func printWarn(format string, v ...interface{}) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, v...)))
}
