package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-tally/internal/model"
)

// maxErrorLines caps the per-run error listing.
const maxErrorLines = 5

// RenderAggregate renders the per-day counts of one run with its metrics.
func RenderAggregate(result model.AggregateResult, metrics model.ResourceMetrics) string {
	var b strings.Builder

	b.WriteString(FormatTitle(fmt.Sprintf("Transactions per day (%s)", result.Strategy)))
	b.WriteString("\n")

	rows := make([][]string, 0, len(result.Counts))
	for _, day := range result.SortedDays() {
		count := fmt.Sprintf("%d", result.Counts[day])
		if result.Counts[day] == 0 {
			count = SubtleStyle.Render(count)
		}
		rows = append(rows, []string{day, count})
	}
	b.WriteString(renderTable([]string{"Date", "Count"}, rows))
	b.WriteString("\n")

	summary := fmt.Sprintf("  • Days: %d\n", len(result.Counts)) +
		fmt.Sprintf("  • Transactions: %d\n", result.Total()) +
		fmt.Sprintf("  • Skipped (bad date): %d\n", result.Skipped) +
		fmt.Sprintf("  • Classification errors: %d\n", len(result.Errors)) +
		formatMetrics(metrics)

	b.WriteString(RenderBox(ChartIcon+" Summary", summary))
	b.WriteString("\n")
	b.WriteString(renderErrors(result.Errors))

	return b.String()
}

// RenderComparison renders both strategies side by side.
func RenderComparison(report model.ComparisonReport) string {
	var b strings.Builder

	b.WriteString(FormatTitle("Pattern vs model " + report.Range))
	b.WriteString("\n")

	days := report.PatternResults.SortedDays()
	rows := make([][]string, 0, len(days))
	for _, day := range days {
		p := report.PatternResults.Counts[day]
		m := report.ModelResults.Counts[day]
		rows = append(rows, []string{day, fmt.Sprintf("%d", p), fmt.Sprintf("%d", m), diffMarker(p, m)})
	}
	b.WriteString(renderTable([]string{"Date", "Pattern", "Model", ""}, rows))
	b.WriteString("\n")

	metricRows := [][]string{
		{"Transactions", fmt.Sprintf("%d", report.PatternResults.Total()), fmt.Sprintf("%d", report.ModelResults.Total())},
		{"Execution time", fmt.Sprintf("%.3fs", report.PatternMetrics.Duration), fmt.Sprintf("%.3fs", report.ModelMetrics.Duration)},
		{"CPU delta", cpuCell(report.PatternMetrics), cpuCell(report.ModelMetrics)},
		{"Memory delta", memCell(report.PatternMetrics), memCell(report.ModelMetrics)},
		{"Errors", fmt.Sprintf("%d", len(report.PatternResults.Errors)), fmt.Sprintf("%d", len(report.ModelResults.Errors))},
	}
	b.WriteString(RenderBox(RobotIcon+" Cost", renderTable([]string{"", "Pattern", "Model"}, metricRows)))
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render("run " + report.RunID))
	b.WriteString("\n")
	b.WriteString(renderErrors(report.ModelResults.Errors))

	return b.String()
}

func formatMetrics(m model.ResourceMetrics) string {
	s := fmt.Sprintf("  • Execution time: %.3fs\n", m.Duration)
	if !m.Available {
		return s + "  • CPU/memory: unavailable\n"
	}
	return s +
		fmt.Sprintf("  • CPU delta: %+.1f%%\n", m.CPUDelta) +
		fmt.Sprintf("  • Memory delta: %+.2f MB\n", m.MemoryDeltaMB)
}

func cpuCell(m model.ResourceMetrics) string {
	if !m.Available {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", m.CPUDelta)
}

func memCell(m model.ResourceMetrics) string {
	if !m.Available {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f MB", m.MemoryDeltaMB)
}

func diffMarker(a, b int) string {
	if a == b {
		return ""
	}
	return WarningStyle.Render("≠")
}

func renderErrors(errs []model.DayError) string {
	if len(errs) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range errs {
		if i == maxErrorLines {
			b.WriteString(SubtleStyle.Render(fmt.Sprintf("  … %d more", len(errs)-maxErrorLines)))
			b.WriteString("\n")
			break
		}
		b.WriteString(FormatWarning(e.Day + ": " + e.Error))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTable lays out rows in padded columns under a styled header.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	cell := func(i int, s string) string {
		return lipgloss.NewStyle().Width(widths[i] + 2).PaddingRight(2).Render(s)
	}

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = cell(i, h)
	}

	lines := []string{TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, headerCells...))}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cell(i, c)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
