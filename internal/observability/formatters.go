// Package observability renders report progress for the terminal.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/allstarteams/sectional-reports/internal/poller"
	"github.com/allstarteams/sectional-reports/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// barWidth is the number of cells in a progress bar
	barWidth = 30
)

// Printer handles formatted progress output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %s%s │\n", line, strings.Repeat(" ", boxWidth-4-runeLen(line)))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// ProgressBar draws percent as a fixed-width bar, e.g. "[████████░░░░] 67%".
func ProgressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), percent)
}

// StatusIcon is the marker used for a section status.
func StatusIcon(s types.SectionStatus) string {
	switch s {
	case types.SectionCompleted:
		return "✓"
	case types.SectionGenerating:
		return "⟳"
	case types.SectionFailed:
		return "✗"
	default:
		return "·"
	}
}

// SectionLines lists the sections with their status, one per line.
func SectionLines(sections []types.Section) []string {
	lines := make([]string, 0, len(sections))
	for _, s := range sections {
		line := fmt.Sprintf("%s %d. %s", StatusIcon(s.Status), s.ID, s.Title)
		if s.Status == types.SectionFailed && s.ErrorMessage != "" {
			line += " (" + s.ErrorMessage + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// CountdownPhrase is the loading message for a countdown phase.
func CountdownPhrase(phase poller.Phase, remaining int) string {
	switch phase {
	case poller.PhaseStarting:
		return "Getting started on your report..."
	case poller.PhaseWriting:
		return fmt.Sprintf("Writing your report, about %s left", clock(remaining))
	case poller.PhaseFinishing:
		return "Putting on the finishing touches..."
	case poller.PhaseOvertime:
		return "Taking a little longer than usual, hang tight"
	default:
		return ""
	}
}

func clock(units int) string {
	return fmt.Sprintf("%d:%02d", units/60, units%60)
}

// StatusLine summarises a snapshot in one line.
func StatusLine(rp types.ReportProgress) string {
	line := fmt.Sprintf("%s  %d/%d sections", ProgressBar(rp.ProgressPercentage, barWidth), rp.SectionsCompleted, rp.TotalSections)
	if rp.SectionsFailed > 0 {
		line += fmt.Sprintf(", %d failed", rp.SectionsFailed)
	}
	return line
}

// PrintProgress outputs a box with the bar, the loading phrase and the sections.
func (p *Printer) PrintProgress(rp types.ReportProgress, phase poller.Phase, remaining int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", rp.OverallStatus))
	sb.WriteString(StatusLine(rp))
	if phrase := CountdownPhrase(phase, remaining); phrase != "" && !rp.OverallStatus.IsTerminal() {
		sb.WriteString("\n" + phrase)
	}
	if lines := SectionLines(rp.Sections); len(lines) > 0 {
		sb.WriteString("\n\n" + strings.Join(lines, "\n"))
	}

	p.printBox(strings.ToUpper(strings.ReplaceAll(string(rp.ReportType), "_", " "))+" REPORT", sb.String())
}

// PrintMessage outputs a single-line notice box, used for errors and maintenance banners.
func (p *Printer) PrintMessage(title, message string) {
	p.printBox(title, message)
}
