package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/allstarteams/sectional-reports/internal/poller"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[░░░░░░░░░░] 0%", ProgressBar(0, 10))
	assert.Equal(t, "[██████░░░░] 67%", ProgressBar(67, 10))
	assert.Equal(t, "[██████████] 100%", ProgressBar(100, 10))
	assert.Equal(t, "[██████████] 100%", ProgressBar(140, 10))
	assert.Equal(t, "[░░░░░░░░░░] 0%", ProgressBar(-3, 10))
}

func TestSectionLines(t *testing.T) {
	lines := SectionLines([]types.Section{
		{ID: 0, Title: "Introduction", Status: types.SectionCompleted},
		{ID: 1, Title: "Strengths", Status: types.SectionGenerating},
		{ID: 2, Title: "Flow", Status: types.SectionFailed, ErrorMessage: "timeout"},
		{ID: 3, Title: "Wellbeing", Status: types.SectionPending},
	})
	assert.Equal(t, []string{
		"✓ 0. Introduction",
		"⟳ 1. Strengths",
		"✗ 2. Flow (timeout)",
		"· 3. Wellbeing",
	}, lines)
}

func TestCountdownPhrase(t *testing.T) {
	assert.Equal(t, "Writing your report, about 2:05 left", CountdownPhrase(poller.PhaseWriting, 125))
	assert.Contains(t, CountdownPhrase(poller.PhaseOvertime, -4), "longer than usual")
	assert.Empty(t, CountdownPhrase(poller.PhaseIdle, 0))
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(types.ReportProgress{
		ReportType:         types.ReportTypePersonal,
		OverallStatus:      types.StatusInProgress,
		SectionsCompleted:  4,
		TotalSections:      6,
		ProgressPercentage: 67,
		Sections: []types.Section{
			{ID: 0, Title: "Introduction", Status: types.SectionCompleted},
			{ID: 5, Title: "A very long section title that will certainly not fit in the box", Status: types.SectionPending},
		},
	}, poller.PhaseFinishing, 10)

	output := buf.String()
	assert.Contains(t, output, "AST PERSONAL REPORT")
	assert.Contains(t, output, "67%")
	assert.Contains(t, output, "4/6 sections")
	assert.Contains(t, output, "finishing touches")
	assert.Contains(t, output, "✓ 0. Introduction")
	assert.Contains(t, output, "...")

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), "line %q", line)
	}
}

func TestPrintProgress_TerminalHidesPhrase(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintProgress(types.ReportProgress{
		ReportType: types.ReportTypeProfessional, OverallStatus: types.StatusCompleted,
		SectionsCompleted: 6, TotalSections: 6, ProgressPercentage: 100,
	}, poller.PhaseOvertime, -3)

	assert.Contains(t, buf.String(), "AST PROFESSIONAL REPORT")
	assert.NotContains(t, buf.String(), "longer than usual")
}

func TestPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintMessage("ERROR", "Uh oh, something went wrong")
	assert.Contains(t, buf.String(), "Uh oh, something went wrong")
}
