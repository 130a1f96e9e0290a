package controller

import (
	"bytes"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opaquebits/modelinspect/internal/domain"
	m "github.com/opaquebits/modelinspect/internal/model"
)

// TUI implements UI for interactive terminals: colored scan summaries and
// a Bubble Tea browser for stored reports.
type TUI struct {
	output io.Writer
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// DisplayReport prints a scan report with a colored verdict line.
func (t *TUI) DisplayReport(report m.Report) error {
	_, _ = fmt.Fprintf(t.output, "Artifact: %s (%s)\n", report.Artifact, report.Format)
	_, _ = fmt.Fprintf(t.output, "Verdict:  %s\n", verdictBadge(report.Verdict))

	if report.Status == m.StatusFailed {
		_, _ = fmt.Fprintf(t.output, "Failure:  %s\n", report.FailureReason)
	}

	if len(report.Findings) > 0 {
		var buf bytes.Buffer

		renderFindingsTable(&buf, report.Findings)
		_, _ = fmt.Fprintf(t.output, "\n%s", buf.String())
	}

	_, _ = fmt.Fprintf(t.output, "\nPayloads scanned: %d   Findings: %d   Duration: %dms\n",
		report.PayloadsScanned, len(report.Findings), report.DurationMS)

	return nil
}

// DisplayReports opens the interactive report browser.
func (t *TUI) DisplayReports(reports []m.Report) error {
	if len(reports) == 0 {
		_, _ = fmt.Fprintln(t.output, "No stored reports found")
		return nil
	}

	program := tea.NewProgram(newViewModel(reports), tea.WithOutput(t.output))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("report browser: %w", err)
	}

	return nil
}

// DisplayRules prints the effective rule table with severity coloring.
func (t *TUI) DisplayRules(rules []domain.Rule) error {
	for _, rule := range rules {
		_, _ = fmt.Fprintf(t.output, "%s  %-28s %s.%s\n",
			severityBadge(rule.Severity), rule.ID, rule.Module, rule.Name)
	}

	_, _ = fmt.Fprintf(t.output, "\n%d rules\n", len(rules))

	return nil
}

var (
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	cleanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func verdictBadge(v m.Verdict) string {
	switch v {
	case m.VerdictCritical:
		return criticalStyle.Render(string(v))
	case m.VerdictWarning:
		return warningStyle.Render(string(v))
	case m.VerdictInfo:
		return infoStyle.Render(string(v))
	case m.VerdictFailed:
		return failedStyle.Render(string(v))
	default:
		return cleanStyle.Render(string(v))
	}
}

func severityBadge(s m.Severity) string {
	label := fmt.Sprintf("%-8s", s)

	switch s {
	case m.SeverityCritical:
		return criticalStyle.Render(label)
	case m.SeverityWarning:
		return warningStyle.Render(label)
	default:
		return infoStyle.Render(label)
	}
}
