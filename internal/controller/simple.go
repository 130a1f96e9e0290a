package controller

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/opaquebits/modelinspect/internal/domain"
	m "github.com/opaquebits/modelinspect/internal/model"
)

// SimpleUI implements UI using cobra Command's output, suitable for CI
// logs and piped output.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayReport prints the verdict, the findings table and a summary
// footer for one report.
func (s *SimpleUI) DisplayReport(report m.Report) error {
	s.printf("Artifact: %s (%s)\n", report.Artifact, report.Format)
	s.printf("Verdict:  %s\n", report.Verdict)

	if report.Status == m.StatusFailed {
		s.printf("Failure:  %s\n", report.FailureReason)
	}

	if len(report.Findings) > 0 {
		var buf bytes.Buffer

		renderFindingsTable(&buf, report.Findings)
		s.printf("\n%s", buf.String())
	}

	s.printf("\nPayloads scanned: %d   Findings: %d   Duration: %dms\n",
		report.PayloadsScanned, len(report.Findings), report.DurationMS)

	return nil
}

// DisplayReports prints each stored report in turn.
func (s *SimpleUI) DisplayReports(reports []m.Report) error {
	if len(reports) == 0 {
		s.printf("No stored reports found\n")
		return nil
	}

	for i, report := range reports {
		if i > 0 {
			s.printf("\n")
		}

		if err := s.DisplayReport(report); err != nil {
			return err
		}
	}

	return nil
}

// DisplayRules prints the effective rule table.
func (s *SimpleUI) DisplayRules(rules []domain.Rule) error {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"ID", "Module", "Name", "Severity", "Category"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT,
	})

	for _, rule := range rules {
		table.Append([]string{rule.ID, rule.Module, rule.Name, string(rule.Severity), rule.Category})
	}

	table.SetFooter([]string{"", "", "", "Total", strconv.Itoa(len(rules))})
	table.Render()

	s.printf("%s", buf.String())

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

// renderFindingsTable writes the findings of one report as a table,
// shared by the simple and TTY renderers so both always agree with the
// underlying report.
func renderFindingsTable(w io.Writer, findings []m.Finding) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Rule", "Category", "Payload", "Offset", "Message"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for _, f := range findings {
		table.Append([]string{
			string(f.Severity),
			f.RuleID,
			f.Category,
			f.Payload,
			strconv.FormatInt(f.Offset, 10),
			f.Message,
		})
	}

	table.Render()
}
