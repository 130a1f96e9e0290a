// Package controller provides output adapters for displaying scan
// results: a plain renderer for CI logs and a Bubble Tea browser for
// interactive terminals.
package controller

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opaquebits/modelinspect/internal/domain"
	m "github.com/opaquebits/modelinspect/internal/model"
)

// UI defines the interface for displaying reports and rule tables.
// Implementations can use different output methods (simple text, TUI).
type UI interface {
	// DisplayReport renders one scan report.
	DisplayReport(report m.Report) error

	// DisplayReports renders previously stored reports.
	DisplayReports(reports []m.Report) error

	// DisplayRules renders the effective rule table.
	DisplayRules(rules []domain.Rule) error
}

// NewUI creates a UI based on whether TTY mode is enabled.
// When useTTY is true, it returns a TUI (Bubble Tea).
// When useTTY is false, it returns a SimpleUI (plain text).
func NewUI(cmd *cobra.Command, useTTY bool) UI {
	if useTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY checks if the given writer is a terminal (TTY).
// Returns false when the output is redirected to a file or pipe.
func IsTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return false
	}

	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
