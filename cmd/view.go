package cmd

import (
	"github.com/spf13/cobra"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View previously generated scan reports",
		Long:  "View previously generated scan reports from a reports directory.",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			reports, err := reportStore.List(m.Path(reportsDirFlag))
			if err != nil {
				return err
			}

			return ui.DisplayReports(reports)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
