package cmd

import (
	"github.com/spf13/cobra"
)

var rulesFileFlag string

// rulesCmd represents the rules command.
var rulesCmd = newRulesCmd()

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rule table",
		Long: `Print the deny-list the classifier will apply: the built-in baseline,
or the table loaded from --rules (with the baseline included when the
file sets 'extend: true').`,
		Args: cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			table, err := loadRules(rulesFileFlag)
			if err != nil {
				return err
			}

			return ui.DisplayRules(table.Rules)
		},
	}
	cmd.Flags().StringVarP(&rulesFileFlag, "rules", "r", "", "YAML rule table overriding or extending the built-in deny-list")

	return cmd
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
