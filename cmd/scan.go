package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opaquebits/modelinspect/internal/adapter"
	"github.com/opaquebits/modelinspect/internal/domain"
	m "github.com/opaquebits/modelinspect/internal/model"
)

var scanParallelFlag int
var scanRulesFlag string
var scanMaxPayloadFlag int64
var scanMaxEntriesFlag int
var scanTimeoutFlag time.Duration
var scanFailOnFlag string
var scanFormatFlag string
var scanOutputFlag string

// scanCmd represents the scan command.
var scanCmd = newScanCmd()

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <artifact>",
		Short: "Scan a model artifact for deserialization risk",
		Long: `Scan one serialized model artifact and report a verdict.

The artifact may be a local file or an s3://bucket/key URL; remote
artifacts are fetched through the object store configured by the
MODELINSPECT_S3_* environment variables (a .env file is honored).

The process exits 0 when the verdict is below the --fail-on threshold,
1 when it reaches the threshold, and 2 when the scan itself fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0])
		},
	}
	cmd.Flags().IntVarP(&scanParallelFlag, "parallel", "p", 0, "number of parallel payload workers (0 = number of CPUs)")
	cmd.Flags().StringVarP(&scanRulesFlag, "rules", "r", "", "YAML rule table overriding or extending the built-in deny-list")
	cmd.Flags().Int64Var(&scanMaxPayloadFlag, "max-payload", adapter.DefaultMaxPayloadSize, "maximum payload size in bytes; larger payloads are skipped")
	cmd.Flags().IntVar(&scanMaxEntriesFlag, "max-entries", adapter.DefaultMaxEntries, "maximum container entries before the scan fails")
	cmd.Flags().DurationVar(&scanTimeoutFlag, "timeout", 0, "overall scan timeout (0 = none)")
	cmd.Flags().StringVar(&scanFailOnFlag, "fail-on", "warning", "lowest verdict treated as a gate failure: info, warning or critical")
	cmd.Flags().StringVar(&scanFormatFlag, "format", "table", "output format: table or json")
	cmd.Flags().StringVarP(&scanOutputFlag, "output", "o", "", "write the JSON report to this path")

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, artifact string) error {
	threshold, err := parseFailOn(scanFailOnFlag)
	if err != nil {
		return err
	}

	if scanFormatFlag != "" && scanFormatFlag != "json" && scanFormatFlag != "table" {
		return fmt.Errorf("invalid --format value %q, want table or json", scanFormatFlag)
	}

	rules, err := loadRules(scanRulesFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if scanTimeoutFlag > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, scanTimeoutFlag)
		defer cancel()
	}

	path, cleanup, err := resolveArtifact(ctx, artifact)
	if err != nil {
		return err
	}

	defer cleanup()

	report, err := workflow.Scan(ctx, domain.ScanArgs{
		Artifact:       path,
		Rules:          rules,
		Threads:        scanParallelFlag,
		MaxPayloadSize: scanMaxPayloadFlag,
		MaxEntries:     scanMaxEntriesFlag,
	})
	if err != nil {
		return err
	}

	// The artifact field keeps the name the caller asked for, even when a
	// remote object was staged through a scratch file.
	report.Artifact = artifact

	if _, err := reportStore.Save(m.Path(reportsDirFlag), report); err != nil {
		return err
	}

	if err := emitReport(cmd, report); err != nil {
		return err
	}

	return gateResult(report, threshold)
}

// resolveArtifact stages remote artifacts locally. The returned cleanup
// removes the scratch copy, if any.
func resolveArtifact(ctx context.Context, artifact string) (m.Path, func(), error) {
	if !adapter.IsObjectURL(artifact) {
		return m.Path(artifact), func() {}, nil
	}

	// Credentials commonly live in a .env during development.
	_ = godotenv.Load()

	store, err := adapter.NewMinioObjectStore()
	if err != nil {
		return "", nil, err
	}

	local, err := store.Fetch(ctx, artifact)
	if err != nil {
		return "", nil, err
	}

	return local, func() { _ = os.Remove(string(local)) }, nil
}

func loadRules(path string) (*domain.RuleTable, error) {
	if path == "" {
		return domain.DefaultRuleTable(), nil
	}

	return domain.LoadRuleTable(m.Path(path))
}

func parseFailOn(value string) (m.Verdict, error) {
	switch strings.ToLower(value) {
	case "info":
		return m.VerdictInfo, nil
	case "warning":
		return m.VerdictWarning, nil
	case "critical":
		return m.VerdictCritical, nil
	default:
		return "", fmt.Errorf("invalid --fail-on value %q, want info, warning or critical", value)
	}
}

func emitReport(cmd *cobra.Command, report m.Report) error {
	if scanOutputFlag != "" || scanFormatFlag == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		data = append(data, '\n')

		if scanOutputFlag != "" {
			if err := os.WriteFile(scanOutputFlag, data, 0o600); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}

		if scanFormatFlag == "json" {
			cmd.Print(string(data))
			return nil
		}
	}

	if scanFormatFlag != "json" {
		return ui.DisplayReport(report)
	}

	return nil
}

// gateResult maps the verdict to the CI exit contract.
func gateResult(report m.Report, threshold m.Verdict) error {
	if report.Verdict == m.VerdictFailed {
		return fmt.Errorf("%w: %s", errScanFailed, report.FailureReason)
	}

	if report.Verdict.Rank() >= threshold.Rank() {
		return fmt.Errorf("%w: verdict %s", errGate, report.Verdict)
	}

	return nil
}
