// Package cmd provides the root command and CLI setup for modelinspect.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opaquebits/modelinspect/internal/adapter"
	"github.com/opaquebits/modelinspect/internal/controller"
	"github.com/opaquebits/modelinspect/internal/domain"
)

var fsAdapter adapter.ArtifactFS
var registry *adapter.Registry
var reportStore adapter.ReportStore
var workflow domain.Workflow
var ui controller.UI

func init() {
	fsAdapter = adapter.NewLocalArtifactFS()
	registry = adapter.NewRegistry()
	reportStore = adapter.NewReportStore()
	workflow = domain.NewWorkflow(fsAdapter, registry)
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
}

// errGate marks a scan whose verdict reached the failure threshold.
var errGate = errors.New("verdict at or above the failure threshold")

// errScanFailed marks a scan that could not complete (unsupported format,
// corrupt container, cancellation).
var errScanFailed = errors.New("scan failed")

var reportsDirFlag string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelinspect",
		Short: "Deserialization-risk scanner for ML model artifacts",
		Long: `Modelinspect statically scans serialized ML model artifacts (pickle
streams, PyTorch checkpoints, NumPy archives) for deserialization risk.
It decodes the embedded bytecode without ever executing it, classifies
the operations against a deny-list of dangerous import primitives, and
emits a structured report for CI gates and signing pipelines.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&reportsDirFlag, "reports", ".modelinspect-reports", "directory where scan reports are stored")

	return cmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). Exit codes follow the CI
// gate contract: 0 below the failure threshold, 1 at or above it, 2 when
// the scan itself failed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	if errors.Is(err, errScanFailed) {
		os.Exit(2)
	}

	os.Exit(1)
}
