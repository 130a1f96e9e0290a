package domain

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opaquebits/modelinspect/internal/adapter"
	m "github.com/opaquebits/modelinspect/internal/model"
	"github.com/opaquebits/modelinspect/internal/pickle"
)

// FailureCancelled is the failure reason recorded when a scan is stopped
// by its context.
const FailureCancelled = "CANCELLED"

// ScanArgs configures one artifact scan.
type ScanArgs struct {
	Artifact       m.Path
	Rules          *RuleTable
	Threads        int
	MaxPayloadSize int64
	MaxEntries     int
}

// Workflow runs the scan state machine for one artifact:
// LOADING -> EXTRACTING -> DECODING -> CLASSIFYING -> REPORTED, with
// FAILED reachable from any stage. The caller always receives a Report;
// the only bare error is an input path that cannot be stat'd at all.
type Workflow interface {
	Scan(ctx context.Context, args ScanArgs) (m.Report, error)
}

type workflow struct {
	fs       adapter.ArtifactFS
	registry *adapter.Registry
}

// NewWorkflow creates a Workflow backed by the provided filesystem
// adapter and container registry.
func NewWorkflow(fs adapter.ArtifactFS, registry *adapter.Registry) Workflow {
	return &workflow{fs: fs, registry: registry}
}

func (w *workflow) Scan(ctx context.Context, args ScanArgs) (m.Report, error) {
	start := time.Now()

	report := m.Report{
		ScanID:   uuid.NewString(),
		Artifact: string(args.Artifact),
		Format:   m.FormatUnknown,
		Findings: []m.Finding{},
	}

	fail := func(reason string) (m.Report, error) {
		report.Status = m.StatusFailed
		report.FailureReason = reason
		report.Verdict = report.DeriveVerdict()
		report.DurationMS = time.Since(start).Milliseconds()

		return report, nil
	}

	if args.Rules == nil {
		args.Rules = DefaultRuleTable()
	}

	if args.Threads <= 0 {
		args.Threads = runtime.GOMAXPROCS(0)
	}

	// LOADING. A path that cannot be stat'd fails before the scan begins.
	if _, err := w.fs.FileInfo(args.Artifact); err != nil {
		return m.Report{}, fmt.Errorf("artifact path error: %w", err)
	}

	report.Status = m.StatusLoading

	data, err := w.fs.ReadFile(args.Artifact)
	if err != nil {
		return fail(fmt.Sprintf("unreadable artifact: %v", err))
	}

	if hash, err := w.fs.HashFile(args.Artifact); err == nil {
		report.ArtifactHash = hash
	}

	// EXTRACTING.
	report.Status = m.StatusExtracting

	container, err := w.registry.Resolve(args.Artifact, head(data))
	if err != nil {
		return fail(fmt.Sprintf("unsupported format: %v", err))
	}

	report.Format = container.Format()

	limits := adapter.Limits{MaxPayloadSize: args.MaxPayloadSize, MaxEntries: args.MaxEntries}

	payloads, extractionFindings, err := container.Extract(string(args.Artifact), data, limits)
	report.Findings = append(report.Findings, extractionFindings...)

	if err != nil {
		return fail(fmt.Sprintf("extraction failed: %v", err))
	}

	// DECODING and CLASSIFYING run per payload; payloads are independent
	// and processed in parallel under a bounded worker group. Results are
	// slotted by payload index so report ordering never depends on
	// scheduling.
	report.Status = m.StatusDecoding

	results := make([][]m.Finding, len(payloads))
	completed := make([]bool, len(payloads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(args.Threads)

	for i := range payloads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = scanPayload(payloads[i], args.Rules)
			completed[i] = true

			return nil
		})
	}

	err = g.Wait()

	report.Status = m.StatusClassifying

	for i, findings := range results {
		if completed[i] {
			report.Findings = append(report.Findings, findings...)
			report.PayloadsScanned++
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fail(FailureCancelled)
		}

		return fail(fmt.Sprintf("scan aborted: %v", err))
	}

	// REPORTED.
	report.Status = m.StatusReported
	report.Verdict = report.DeriveVerdict()
	report.DurationMS = time.Since(start).Milliseconds()

	return report, nil
}

// scanPayload decodes one payload and classifies the result. All
// payload-local errors become findings here; nothing escalates past the
// payload. Finding offsets are artifact-absolute.
func scanPayload(payload m.Payload, rules *RuleTable) []m.Finding {
	stream, err := pickle.Decode(payload.Data)

	findings := Classify(payload.Name, stream.Ops, rules)
	for i := range findings {
		findings[i].Offset += payload.Offset
	}

	if err != nil {
		findings = append(findings, m.Finding{
			Severity: m.SeverityCritical,
			RuleID:   m.RuleTruncated,
			Category: m.CategoryIntegrity,
			Message:  fmt.Sprintf("truncated or corrupt stream: %v", err),
			Payload:  payload.Name,
			Offset:   payload.Offset + lastOffset(stream.Ops),
		})
	}

	if stream.Trailing > 0 {
		findings = append(findings, m.Finding{
			Severity: m.SeverityWarning,
			RuleID:   m.RuleTrailingData,
			Category: m.CategoryIntegrity,
			Message:  fmt.Sprintf("%d trailing bytes after the stream terminator", stream.Trailing),
			Payload:  payload.Name,
			Offset:   payload.Offset + int64(len(payload.Data)) - stream.Trailing,
		})
	}

	return findings
}

func lastOffset(ops []m.Operation) int64 {
	if len(ops) == 0 {
		return 0
	}

	return ops[len(ops)-1].Offset
}

func head(data []byte) []byte {
	if len(data) > 8 {
		return data[:8]
	}

	return data
}
