package model

// Status tracks the scan state machine for one artifact.
type Status string

const (
	StatusLoading     Status = "LOADING"
	StatusExtracting  Status = "EXTRACTING"
	StatusDecoding    Status = "DECODING"
	StatusClassifying Status = "CLASSIFYING"
	StatusReported    Status = "REPORTED"
	StatusFailed      Status = "FAILED"
)

// Verdict is the overall outcome of a scan.
type Verdict string

const (
	VerdictClean    Verdict = "CLEAN"
	VerdictInfo     Verdict = "INFO"
	VerdictWarning  Verdict = "WARNING"
	VerdictCritical Verdict = "CRITICAL"
	VerdictFailed   Verdict = "FAILED"
)

// Rank orders verdicts for gate thresholding. FAILED ranks above every
// severity-derived verdict.
func (v Verdict) Rank() int {
	switch v {
	case VerdictClean:
		return 0
	case VerdictInfo:
		return 1
	case VerdictWarning:
		return 2
	case VerdictCritical:
		return 3
	case VerdictFailed:
		return 4
	default:
		return 0
	}
}

// VerdictFor maps a severity to the verdict it implies.
func VerdictFor(s Severity) Verdict {
	switch s {
	case SeverityInfo:
		return VerdictInfo
	case SeverityWarning:
		return VerdictWarning
	case SeverityCritical:
		return VerdictCritical
	default:
		return VerdictClean
	}
}

// Report is the aggregate result of scanning one artifact. It is created
// once per scan invocation and never mutated after the scan completes.
// Findings are in discovery order: payload order first, byte offset second.
type Report struct {
	ScanID          string    `json:"scan_id"`
	Artifact        string    `json:"artifact"`
	ArtifactHash    string    `json:"artifact_hash,omitempty"`
	Format          Format    `json:"format"`
	Status          Status    `json:"status"`
	Verdict         Verdict   `json:"verdict"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	Findings        []Finding `json:"findings"`
	PayloadsScanned int       `json:"payloads_scanned"`
	DurationMS      int64     `json:"duration_ms"`
}

// DeriveVerdict computes the overall verdict: FAILED for failed scans,
// otherwise the highest finding severity, defaulting to CLEAN.
func (r *Report) DeriveVerdict() Verdict {
	if r.Status == StatusFailed {
		return VerdictFailed
	}

	verdict := VerdictClean

	for _, f := range r.Findings {
		if fv := VerdictFor(f.Severity); fv.Rank() > verdict.Rank() {
			verdict = fv
		}
	}

	return verdict
}
