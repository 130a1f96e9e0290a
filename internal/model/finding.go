package model

// Severity ranks how dangerous a finding is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so verdicts can be computed as a maximum.
// Unknown severities rank below INFO so they never raise a verdict.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Finding category tags.
const (
	CategoryExecution      = "arbitrary-execution"
	CategoryCodeLoading    = "dynamic-code-loading"
	CategoryFilesystem     = "filesystem-access"
	CategoryNetwork        = "network-access"
	CategoryReconstruction = "unsafe-reconstruction"
	CategoryIntegrity      = "stream-integrity"
	CategoryResource       = "resource-limit"
)

// Rule IDs for structural findings emitted outside the deny-list table:
// stream integrity problems and resource-limit skips.
const (
	RuleUnknownOpcode = "stream.unknown-opcode"
	RuleTrailingData  = "stream.trailing-data"
	RuleTruncated     = "stream.truncated"
	RulePayloadSize   = "payload.too-large"
)

// Finding is one risk signal tied to a specific operation. Findings are
// immutable once created.
type Finding struct {
	Severity Severity `json:"severity"`
	RuleID   string   `json:"rule_id"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Payload  string   `json:"payload"`
	Offset   int64    `json:"offset"`
}
