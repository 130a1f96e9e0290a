package domain

import (
	"fmt"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// Classify maps one decoded operation sequence against the rule table and
// returns findings in operation order. It is a pure function of its
// inputs: no state is carried between payloads, and the shared table is
// never written.
//
// Import-like operations matching the deny-list report the rule's own
// severity. Call-like operations whose callable resolves to a flagged
// symbol always report CRITICAL: at that point the dangerous primitive is
// not merely reachable, the stream invokes it. Opcodes outside the closed
// enumeration degrade to a WARNING instead of silently passing.
func Classify(payload string, ops []m.Operation, table *RuleTable) []m.Finding {
	var findings []m.Finding

	for _, op := range ops {
		switch op.Kind {
		case m.OpGlobal:
			if f, ok := matchTarget(payload, op, table, false); ok {
				findings = append(findings, f)
			}

		case m.OpCall:
			if f, ok := matchTarget(payload, op, table, true); ok {
				findings = append(findings, f)
			}

		case m.OpUnknown:
			findings = append(findings, m.Finding{
				Severity: m.SeverityWarning,
				RuleID:   m.RuleUnknownOpcode,
				Category: m.CategoryIntegrity,
				Message:  fmt.Sprintf("unrecognized opcode %s; stream uses an unsupported or future protocol", op.Mnemonic),
				Payload:  payload,
				Offset:   op.Offset,
			})
		}
	}

	return findings
}

func matchTarget(payload string, op m.Operation, table *RuleTable, isCall bool) (m.Finding, bool) {
	if op.Target == nil {
		return m.Finding{}, false
	}

	rule := table.Match(*op.Target)
	if rule == nil {
		return m.Finding{}, false
	}

	severity := rule.Severity
	message := fmt.Sprintf("%s imports %s: %s", op.Mnemonic, op.Target, rule.Message)

	if isCall {
		severity = m.SeverityCritical
		message = fmt.Sprintf("%s invokes %s: %s", op.Mnemonic, op.Target, rule.Message)
	}

	return m.Finding{
		Severity: severity,
		RuleID:   rule.ID,
		Category: rule.Category,
		Message:  message,
		Payload:  payload,
		Offset:   op.Offset,
	}, true
}
