package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/opaquebits/modelinspect/internal/model"
)

func globalOp(offset int64, module, name string) m.Operation {
	return m.Operation{
		Offset:   offset,
		Mnemonic: "GLOBAL",
		Kind:     m.OpGlobal,
		Target:   &m.Symbol{Module: module, Name: name},
	}
}

func callOp(offset int64, module, name string) m.Operation {
	return m.Operation{
		Offset:   offset,
		Mnemonic: "REDUCE",
		Kind:     m.OpCall,
		Target:   &m.Symbol{Module: module, Name: name},
	}
}

func TestClassify_BenignOpsProduceNoFindings(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		{Offset: 0, Mnemonic: "PROTO", Kind: m.OpControl},
		{Offset: 2, Mnemonic: "EMPTY_LIST", Kind: m.OpData},
		{Offset: 3, Mnemonic: "BININT1", Kind: m.OpData},
		{Offset: 5, Mnemonic: "APPEND", Kind: m.OpBuild},
		{Offset: 6, Mnemonic: "STOP", Kind: m.OpControl},
	}

	findings := Classify("model.pkl", ops, DefaultRuleTable())
	assert.Empty(t, findings)
}

func TestClassify_FlaggedImportIsReported(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{globalOp(2, "os", "system")}

	findings := Classify("data.pkl", ops, DefaultRuleTable())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, m.SeverityCritical, f.Severity)
	assert.Equal(t, "exec.os", f.RuleID)
	assert.Equal(t, m.CategoryExecution, f.Category)
	assert.Equal(t, "data.pkl", f.Payload)
	assert.Equal(t, int64(2), f.Offset)
	assert.Contains(t, f.Message, "os.system")
}

func TestClassify_CallOfFlaggedImportIsCritical(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		globalOp(2, "os", "system"),
		callOp(33, "os", "system"),
	}

	findings := Classify("data.pkl", ops, DefaultRuleTable())
	require.Len(t, findings, 2)

	assert.Contains(t, findings[0].Message, "imports")
	assert.Contains(t, findings[1].Message, "invokes")
	assert.Equal(t, m.SeverityCritical, findings[1].Severity)
	assert.Equal(t, int64(33), findings[1].Offset)
}

func TestClassify_CallEscalatesWarningRuleToCritical(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		globalOp(0, "builtins", "open"),
		callOp(10, "builtins", "open"),
	}

	findings := Classify("data.pkl", ops, DefaultRuleTable())
	require.Len(t, findings, 2)

	// Importing open is a warning; actually invoking it is critical.
	assert.Equal(t, m.SeverityWarning, findings[0].Severity)
	assert.Equal(t, m.SeverityCritical, findings[1].Severity)
}

func TestClassify_UnknownOpcodeDegradesToWarning(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		{Offset: 7, Mnemonic: "UNKNOWN_0xFF", Kind: m.OpUnknown},
	}

	findings := Classify("weights.pkl", ops, DefaultRuleTable())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, m.SeverityWarning, f.Severity)
	assert.Equal(t, m.RuleUnknownOpcode, f.RuleID)
	assert.Equal(t, int64(7), f.Offset)
	assert.Contains(t, f.Message, "UNKNOWN_0xFF")
}

func TestClassify_UnflaggedImportPassesClean(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		globalOp(0, "collections", "OrderedDict"),
		callOp(12, "collections", "OrderedDict"),
	}

	findings := Classify("data.pkl", ops, DefaultRuleTable())
	assert.Empty(t, findings)
}

func TestClassify_UnresolvedTargetsAreSkipped(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{
		{Offset: 0, Mnemonic: "STACK_GLOBAL", Kind: m.OpGlobal},
		{Offset: 1, Mnemonic: "REDUCE", Kind: m.OpCall},
	}

	findings := Classify("data.pkl", ops, DefaultRuleTable())
	assert.Empty(t, findings)
}

func TestClassify_IsPureAcrossCalls(t *testing.T) {
	t.Parallel()

	ops := []m.Operation{globalOp(2, "subprocess", "Popen")}
	table := DefaultRuleTable()

	first := Classify("a.pkl", ops, table)
	second := Classify("a.pkl", ops, table)

	assert.Equal(t, first, second)
}
