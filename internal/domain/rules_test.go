package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/opaquebits/modelinspect/internal/model"
)

func TestDefaultRuleTable_BaselineCoverage(t *testing.T) {
	t.Parallel()

	table := DefaultRuleTable()

	tests := []struct {
		module string
		name   string
		rule   string
	}{
		{"os", "system", "exec.os"},
		{"posix", "system", "exec.posix"},
		{"subprocess", "Popen", "exec.subprocess"},
		{"builtins", "eval", "codeload.builtins-eval"},
		{"builtins", "open", "fs.builtins-open"},
		{"types", "CodeType", "codeload.types-code"},
		{"socket", "socket", "net.socket"},
		{"pickle", "loads", "reconstruct.pickle"},
	}

	for _, tt := range tests {
		rule := table.Match(m.Symbol{Module: tt.module, Name: tt.name})
		require.NotNil(t, rule, "%s.%s should be flagged", tt.module, tt.name)
		assert.Equal(t, tt.rule, rule.ID)
	}
}

func TestDefaultRuleTable_BenignSymbolsPass(t *testing.T) {
	t.Parallel()

	table := DefaultRuleTable()

	for _, sym := range []m.Symbol{
		{Module: "collections", Name: "OrderedDict"},
		{Module: "torch._utils", Name: "_rebuild_tensor_v2"},
		{Module: "numpy.core.multiarray", Name: "_reconstruct"},
	} {
		assert.Nil(t, table.Match(sym), "%s should not be flagged", sym)
	}
}

func TestRuleTable_ExactRuleWinsOverWildcard(t *testing.T) {
	t.Parallel()

	table := &RuleTable{Rules: []Rule{
		{ID: "wild", Module: "mod", Name: "*", Severity: m.SeverityWarning, Category: m.CategoryFilesystem},
		{ID: "exact", Module: "mod", Name: "danger", Severity: m.SeverityCritical, Category: m.CategoryExecution},
	}}
	table.buildIndex()

	rule := table.Match(m.Symbol{Module: "mod", Name: "danger"})
	require.NotNil(t, rule)
	assert.Equal(t, "exact", rule.ID)

	rule = table.Match(m.Symbol{Module: "mod", Name: "other"})
	require.NotNil(t, rule)
	assert.Equal(t, "wild", rule.ID)
}

func TestLoadRuleTable_Replace(t *testing.T) {
	t.Parallel()

	path := writeRuleFile(t, `
version: 2
rules:
  - id: custom.exotic
    module: exotic
    name: launch
    severity: CRITICAL
    category: arbitrary-execution
    message: exotic.launch runs commands
`)

	table, err := LoadRuleTable(path)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Version)
	require.Len(t, table.Rules, 1)

	// Replacement tables drop the baseline entirely.
	assert.Nil(t, table.Match(m.Symbol{Module: "os", Name: "system"}))
	assert.NotNil(t, table.Match(m.Symbol{Module: "exotic", Name: "launch"}))
}

func TestLoadRuleTable_Extend(t *testing.T) {
	t.Parallel()

	path := writeRuleFile(t, `
version: 2
extend: true
rules:
  - id: custom.exotic
    module: exotic
    name: "*"
    severity: WARNING
    category: network-access
    message: exotic module phones home
`)

	table, err := LoadRuleTable(path)
	require.NoError(t, err)

	assert.NotNil(t, table.Match(m.Symbol{Module: "os", Name: "system"}), "baseline kept")
	assert.NotNil(t, table.Match(m.Symbol{Module: "exotic", Name: "anything"}), "extension added")
}

func TestLoadRuleTable_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "rules:\n  - module: os\n    severity: CRITICAL\n"},
		{"missing module", "rules:\n  - id: x\n    severity: CRITICAL\n"},
		{"bad severity", "rules:\n  - id: x\n    module: os\n    severity: SEVERE\n"},
		{"not yaml", "rules: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadRuleTable(writeRuleFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRuleTable_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadRuleTable(m.Path(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func writeRuleFile(t *testing.T, content string) m.Path {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return m.Path(path)
}
