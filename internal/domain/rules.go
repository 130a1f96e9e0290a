// Package domain contains the core scanning workflow and risk
// classification logic.
package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// Rule flags one module attribute that a payload should never import or
// call. Name "*" matches every attribute of the module.
type Rule struct {
	ID       string     `yaml:"id"`
	Module   string     `yaml:"module"`
	Name     string     `yaml:"name"`
	Severity m.Severity `yaml:"severity"`
	Category string     `yaml:"category"`
	Message  string     `yaml:"message"`
}

// RuleTable is the deny-list the classifier matches import targets
// against. It is plain data: versioned, diff-able, and loadable from YAML
// so new dangerous primitives can be added without a rebuild. A table is
// read-only after construction and safe to share across payload scans.
type RuleTable struct {
	Version int    `yaml:"version"`
	Extend  bool   `yaml:"extend"` // when true, loaded rules append to the defaults
	Rules   []Rule `yaml:"rules"`

	index map[string][]*Rule
}

// LoadRuleTable reads a rule table from a YAML file. Tables with
// `extend: true` keep the default rules and append their own.
func LoadRuleTable(path m.Path) (*RuleTable, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}

	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse rule table %s: %w", path, err)
	}

	for i, rule := range table.Rules {
		if rule.ID == "" || rule.Module == "" {
			return nil, fmt.Errorf("rule table %s: rule %d missing id or module", path, i)
		}

		if rule.Severity.Rank() == 0 {
			return nil, fmt.Errorf("rule table %s: rule %s has unknown severity %q", path, rule.ID, rule.Severity)
		}
	}

	if table.Extend {
		table.Rules = append(defaultRules(), table.Rules...)
	}

	table.buildIndex()

	return &table, nil
}

// DefaultRuleTable returns the built-in deny-list.
func DefaultRuleTable() *RuleTable {
	table := &RuleTable{Version: 1, Rules: defaultRules()}
	table.buildIndex()

	return table
}

func (t *RuleTable) buildIndex() {
	t.index = make(map[string][]*Rule, len(t.Rules))

	for i := range t.Rules {
		rule := &t.Rules[i]
		t.index[rule.Module] = append(t.index[rule.Module], rule)
	}
}

// Match returns the rule covering a module attribute, or nil. Exact
// attribute rules win over module wildcards.
func (t *RuleTable) Match(sym m.Symbol) *Rule {
	var wildcard *Rule

	for _, rule := range t.index[sym.Module] {
		if rule.Name == sym.Name {
			return rule
		}

		if rule.Name == "*" && wildcard == nil {
			wildcard = rule
		}
	}

	return wildcard
}

// defaultRules is the baseline deny-list of import primitives known to be
// dangerous inside pickle streams. Curated against the current pickle
// exploitation surface; override or extend via a YAML table at runtime.
func defaultRules() []Rule {
	crit := func(id, module, name, category, message string) Rule {
		return Rule{ID: id, Module: module, Name: name, Severity: m.SeverityCritical, Category: category, Message: message}
	}
	warn := func(id, module, name, category, message string) Rule {
		return Rule{ID: id, Module: module, Name: name, Severity: m.SeverityWarning, Category: category, Message: message}
	}

	return []Rule{
		// Process spawning.
		crit("exec.os", "os", "*", m.CategoryExecution, "reference to os module (process and filesystem control)"),
		crit("exec.posix", "posix", "*", m.CategoryExecution, "reference to posix module (process control)"),
		crit("exec.nt", "nt", "*", m.CategoryExecution, "reference to nt module (process control)"),
		crit("exec.subprocess", "subprocess", "*", m.CategoryExecution, "reference to subprocess module (process spawning)"),
		crit("exec.pty", "pty", "*", m.CategoryExecution, "reference to pty module (shell spawning)"),
		crit("exec.commands", "commands", "*", m.CategoryExecution, "reference to legacy commands module (shell execution)"),
		crit("exec.popen2", "popen2", "*", m.CategoryExecution, "reference to legacy popen2 module (process spawning)"),

		// Dynamic code loading.
		crit("codeload.builtins-eval", "builtins", "eval", m.CategoryCodeLoading, "builtins.eval evaluates arbitrary expressions"),
		crit("codeload.builtins-exec", "builtins", "exec", m.CategoryCodeLoading, "builtins.exec executes arbitrary statements"),
		crit("codeload.builtins-compile", "builtins", "compile", m.CategoryCodeLoading, "builtins.compile builds executable code objects"),
		crit("codeload.builtins-import", "builtins", "__import__", m.CategoryCodeLoading, "builtins.__import__ loads arbitrary modules"),
		crit("codeload.builtins-getattr", "builtins", "getattr", m.CategoryCodeLoading, "builtins.getattr reaches arbitrary attributes"),
		crit("codeload.builtins-apply", "builtins", "apply", m.CategoryCodeLoading, "builtins.apply invokes arbitrary callables"),
		crit("codeload.py2-eval", "__builtin__", "eval", m.CategoryCodeLoading, "__builtin__.eval evaluates arbitrary expressions"),
		crit("codeload.py2-exec", "__builtin__", "exec", m.CategoryCodeLoading, "__builtin__.exec executes arbitrary statements"),
		crit("codeload.py2-compile", "__builtin__", "compile", m.CategoryCodeLoading, "__builtin__.compile builds executable code objects"),
		crit("codeload.py2-import", "__builtin__", "__import__", m.CategoryCodeLoading, "__builtin__.__import__ loads arbitrary modules"),
		crit("codeload.py2-getattr", "__builtin__", "getattr", m.CategoryCodeLoading, "__builtin__.getattr reaches arbitrary attributes"),
		crit("codeload.importlib", "importlib", "*", m.CategoryCodeLoading, "importlib loads arbitrary modules"),
		crit("codeload.imp", "imp", "*", m.CategoryCodeLoading, "imp loads arbitrary modules"),
		crit("codeload.runpy", "runpy", "*", m.CategoryCodeLoading, "runpy executes arbitrary modules"),
		crit("codeload.marshal", "marshal", "*", m.CategoryCodeLoading, "marshal deserializes code objects"),
		crit("codeload.types-code", "types", "CodeType", m.CategoryCodeLoading, "types.CodeType constructs code objects"),
		crit("codeload.types-function", "types", "FunctionType", m.CategoryCodeLoading, "types.FunctionType constructs functions"),
		crit("codeload.operator-attrgetter", "operator", "attrgetter", m.CategoryCodeLoading, "operator.attrgetter reaches arbitrary attributes"),
		crit("codeload.functools-partial", "functools", "partial", m.CategoryCodeLoading, "functools.partial defers arbitrary calls"),
		crit("codeload.sys", "sys", "*", m.CategoryCodeLoading, "sys reaches interpreter internals"),

		// Nested deserialization.
		crit("reconstruct.pickle", "pickle", "*", m.CategoryReconstruction, "nested pickle load"),
		crit("reconstruct.cpickle", "_pickle", "*", m.CategoryReconstruction, "nested pickle load"),
		crit("reconstruct.py2-cpickle", "cPickle", "*", m.CategoryReconstruction, "nested pickle load"),

		// Network reach.
		crit("net.socket", "socket", "*", m.CategoryNetwork, "socket opens network connections"),
		crit("net.urllib", "urllib.request", "*", m.CategoryNetwork, "urllib.request fetches remote content"),
		crit("net.httpclient", "http.client", "*", m.CategoryNetwork, "http.client opens HTTP connections"),
		crit("net.requests", "requests.api", "*", m.CategoryNetwork, "requests fetches remote content"),
		warn("net.webbrowser", "webbrowser", "*", m.CategoryNetwork, "webbrowser opens attacker-chosen URLs"),
		warn("net.smtplib", "smtplib", "*", m.CategoryNetwork, "smtplib sends mail"),
		warn("net.ftplib", "ftplib", "*", m.CategoryNetwork, "ftplib transfers files over the network"),

		// Filesystem reach.
		warn("fs.builtins-open", "builtins", "open", m.CategoryFilesystem, "builtins.open reads or writes files"),
		warn("fs.py2-open", "__builtin__", "open", m.CategoryFilesystem, "__builtin__.open reads or writes files"),
		warn("fs.io", "io", "*", m.CategoryFilesystem, "io opens file streams"),
		warn("fs.shutil", "shutil", "*", m.CategoryFilesystem, "shutil moves and deletes file trees"),
		warn("fs.pathlib", "pathlib", "*", m.CategoryFilesystem, "pathlib touches the filesystem"),
		warn("fs.tempfile", "tempfile", "*", m.CategoryFilesystem, "tempfile creates files"),
	}
}
