package controller

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// findingItem adapts one finding to the bubbles list.
type findingItem struct {
	finding m.Finding
}

func (i findingItem) FilterValue() string {
	return i.finding.Payload + " " + i.finding.RuleID + " " + i.finding.Message
}

// findingDelegate renders one finding per row with a severity badge.
type findingDelegate struct{}

func (d findingDelegate) Height() int  { return 1 }
func (d findingDelegate) Spacing() int { return 0 }
func (d findingDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d findingDelegate) Render(w io.Writer, lm list.Model, index int, item list.Item) {
	fi, ok := item.(findingItem)
	if !ok {
		return
	}

	line := fmt.Sprintf("%s %-24s %s @%d  %s",
		severityBadge(fi.finding.Severity),
		fi.finding.RuleID,
		fi.finding.Payload,
		fi.finding.Offset,
		fi.finding.Message,
	)

	width := lm.Width() - 2
	line = truncateToWidth(line, width)

	if index == lm.Index() {
		line = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6")).
			Render(truncateToWidth(fmt.Sprintf("%-8s %-24s %s @%d  %s",
				fi.finding.Severity,
				fi.finding.RuleID,
				fi.finding.Payload,
				fi.finding.Offset,
				fi.finding.Message,
			), width))
	}

	_, _ = fmt.Fprint(w, line)
}

// viewModel browses stored reports: left/right switches reports, the
// findings of the current report fill a filterable list.
type viewModel struct {
	reports  []m.Report
	current  int
	width    int
	height   int
	findings list.Model
}

func newViewModel(reports []m.Report) viewModel {
	findings := list.New([]list.Item{}, findingDelegate{}, 80, 20)
	findings.SetShowPagination(false)
	findings.SetShowFilter(true)
	findings.SetShowHelp(false)
	findings.SetShowTitle(false)
	findings.SetShowStatusBar(false)
	findings.FilterInput.Placeholder = "Filter findings…"

	vm := viewModel{reports: reports, findings: findings}
	vm.loadCurrent()

	return vm
}

func (vm *viewModel) loadCurrent() {
	report := vm.reports[vm.current]

	items := make([]list.Item, 0, len(report.Findings))
	for _, f := range report.Findings {
		items = append(items, findingItem{finding: f})
	}

	vm.findings.SetItems(items)
}

func (vm viewModel) Init() tea.Cmd {
	return nil
}

func (vm viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		vm.width = msg.Width
		vm.height = msg.Height
		vm.findings.SetWidth(vm.width - 6)

		return vm, nil

	case tea.KeyMsg:
		if vm.findings.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return vm, tea.Quit

		case "left", "h":
			if vm.current > 0 {
				vm.current--
				vm.loadCurrent()
			}

			return vm, nil

		case "right", "l":
			if vm.current < len(vm.reports)-1 {
				vm.current++
				vm.loadCurrent()
			}

			return vm, nil
		}
	}

	var cmd tea.Cmd

	vm.findings, cmd = vm.findings.Update(msg)

	return vm, cmd
}

func (vm viewModel) View() string {
	report := vm.reports[vm.current]

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true).
		Padding(1, 0, 0, 2)

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Padding(0, 0, 1, 2)

	title := titleStyle.Render(fmt.Sprintf("Report %d/%d  %s", vm.current+1, len(vm.reports), report.Artifact))

	summary := summaryStyle.Render(fmt.Sprintf(
		"Verdict: %s   Findings: %d   Payloads: %d   Scan: %s",
		verdictBadge(report.Verdict), len(report.Findings), report.PayloadsScanned, report.ScanID,
	))

	listHeight := vm.height - 9
	if listHeight < 5 {
		listHeight = 5
	}

	vm.findings.SetHeight(listHeight)

	container := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Margin(0, 1).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Align(lipgloss.Center).
		Width(vm.width)

	footer := footerStyle.Render("↑/k up • ↓/j down • ←/→ switch report • / filter • q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		summary,
		container.Render(vm.findings.View()),
		footer,
	)
}

func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}

	if lipgloss.Width(text) <= width {
		return text
	}

	const ellipsis = "…"

	maxWidth := width - lipgloss.Width(ellipsis)
	if maxWidth <= 0 {
		return ellipsis
	}

	currentWidth := 0

	result := make([]rune, 0, len(text))
	for _, r := range text {
		rWidth := lipgloss.Width(string(r))
		if currentWidth+rWidth > maxWidth {
			break
		}

		result = append(result, r)
		currentWidth += rWidth
	}

	return string(result) + ellipsis
}
