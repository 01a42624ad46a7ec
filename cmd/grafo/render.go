package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/petrijr/grafo"
	"github.com/petrijr/grafo/agents"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(14)

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	bullishStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	bearishStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	neutralStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
)

func directionStyle(direction string) lipgloss.Style {
	switch direction {
	case agents.Bullish, agents.ActionBuy:
		return bullishStyle
	case agents.Bearish, agents.ActionSell:
		return bearishStyle
	default:
		return neutralStyle
	}
}

var signalOrder = []struct{ label, key string }{
	{"technical", agents.KeyTechnicalSignal},
	{"fundamentals", agents.KeyFundamentalSignal},
	{"sentiment", agents.KeySentimentSignal},
	{"valuation", agents.KeyValuationSignal},
	{"debate", agents.KeyDebateConclusion},
	{"macro", agents.KeyMacroOutlook},
}

// renderReport turns a completed run into the terminal summary: the decision
// box, the per-analyst signal table, the risk line and, when the report
// analyzer ran, the narrative report.
func renderReport(report *grafo.RunReport) string {
	state := report.Final
	var sections []string

	if v, ok := state.Value(agents.KeyDecision); ok {
		if d, ok := v.(agents.Decision); ok {
			action := directionStyle(d.Action).Render(strings.ToUpper(d.Action))
			body := fmt.Sprintf("%s %d shares  (confidence %.0f%%)\n\n%s",
				action, d.Quantity, d.Confidence*100, d.Reasoning)
			sections = append(sections, boxStyle.Render(titleStyle.Render("DECISION")+"\n"+body))
		}
	}

	var rows []string
	for _, entry := range signalOrder {
		v, ok := state.Value(entry.key)
		if !ok {
			continue
		}
		sig, ok := v.(agents.Signal)
		if !ok {
			continue
		}
		rows = append(rows, fmt.Sprintf("%s %s %3.0f%%  %s",
			labelStyle.Render(entry.label),
			directionStyle(sig.Direction).Render(fmt.Sprintf("%-8s", sig.Direction)),
			sig.Confidence*100,
			sig.Reasoning,
		))
	}
	if v, ok := state.Value(agents.KeyRiskAssessment); ok {
		if risk, ok := v.(agents.RiskAssessment); ok {
			rows = append(rows, fmt.Sprintf("%s %s  %s",
				labelStyle.Render("risk"),
				neutralStyle.Render(fmt.Sprintf("%.1f/10  ", risk.Score)),
				fmt.Sprintf("max position %.0f%% of cash", risk.MaxPositionRatio*100),
			))
		}
	}
	if len(rows) > 0 {
		sections = append(sections, boxStyle.Render(titleStyle.Render("SIGNALS")+"\n"+strings.Join(rows, "\n")))
	}

	if text, ok := state.StringValue(agents.KeyReport); ok && text != "" {
		sections = append(sections, boxStyle.Render(titleStyle.Render("REPORT")+"\n"+text))
	}

	sections = append(sections, labelStyle.Render("run "+report.ID))
	return strings.Join(sections, "\n")
}

// renderFailure summarizes a failed run: the error and which nodes got how far.
func renderFailure(report *grafo.RunReport) string {
	nodes := make([]string, 0, len(report.Nodes))
	for node := range report.Nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	var lines []string
	lines = append(lines, failStyle.Render("RUN FAILED")+"  "+report.Err.Error())
	for _, node := range nodes {
		st := report.Nodes[node]
		if st == grafo.NodePending {
			continue
		}
		style := neutralStyle
		if st == grafo.NodeFailed {
			style = failStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(node), style.Render(string(st))))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
