package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eaeptdev/eaept/internal/history"
	"github.com/eaeptdev/eaept/internal/phase"
	"github.com/eaeptdev/eaept/internal/session"
	"github.com/eaeptdev/eaept/internal/workflow"
)

var (
	colorCyan    = lipgloss.Color("#78dce8")
	colorGreen   = lipgloss.Color("#a9dc76")
	colorYellow  = lipgloss.Color("#ffd866")
	colorRed     = lipgloss.Color("#ff6188")
	colorMagenta = lipgloss.Color("#ab9df2")
	colorGray    = lipgloss.Color("#727072")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMagenta)
	labelStyle   = lipgloss.NewStyle().Foreground(colorGray)
	phaseStyle   = lipgloss.NewStyle().Foreground(colorCyan)
	doneStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	pausedStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	runningStyle = lipgloss.NewStyle().Foreground(colorYellow)
)

// statusStyle picks a color for a workflow status.
func statusStyle(status session.Status) lipgloss.Style {
	switch status {
	case session.StatusCompleted:
		return doneStyle
	case session.StatusPaused, session.StatusWaitingUser:
		return pausedStyle
	case session.StatusError:
		return errorStyle
	case session.StatusInProgress:
		return runningStyle
	default:
		return labelStyle
	}
}

// renderStatus formats the current workflow state.
func renderStatus(state *session.State) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("EAEPT Workflow Status") + "\n")
	if state.Task != "" {
		b.WriteString(labelStyle.Render("task:    ") + state.Task + "\n")
	}
	b.WriteString(labelStyle.Render("status:  ") +
		statusStyle(state.Status).Render(string(state.Status)) + "\n")
	b.WriteString(labelStyle.Render("phase:   ") +
		phaseStyle.Render(state.CurrentPhase.String()) + "\n")

	if len(state.Metrics) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	for _, p := range phase.Order {
		m := state.MetricsFor(p)
		if m == nil {
			continue
		}
		marker := runningStyle.Render("open")
		if m.Closed() {
			marker = doneStyle.Render("done")
		}
		b.WriteString(fmt.Sprintf("  %-8s %s  %5.1f min  confidence %.2f  quality %.2f\n",
			p, marker, m.DurationMinutes(), m.CompletionConfidence, m.QualityScore))
		for _, note := range m.Notes {
			b.WriteString("           " + labelStyle.Render(note) + "\n")
		}
	}
	return b.String()
}

// renderSummary formats the finished-workflow summary.
func renderSummary(summary *workflow.Summary) string {
	var b strings.Builder

	b.WriteString("\n" + titleStyle.Render("Workflow Summary") + "\n")
	b.WriteString(labelStyle.Render("phases completed:  ") +
		fmt.Sprintf("%d\n", summary.PhasesCompleted))
	b.WriteString(labelStyle.Render("total duration:    ") +
		fmt.Sprintf("%.1f min\n", summary.TotalDurationMinutes))
	b.WriteString(labelStyle.Render("resource usage:    ") +
		fmt.Sprintf("%d tokens\n", summary.TotalResourceUsage))
	b.WriteString(labelStyle.Render("avg confidence:    ") +
		fmt.Sprintf("%.2f\n", summary.AverageConfidence))
	b.WriteString(labelStyle.Render("avg quality:       ") +
		fmt.Sprintf("%.2f\n", summary.AverageQuality))
	b.WriteString(labelStyle.Render("optimizations:     ") +
		fmt.Sprintf("%d\n", summary.Optimizations))
	return b.String()
}

// renderHistory formats archived sessions, newest first.
func renderHistory(records []*history.Record) string {
	if len(records) == 0 {
		return "no finished sessions\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Session History") + "\n")
	for _, r := range records {
		b.WriteString(fmt.Sprintf("%s  %s  %s\n",
			labelStyle.Render(r.FinishedAt.Format("2006-01-02 15:04")),
			statusStyle(session.Status(r.Status)).Render(fmt.Sprintf("%-9s", r.Status)),
			r.Task))
		b.WriteString(fmt.Sprintf("                    %d phases, %.1f min, %d tokens, %d optimizations\n",
			r.PhasesCompleted, r.TotalDurationMinutes, r.TotalResourceUsage, r.Optimizations))
	}
	return b.String()
}
