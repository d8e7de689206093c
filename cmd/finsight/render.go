package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yanmxa/finsight/internal/stream"
)

const wrapWidth = 100

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"})
	stepStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	toolStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"})
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func stepLine(e stream.Event) string {
	line := "  → " + toolStyle.Render(e.ToolName)
	if e.Input != "" {
		line += " " + stepStyle.Render(truncate(e.Input, 80))
	}
	return line
}

func footer(f *stream.FinishInfo, sessionID string) string {
	if f == nil {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf("%s · %d rounds · %d tokens · %.1fs · session %s",
		f.Model, f.Rounds, f.Usage.TotalTokens, float64(f.ProcessingTimeMs)/1000, sessionID))
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
