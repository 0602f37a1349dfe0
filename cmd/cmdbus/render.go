package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cmdbus/internal/commands"
	"cmdbus/internal/events"
)

// Terminal palette
var (
	AccentColor  = lipgloss.Color("#7C3AED")
	SuccessColor = lipgloss.Color("#10B981")
	WarningColor = lipgloss.Color("#F59E0B")
	ErrorColor   = lipgloss.Color("#EF4444")
	MutedColor   = lipgloss.Color("#6B7280")
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(AccentColor).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(AccentColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	warningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
)

func renderPrompt(origin commands.Origin) string {
	return promptStyle.Render(fmt.Sprintf("%s@%s>", origin.User.ID, origin.Room)) + " "
}

// renderReply prefixes every line of a bot reply.
func renderReply(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = botStyle.Render("bot:") + " " + line
	}
	return strings.Join(lines, "\n")
}

func renderError(err error) string {
	return errorStyle.Render("error:") + " " + err.Error()
}

func renderEvent(e events.Event) string {
	var style lipgloss.Style
	switch e.Type {
	case events.PermissionDenied, events.Error, events.ValidationFailed:
		style = warningStyle
	default:
		style = mutedStyle
	}
	return style.Render(fmt.Sprintf("  [%d] %s", e.ID, e.String()))
}

func renderCommand(cmd commands.Command) string {
	line := idStyle.Render(cmd.ID)
	if cmd.Description != "" {
		line += "  " + cmd.Description
	}
	if len(cmd.Aliases) > 0 {
		line += mutedStyle.Render(" (" + strings.Join(cmd.Aliases, ", ") + ")")
	}
	return line
}

func renderSearchResult(r commands.SearchResult) string {
	return fmt.Sprintf("%s %s  %s",
		mutedStyle.Render(fmt.Sprintf("%3d", r.Score)),
		idStyle.Render(r.Command.ID),
		mutedStyle.Render(string(r.MatchedOn)))
}
