// Package ui holds the lipgloss styles and small render helpers of the quiz.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quizflow/quizflow/internal/token"
)

// Classroom palette. Adaptive colors keep text readable on projectors with a
// light background.
var (
	Ink    = lipgloss.AdaptiveColor{Light: "#1B1B1B", Dark: "#F2F2F2"}
	Muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#7A7A7A"}
	Faint  = lipgloss.AdaptiveColor{Light: "#C8C8C8", Dark: "#3A3A3A"}
	Accent = lipgloss.AdaptiveColor{Light: "#0057B8", Dark: "#4FC3F7"}
	Energy = lipgloss.AdaptiveColor{Light: "#B0007A", Dark: "#FF79C6"}
	Good   = lipgloss.AdaptiveColor{Light: "#1E7B34", Dark: "#50FA7B"}
	Bad    = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}
	Warn   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F1FA8C"}
)

// Tier colors match the printed cards: L1 green, L2 amber, L3 red.
var tierColors = map[token.Difficulty]lipgloss.AdaptiveColor{
	token.Easy:   Good,
	token.Medium: Warn,
	token.Hard:   Bad,
}

var (
	TitleStyle       = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	StatusStyle      = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Bad)
	PanelTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(Ink)
	SelectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	InputStyle       = lipgloss.NewStyle().Foreground(Warn).Underline(true)
	DimStyle         = lipgloss.NewStyle().Foreground(Muted)
	DividerStyle     = lipgloss.NewStyle().Foreground(Faint)
	CorrectStyle     = lipgloss.NewStyle().Bold(true).Foreground(Good)
	WrongStyle       = lipgloss.NewStyle().Bold(true).Foreground(Bad).Strikethrough(true)
	RewardStyle      = lipgloss.NewStyle().Foreground(Energy)
	ScanningDotStyle = lipgloss.NewStyle().Bold(true).Foreground(Good).Blink(true)
	IdleDotStyle     = lipgloss.NewStyle().Foreground(Muted)

	PromptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Warn).
			Padding(0, 2)

	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(Warn)
	keyDescStyle = lipgloss.NewStyle().Foreground(Muted)
	barFull      = lipgloss.NewStyle().Foreground(Good)
	barEmpty     = lipgloss.NewStyle().Foreground(Faint)
)

// Tier renders the card label of d ("L2 medium") in the card's color.
func Tier(d token.Difficulty) string {
	c, ok := tierColors[d]
	if !ok {
		return DimStyle.Render("no tier")
	}
	label := strings.TrimPrefix(d.Code(), "q") + " " + d.String()
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render(label)
}

// Bar renders value out of total as a horizontal bar of width cells. Values
// at or below zero draw an empty bar.
func Bar(value, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if value > 0 {
		filled = 1
		if total > 0 {
			filled = max(1, min(value*width/total, width))
		}
	}
	return barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
}

// Key renders a footer hint such as "q Quit".
func Key(key, desc string) string {
	return keyStyle.Render(key) + keyDescStyle.Render(" "+desc)
}
