package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/ui"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	switch m.view {
	case ViewLobby:
		sections = append(sections, m.renderLobby())
	case ViewSelectPlayer:
		sections = append(sections, m.renderSelectPlayer())
	case ViewScan:
		sections = append(sections, m.renderScan())
	case ViewQuiz:
		sections = append(sections, m.renderQuiz())
	case ViewResult:
		sections = append(sections, m.renderResult())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	if m.status != "" {
		sections = append(sections, m.renderStatus())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("QUIZFLOW")
	var session string
	if id := m.deps.State.SessionID(); id != "" {
		session = ui.DimStyle.Render(" · session " + id)
	}
	var player string
	if p, ok := m.deps.State.ActingPlayer(); ok && m.view != ViewLobby && m.view != ViewResult {
		player = ui.DimStyle.Render(" · ") + ui.SelectedStyle.Render(p.Name)
	}
	return title + session + player
}

func (m Model) renderStatus() string {
	if m.statusErr {
		return ui.ErrorTextStyle.Render(m.status)
	}
	return ui.StatusStyle.Render(m.status)
}

func (m Model) renderLobby() string {
	var lines []string
	if m.deps.State.LoggedIn() {
		lines = append(lines, ui.PanelTitleStyle.Render("SESSION IN PROGRESS"))
		for i, name := range m.names {
			if name == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, name))
		}
		if m.confirmCamera {
			lines = append(lines, "", ui.PromptStyle.Render("Open the camera now? (y/n)"))
		}
		return strings.Join(lines, "\n")
	}

	lines = append(lines, ui.PanelTitleStyle.Render("NEW SESSION"))
	lines = append(lines, ui.DimStyle.Render("  Enter up to four names. Blank slots get a default name."))
	lines = append(lines, "")
	for i, name := range m.names {
		label := fmt.Sprintf("Player %d: ", i+1)
		if i == m.field {
			lines = append(lines, ui.SelectedStyle.Render("> "+label)+ui.InputStyle.Render(name+"▌"))
			continue
		}
		shown := name
		if shown == "" {
			shown = ui.DimStyle.Render(quiz.DefaultName(i))
		}
		lines = append(lines, "  "+label+shown)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSelectPlayer() string {
	roster := m.deps.State.Roster()
	lines := []string{ui.PanelTitleStyle.Render("WHO IS ANSWERING?")}
	if len(roster) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No players in this session."))
	}
	for i, p := range roster {
		line := fmt.Sprintf("%d. %-16s %d correct", i+1, p.Name, p.Score)
		if i == m.cursor {
			lines = append(lines, ui.SelectedStyle.Render("> "+line))
		} else {
			lines = append(lines, "  "+line)
		}
	}
	if m.confirmLogout {
		lines = append(lines, "", ui.PromptStyle.Render("End the session and show results? (y/n)"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderScan() string {
	var dot string
	if m.scanner != nil && m.scanner.State() == ScanScanning && m.scanner.Status().Running {
		dot = ui.ScanningDotStyle.Render("● SCANNING")
	} else {
		dot = ui.IdleDotStyle.Render("○ CAMERA")
	}
	lines := []string{
		dot + "  " + ui.DimStyle.Render(m.scanStatus),
		"",
		"  Hold an L1, L2 or L3 card up to the camera.",
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderQuiz() string {
	if m.question == nil {
		if m.loading {
			return ui.DimStyle.Render("  Loading question...")
		}
		return ""
	}
	q := m.question
	width := max(20, m.width-4)

	var lines []string
	for _, l := range wrapText(q.Text, width) {
		lines = append(lines, ui.PanelTitleStyle.Render(l))
	}
	lines = append(lines, ui.Tier(q.Difficulty)+"  "+ui.RewardStyle.Render(fmt.Sprintf("A correct answer earns %d energy.", q.Reward)), "")

	for i, opt := range q.Options {
		line := fmt.Sprintf("%d. %s", i+1, opt)
		switch {
		case m.result != nil && i == q.CorrectIndex:
			lines = append(lines, ui.CorrectStyle.Render("✓ "+line))
		case m.result != nil && i == m.choice:
			lines = append(lines, ui.WrongStyle.Render("✗ "+line))
		case m.answered:
			lines = append(lines, ui.DimStyle.Render("  "+line))
		case i == m.choice:
			lines = append(lines, ui.SelectedStyle.Render("> "+line))
		default:
			lines = append(lines, "  "+line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderResult() string {
	lines := []string{ui.PanelTitleStyle.Render("RESULTS")}
	best := 0
	nameW := 0
	for _, s := range m.scores {
		best = max(best, s.Correct)
		nameW = max(nameW, lipgloss.Width(s.Name))
	}
	barW := max(10, min(40, m.width-nameW-12))
	for _, s := range m.scores {
		lines = append(lines, fmt.Sprintf("  %s %s %d", padRight(s.Name, nameW), ui.Bar(s.Correct, best, barW), s.Correct))
	}
	if len(m.scores) == 0 {
		lines = append(lines, ui.DimStyle.Render("  Nobody played."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string
	switch m.view {
	case ViewLobby:
		if m.deps.State.LoggedIn() {
			parts = append(parts, ui.Key("Enter", "Players"), ui.Key("c", "Camera"), ui.Key("q", "Quit"))
		} else {
			parts = append(parts, ui.Key("Tab", "Next"), ui.Key("Enter", "Create"), ui.Key("Esc", "Quit"))
		}
	case ViewSelectPlayer:
		parts = append(parts, ui.Key("j/k", "Nav"), ui.Key("Enter", "Scan"), ui.Key("l", "Logout"), ui.Key("Esc", "Lobby"))
	case ViewScan:
		parts = append(parts, ui.Key("r", "Retry"), ui.Key("Esc", "Back"))
	case ViewQuiz:
		parts = append(parts, ui.Key(fmt.Sprintf("1-%d", max(1, m.optionCount())), "Answer"), ui.Key("j/k", "Nav"), ui.Key("Enter", "Choose"))
	case ViewResult:
		parts = append(parts, ui.Key("Enter", "Back to lobby"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) optionCount() int {
	if m.question == nil {
		return 0
	}
	return len(m.question.Options)
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
