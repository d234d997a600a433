package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schardosin/folio/pkg/leads"
)

var (
	leadBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purple border
			Padding(0, 2).
			Width(64)

	leadTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // Cyan
			Bold(true)

	leadKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")). // Gray
			Width(11)

	leadValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // White

	statNumberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Width(6).
			Align(lipgloss.Right)
)

// RenderLeadCard renders one captured lead as a bordered card.
func RenderLeadCard(lead leads.Lead) string {
	var content strings.Builder

	content.WriteString(leadTitleStyle.Render(lead.Name))
	content.WriteString("  ")
	content.WriteString(leadKeyStyle.UnsetWidth().Render(lead.CreatedAt.Local().Format("2006-01-02 15:04")))
	content.WriteString("\n\n")

	row := func(key, value string) {
		content.WriteString(fmt.Sprintf("%s %s\n", leadKeyStyle.Render(key), leadValueStyle.Render(value)))
	}
	row("Email", lead.Email)
	if lead.Phone != nil {
		row("Phone", *lead.Phone)
	}
	row("Date", lead.PreferredDate)

	desc := lead.ProjectDescription
	// Keep cards compact
	if runes := []rune(desc); len(runes) > 300 {
		desc = string(runes[:297]) + "..."
	}
	content.WriteString("\n")
	content.WriteString(leadValueStyle.Width(58).Render(desc))

	return leadBoxStyle.Render(strings.TrimSpace(content.String())) + "\n"
}

// RenderStats renders lead counters as a small table.
func RenderStats(stats leads.Stats) string {
	lines := []string{
		leadTitleStyle.Render("Leads"),
		fmt.Sprintf("%s %s", statNumberStyle.Render(fmt.Sprint(stats.Total)), leadValueStyle.Render("total")),
		fmt.Sprintf("%s %s", statNumberStyle.Render(fmt.Sprint(stats.Upcoming)), leadValueStyle.Render("upcoming consultations")),
		fmt.Sprintf("%s %s", statNumberStyle.Render(fmt.Sprint(stats.ThisMonth)), leadValueStyle.Render("received this month")),
	}
	return leadBoxStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}
