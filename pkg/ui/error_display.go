package ui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/schardosin/folio/pkg/leads"
	"golang.org/x/term"
)

var (
	// --- COLORS ---
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("226")
	colorWhite  = lipgloss.Color("252")
	colorGrey   = lipgloss.Color("240")

	// --- STYLES ---
	headerStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	// Indentation wrapper
	indentStyle = lipgloss.NewStyle().
			PaddingLeft(3)

	reasonTextStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	suggestionTitleStyle = lipgloss.NewStyle().
				Foreground(colorYellow).
				Bold(true)

	suggestionTextStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	rawErrorTitleStyle = lipgloss.NewStyle().
				Foreground(colorGrey).
				Bold(true)

	rawErrorTextStyle = lipgloss.NewStyle().
				Foreground(colorGrey)
)

// RenderError explains a command failure, with a hint for the failures a
// visitor or operator can fix themselves.
func RenderError(err error) string {
	var verr *leads.ValidationError
	var serr *leads.SubmitError
	var opErr *net.OpError

	switch {
	case errors.As(err, &verr):
		return RenderErrorBox("Check the booking form", verr.Message, "", "")
	case errors.As(err, &serr):
		return RenderErrorBox("Request not sent", serr.Message, "Your answers were kept, try again in a moment.", err.Error())
	case errors.Is(err, syscall.ECONNREFUSED), errors.As(err, &opErr):
		return RenderErrorBox("Cannot reach the folio server", "The relay server did not answer.",
			"Start it with `folio serve`, or set client.server_url in config.yaml.", err.Error())
	default:
		return RenderErrorBox("Error", err.Error(), "", "")
	}
}

// RenderErrorBox: Pure lipgloss implementation with dynamic wrapping
func RenderErrorBox(title, reason, suggestion, originalError string) string {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	// Terminal width minus indent and a safety margin
	contentWidth := width - 5

	header := indentStyle.Render(headerStyle.Render(fmt.Sprintf("✕ %s", title)))

	var bodyBlocks []string
	addSpacer := func() {
		if len(bodyBlocks) > 0 {
			bodyBlocks = append(bodyBlocks, "")
		}
	}

	if reason != "" {
		bodyBlocks = append(bodyBlocks, reasonTextStyle.Width(contentWidth).Render(reason))
	}

	if suggestion != "" {
		addSpacer()
		bodyBlocks = append(bodyBlocks,
			suggestionTitleStyle.Render("Suggestion:"),
			suggestionTextStyle.Width(contentWidth).Render(suggestion),
		)
	}

	if originalError != "" && originalError != reason {
		addSpacer()
		bodyBlocks = append(bodyBlocks,
			rawErrorTitleStyle.Render("Raw Error:"),
			rawErrorTextStyle.Width(contentWidth).Render(strings.TrimSpace(originalError)),
		)
	}

	body := indentStyle.Render(lipgloss.JoinVertical(lipgloss.Left, bodyBlocks...))
	return fmt.Sprintf("\n%s\n%s\n", header, body)
}
