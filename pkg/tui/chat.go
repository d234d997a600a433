// Package tui is the terminal rendition of the chat widget.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/relay"
	"github.com/schardosin/folio/pkg/ui"
	"github.com/schardosin/folio/pkg/widget"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	assistantBubbleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	selectedReplyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("86")).
				Bold(true)

	bookingBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226")).
				Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	launcherStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 2)
)

type changedMsg struct{}

type sentMsg struct {
	outcome relay.Outcome
	err     error
}

// Model is the bubbletea model of one chat widget.
type Model struct {
	ctx     context.Context
	ctrl    *widget.Controller
	updates <-chan struct{}

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    chatKeyMap

	replyIdx    int
	width       int
	height      int
	status      string
	wantBooking bool
	rendered    map[string]string
}

// NewModel builds a model over ctrl. updates comes from ctrl.Subscribe.
func NewModel(ctx context.Context, ctrl *widget.Controller, updates <-chan struct{}, status string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4000
	ti.Focus()

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		updates:  updates,
		input:    ti,
		spinner:  ui.NewReplySpinner(),
		help:     help.New(),
		keys:     defaultKeys,
		replyIdx: -1,
		width:    80,
		status:   status,
		rendered: make(map[string]string),
	}
}

// WantsBooking reports whether the model quit to show the booking form.
func (m Model) WantsBooking() bool {
	return m.wantBooking
}

func waitForChange(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return changedMsg{}
	}
}

func (m Model) send(text string, quick bool) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		var (
			outcome relay.Outcome
			err     error
		)
		if quick {
			outcome, err = ctrl.SendQuickReply(ctx, text)
		} else {
			ctrl.SetInput(text)
			outcome, err = ctrl.Send(ctx)
		}
		return sentMsg{outcome: outcome, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.help.Width = msg.Width
		clear(m.rendered)
		return m, nil

	case changedMsg:
		var cmd tea.Cmd
		if m.ctrl.State() == widget.StateStreaming {
			cmd = m.spinner.Tick
		}
		return m, tea.Batch(cmd, waitForChange(m.updates))

	case spinner.TickMsg:
		if m.ctrl.State() != widget.StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sentMsg:
		switch {
		case errors.Is(msg.err, relay.ErrBusy):
			m.status = "Wait for the reply to finish."
		case msg.err != nil:
			m.status = msg.err.Error()
		case msg.outcome == relay.OutcomeFailed:
			m.status = "The assistant is unavailable right now."
		default:
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if snap.Open {
			m.ctrl.Close()
			m.input.Blur()
		} else {
			m.ctrl.Open()
			m.input.Focus()
		}
		return m, nil

	case !snap.Open:
		if msg.Type == tea.KeyEnter {
			m.ctrl.Open()
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.ctrl.Reset()
		m.input.Reset()
		m.replyIdx = -1
		m.status = ""
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		if m.ctrl.Cancel() {
			m.status = "Reply stopped."
		}
		return m, nil

	case key.Matches(msg, m.keys.Book):
		switch {
		case snap.BookingConfirmed:
			m.status = "Your consultation request has already been sent."
		case !snap.BookingVisible:
			m.status = "Tell me a little about your project first."
		default:
			m.wantBooking = true
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.Up) && len(snap.QuickReplies) > 0:
		m.replyIdx = max(m.replyIdx-1, 0)
		return m, nil

	case key.Matches(msg, m.keys.Down) && len(snap.QuickReplies) > 0:
		m.replyIdx = min(m.replyIdx+1, len(snap.QuickReplies)-1)
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			if m.replyIdx >= 0 && m.replyIdx < len(snap.QuickReplies) {
				reply := snap.QuickReplies[m.replyIdx]
				m.replyIdx = -1
				return m, tea.Batch(m.send(reply, true), m.spinner.Tick)
			}
			return m, nil
		}
		if snap.Streaming {
			m.status = "Wait for the reply to finish."
			return m, nil
		}
		m.input.Reset()
		m.replyIdx = -1
		m.status = ""
		return m, tea.Batch(m.send(text, false), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	snap := m.ctrl.Snapshot()
	if !snap.Open {
		return launcherStyle.Render("💬 Chat with me  " + statusStyle.Render("(enter to open, ctrl+c to quit)"))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("folio"))
	b.WriteString("\n\n")

	for i, turn := range snap.Turns {
		streamingTurn := snap.Streaming && i == len(snap.Turns)-1
		b.WriteString(m.renderTurn(turn, streamingTurn))
		b.WriteString("\n\n")
	}

	if snap.Streaming {
		b.WriteString(m.spinner.View())
		b.WriteString("\n")
	}

	for i, reply := range snap.QuickReplies {
		if i == m.replyIdx {
			b.WriteString(selectedReplyStyle.Render("› " + reply))
		} else {
			b.WriteString(replyStyle.Render("  " + reply))
		}
		b.WriteString("\n")
	}

	if snap.BookingVisible && !snap.BookingConfirmed {
		b.WriteString(bookingBannerStyle.Render("📅 Ready to talk? Press ctrl+b to book a free consultation."))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTurn(turn conversation.Turn, streaming bool) string {
	bubbleWidth := max(m.width*3/4, 20)

	if turn.Role == conversation.RoleUser {
		bubble := userBubbleStyle.MaxWidth(bubbleWidth).Render(turn.Content)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
	}

	if turn.Content == "" {
		return ""
	}
	// Markdown rendering is deferred until the reply settles
	if streaming {
		return assistantBubbleStyle.Width(bubbleWidth).Render(turn.Content)
	}
	out, ok := m.rendered[turn.Content]
	if !ok {
		out = ui.RenderMarkdown(turn.Content, bubbleWidth)
		m.rendered[turn.Content] = out
	}
	return out
}

// Run shows the chat until the user quits. Booking leaves the alternate
// screen for the form and comes back to the conversation afterwards.
func Run(ctx context.Context, ctrl *widget.Controller, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctrl.Open()
	status := ""
	var prefill leads.Form

	for {
		program := tea.NewProgram(NewModel(ctx, ctrl, updates, status), tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := program.Run()
		if err != nil {
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error running chat: %w", err)
		}
		if m, ok := final.(Model); !ok || !m.WantsBooking() {
			return nil
		}

		form, err := ui.ReadLeadForm(prefill, now())
		if errors.Is(err, ui.ErrFormAborted) {
			status = "Booking cancelled. Press ctrl+b when you're ready."
			continue
		}
		if err != nil {
			return err
		}

		if _, err := ctrl.SubmitLead(ctx, form); err != nil {
			prefill = form
			status = submitStatus(err)
			continue
		}
		prefill = leads.Form{}
		status = "Consultation requested. Talk soon!"
	}
}

func submitStatus(err error) string {
	var verr *leads.ValidationError
	var serr *leads.SubmitError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &serr):
		return serr.Message
	case errors.Is(err, widget.ErrAlreadySubmitted):
		return "Your consultation request has already been sent."
	default:
		return leads.GenericSubmitMessage
	}
}
