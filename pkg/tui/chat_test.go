package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/sse"
	"github.com/schardosin/folio/pkg/widget"
)

func newTestModel(t *testing.T, settings widget.Settings) (Model, *widget.Controller) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		sw, err := sse.NewWriter(w)
		if err != nil {
			t.Errorf("writer: %v", err)
			return
		}
		_ = sw.WriteDelta("Glad you asked.")
		_ = sw.WriteDone()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctrl, err := widget.New(widget.Options{
		ChatEndpoint:  srv.URL + "/api/chat",
		LeadsEndpoint: srv.URL + "/api/leads",
		Settings:      settings,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctrl.Open()

	updates, unsubscribe := ctrl.Subscribe()
	t.Cleanup(unsubscribe)
	return NewModel(context.Background(), ctrl, updates, ""), ctrl
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func TestModel_SendTypedMessage(t *testing.T) {
	m, ctrl := newTestModel(t, widget.Settings{})

	for _, r := range "hello" {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if m.input.Value() != "hello" {
		t.Fatalf("expected typed input, got %q", m.input.Value())
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.input.Value() != "" {
		t.Errorf("expected input to clear after send, got %q", m.input.Value())
	}
	if cmd == nil {
		t.Fatal("expected a send command")
	}

	sent := m.send("hello again", false)()
	if res, ok := sent.(sentMsg); !ok || res.err != nil {
		t.Fatalf("unexpected send result %#v", sent)
	}

	turns := ctrl.Snapshot().Turns
	if got := turns[len(turns)-1].Content; got != "Glad you asked." {
		t.Errorf("expected streamed reply, got %q", got)
	}
}

func TestModel_QuickReplySelection(t *testing.T) {
	m, ctrl := newTestModel(t, widget.Settings{QuickReplies: []string{"Pricing", "Timeline"}})

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.replyIdx != 1 {
		t.Fatalf("expected second suggestion selected, got %d", m.replyIdx)
	}
	if !strings.Contains(m.View(), "› Timeline") {
		t.Errorf("expected selection marker in view:\n%s", m.View())
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || m.replyIdx != -1 {
		t.Fatal("expected the quick reply to be sent")
	}

	if _, err := ctrl.SendQuickReply(context.Background(), "Timeline"); err != nil {
		t.Fatal(err)
	}
	if len(ctrl.Snapshot().QuickReplies) != 0 {
		t.Error("quick replies should disappear once the conversation starts")
	}
}

func TestModel_ToggleAndReset(t *testing.T) {
	m, ctrl := newTestModel(t, widget.Settings{WelcomeMessage: "Welcome!"})

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if ctrl.State() != widget.StateClosed {
		t.Fatalf("expected closed widget, got %s", ctrl.State())
	}
	if !strings.Contains(m.View(), "Chat with me") {
		t.Errorf("expected launcher view, got:\n%s", m.View())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if ctrl.State() != widget.StateIdle {
		t.Fatalf("expected open widget, got %s", ctrl.State())
	}

	ctrl.ShowBooking()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	snap := ctrl.Snapshot()
	if snap.BookingVisible || len(snap.Turns) != 1 {
		t.Errorf("expected reset conversation, got %+v", snap)
	}
	if !strings.Contains(m.View(), "Welcome!") {
		t.Errorf("expected welcome turn in view")
	}
}

func TestModel_BookingKey(t *testing.T) {
	m, ctrl := newTestModel(t, widget.Settings{})

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	if m.WantsBooking() || cmd != nil {
		t.Fatal("booking should not open before it is offered")
	}

	ctrl.ShowBooking()
	if !strings.Contains(m.View(), "ctrl+b to book") {
		t.Errorf("expected booking banner in view")
	}
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	if !m.WantsBooking() || cmd == nil {
		t.Fatal("expected the model to quit for the booking form")
	}
}

func TestSubmitStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&leads.ValidationError{Field: "email", Message: leads.MsgInvalidEmail}, leads.MsgInvalidEmail},
		{&leads.SubmitError{StatusCode: 500, Message: "Could not save"}, "Could not save"},
		{widget.ErrAlreadySubmitted, "already been sent"},
		{context.DeadlineExceeded, leads.GenericSubmitMessage},
	}
	for _, tt := range tests {
		if got := submitStatus(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("submitStatus(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWaitForChange(t *testing.T) {
	updates := make(chan struct{}, 1)
	updates <- struct{}{}

	done := make(chan tea.Msg, 1)
	go func() { done <- waitForChange(updates)() }()

	select {
	case msg := <-done:
		if _, ok := msg.(changedMsg); !ok {
			t.Errorf("expected changedMsg, got %T", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("waitForChange did not return")
	}
}
