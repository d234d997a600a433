package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/relay"
	"github.com/schardosin/folio/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)

// fakeRelay serves /api/chat, /api/leads and /api/widget.
type fakeRelay struct {
	t *testing.T

	mu        sync.Mutex
	reply     []string
	block     chan struct{}
	chatCalls int32
	leadCalls int32
	leadFail  bool
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.chatCalls, 1)
		f.mu.Lock()
		reply, block := f.reply, f.block
		f.mu.Unlock()

		sw, err := sse.NewWriter(w)
		if err != nil {
			f.t.Errorf("writer: %v", err)
			return
		}
		for _, d := range reply {
			_ = sw.WriteDelta(d)
		}
		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		_ = sw.WriteDone()
	})
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.leadCalls, 1)
		f.mu.Lock()
		fail := f.leadFail
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Could not save your request."})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "lead-1"})
	})
	mux.HandleFunc("/api/widget", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Settings{
			WelcomeMessage:       "Welcome from the server",
			BookingTriggers:      []string{"let's meet"},
			BookingTurnThreshold: 2,
		})
	})
	return mux
}

func newWidget(t *testing.T, f *fakeRelay, settings Settings) *Controller {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := New(Options{
		ChatEndpoint:  srv.URL + "/api/chat",
		LeadsEndpoint: srv.URL + "/api/leads",
		Token:         "public",
		Settings:      settings,
		Now:           func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return c
}

func validLead() leads.Form {
	return leads.Form{
		Name:               "Grace Hopper",
		Email:              "grace@example.com",
		ProjectDescription: "Compiler consulting",
		PreferredDate:      "2026-05-07",
	}
}

func TestController_InitialState(t *testing.T) {
	c := newWidget(t, &fakeRelay{}, Settings{WelcomeMessage: "Hello!"})

	snap := c.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, []conversation.Turn{{Role: conversation.RoleAssistant, Content: "Hello!"}}, snap.Turns)
	assert.False(t, snap.BookingVisible)
}

func TestController_SendRequiresOpen(t *testing.T) {
	f := &fakeRelay{reply: []string{"hi"}}
	c := newWidget(t, f, Settings{})

	c.SetInput("hello")
	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, atomic.LoadInt32(&f.chatCalls))
}

func TestController_SendStreamsAndReturnsToIdle(t *testing.T) {
	f := &fakeRelay{reply: []string{"Sure, ", "tell me more."}}
	c := newWidget(t, f, Settings{})
	c.Open()
	assert.Equal(t, StateIdle, c.State())

	c.SetInput("I need an app")
	outcome, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeCompleted, outcome)

	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Input)
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, "Sure, tell me more.", snap.Turns[2].Content)
	assert.Empty(t, snap.QuickReplies, "quick replies only under the welcome turn")
}

func TestController_BlankInputIsRejected(t *testing.T) {
	f := &fakeRelay{}
	c := newWidget(t, f, Settings{})
	c.Open()
	c.SetInput("   ")

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, relay.ErrEmptyMessage)
	assert.Zero(t, atomic.LoadInt32(&f.chatCalls))
}

func TestController_StreamingStateAndBusyRejection(t *testing.T) {
	f := &fakeRelay{reply: []string{"thinking"}, block: make(chan struct{})}
	c := newWidget(t, f, Settings{})
	c.Open()

	c.SetInput("first")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background())
	}()

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, time.Second, 5*time.Millisecond)

	c.SetInput("second")
	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, relay.ErrBusy)
	assert.Equal(t, "second", c.Snapshot().Input, "rejected input stays in the box")

	close(f.block)
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.chatCalls))
	assert.Equal(t, StateIdle, c.State())
}

func TestController_TriggerPhraseRevealsBooking(t *testing.T) {
	f := &fakeRelay{reply: []string{"Happy to help. Would you like to book a call?"}}
	c := newWidget(t, f, Settings{})
	c.Open()

	c.SetInput("Can we talk?")
	_, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateBooking, c.State())
}

func TestController_TurnThresholdRevealsBooking(t *testing.T) {
	f := &fakeRelay{reply: []string{"ok"}}
	c := newWidget(t, f, Settings{BookingTurnThreshold: 2})
	c.Open()

	c.SetInput("one")
	_, _ = c.Send(context.Background())
	assert.Equal(t, StateIdle, c.State())

	c.SetInput("two")
	_, _ = c.Send(context.Background())
	assert.Equal(t, StateBooking, c.State())
}

func TestController_NegativeThresholdDisablesReveal(t *testing.T) {
	f := &fakeRelay{reply: []string{"ok"}}
	c := newWidget(t, f, Settings{BookingTurnThreshold: -1})
	c.Open()

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		c.SetInput(msg)
		_, _ = c.Send(context.Background())
	}
	assert.Equal(t, StateIdle, c.State())
}

func TestController_BookingIsMonotonicUntilReset(t *testing.T) {
	f := &fakeRelay{reply: []string{"ok"}}
	c := newWidget(t, f, Settings{})
	c.Open()
	c.ShowBooking()

	c.SetInput("more chat")
	_, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateBooking, c.State(), "chat stays usable with booking visible")

	c.Close()
	assert.Equal(t, StateClosed, c.State())
	c.Open()
	assert.Equal(t, StateBooking, c.State())

	c.Reset()
	assert.Equal(t, StateIdle, c.State())
}

func TestController_ResetDuringStreamLeavesOnlyWelcome(t *testing.T) {
	f := &fakeRelay{reply: []string{"partial"}, block: make(chan struct{})}
	c := newWidget(t, f, Settings{WelcomeMessage: "Welcome!"})
	c.Open()

	c.SetInput("hello")
	done := make(chan relay.Outcome, 1)
	go func() {
		outcome, _ := c.Send(context.Background())
		done <- outcome
	}()

	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Turns) == 3 && snap.Turns[2].Content == "partial"
	}, 2*time.Second, 5*time.Millisecond)

	c.Reset()

	select {
	case outcome := <-done:
		assert.Equal(t, relay.OutcomeCancelled, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled send did not return")
	}

	snap := c.Snapshot()
	assert.Equal(t, []conversation.Turn{{Role: conversation.RoleAssistant, Content: "Welcome!"}}, snap.Turns)
	assert.Equal(t, StateIdle, snap.State)
	assert.NotEmpty(t, snap.QuickReplies)
}

func TestController_SubmitLead(t *testing.T) {
	f := &fakeRelay{}
	c := newWidget(t, f, Settings{ClosingMessage: "See you soon!"})
	c.Open()
	c.ShowBooking()

	rec, err := c.SubmitLead(context.Background(), validLead())
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", rec.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.leadCalls))

	snap := c.Snapshot()
	assert.True(t, snap.BookingConfirmed)
	last := snap.Turns[len(snap.Turns)-1]
	assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: "See you soon!"}, last)

	_, err = c.SubmitLead(context.Background(), validLead())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.leadCalls))

	c.Reset()
	_, err = c.SubmitLead(context.Background(), validLead())
	assert.NoError(t, err)
}

func TestController_SubmitLeadValidationAndFailure(t *testing.T) {
	f := &fakeRelay{}
	c := newWidget(t, f, Settings{})
	c.Open()
	c.ShowBooking()

	form := validLead()
	form.PreferredDate = "2026-05-04"
	_, err := c.SubmitLead(context.Background(), form)
	var verr *leads.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, atomic.LoadInt32(&f.leadCalls))

	f.mu.Lock()
	f.leadFail = true
	f.mu.Unlock()

	_, err = c.SubmitLead(context.Background(), validLead())
	var serr *leads.SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Could not save your request.", serr.Message)
	assert.False(t, c.Snapshot().BookingConfirmed)
	assert.Len(t, c.Snapshot().Turns, 1)
}

func TestController_ClosingMessageWaitsForStream(t *testing.T) {
	f := &fakeRelay{reply: []string{"streaming reply"}, block: make(chan struct{})}
	c := newWidget(t, f, Settings{ClosingMessage: "Booked!"})
	c.Open()

	c.SetInput("hello")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background())
	}()
	require.Eventually(t, func() bool { return c.State() == StateStreaming }, time.Second, 5*time.Millisecond)

	_, err := c.SubmitLead(context.Background(), validLead())
	require.NoError(t, err)

	close(f.block)
	<-done

	turns := c.Snapshot().Turns
	require.Len(t, turns, 4)
	assert.Equal(t, "streaming reply", turns[2].Content)
	assert.Equal(t, "Booked!", turns[3].Content)
}

func TestController_SubscribeNotifies(t *testing.T) {
	c := newWidget(t, &fakeRelay{}, Settings{})
	ch, stop := c.Subscribe()
	defer stop()

	c.Open()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	stop()
	c.Close()
	select {
	case <-ch:
		t.Fatal("notified after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFetchSettings(t *testing.T) {
	f := &fakeRelay{t: t}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	s, err := FetchSettings(context.Background(), nil, srv.URL+"/", "public")
	require.NoError(t, err)
	assert.Equal(t, "Welcome from the server", s.WelcomeMessage)
	assert.Equal(t, []string{"let's meet"}, s.BookingTriggers)
	assert.Equal(t, 2, s.BookingTurnThreshold)
	assert.Equal(t, relay.DefaultFallbackMessage, s.FallbackMessage)
	assert.Equal(t, DefaultClosingMessage, s.ClosingMessage)
}
