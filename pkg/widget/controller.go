// Package widget is the state machine behind the floating chat widget: it owns
// the conversation, drives chat cycles and the booking form, and tells
// front-ends when to redraw.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/relay"
)

// State is the widget state reported to front-ends.
type State string

const (
	StateClosed    State = "closed"
	StateIdle      State = "open-idle"
	StateStreaming State = "open-streaming"
	StateBooking   State = "open-booking"
)

var (
	// ErrClosed is returned when sending while the widget is closed.
	ErrClosed = errors.New("widget is closed")
	// ErrAlreadySubmitted is returned for a second lead in the same session.
	ErrAlreadySubmitted = errors.New("consultation already requested")
)

// Options configures a Controller.
type Options struct {
	ChatEndpoint  string
	LeadsEndpoint string
	Token         string
	HTTPClient    *http.Client
	Settings      Settings
	Logger        *zerolog.Logger

	// Now is the clock used to validate preferred dates.
	Now func() time.Time
}

// Snapshot is a consistent view for rendering.
type Snapshot struct {
	State            State
	Open             bool
	Streaming        bool
	BookingVisible   bool
	BookingConfirmed bool
	Input            string
	Turns            []conversation.Turn
	QuickReplies     []string
}

// Controller is one widget instance.
type Controller struct {
	settings Settings
	store    *conversation.Store
	relay    *relay.Client
	leads    *leads.Submitter
	now      func() time.Time
	log      zerolog.Logger

	mu             sync.Mutex
	open           bool
	input          string
	bookingVisible bool
	confirmed      bool
	pendingClosing bool

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New builds a closed widget whose conversation holds only the welcome turn.
func New(opts Options) (*Controller, error) {
	settings := opts.Settings.WithDefaults()

	c := &Controller{
		settings: settings,
		store:    conversation.NewStore(settings.WelcomeMessage),
		now:      opts.Now,
		log:      zerolog.Nop(),
		subs:     make(map[chan struct{}]struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "widget").Logger()
	}

	rc, err := relay.New(relay.Options{
		Endpoint:         opts.ChatEndpoint,
		Token:            opts.Token,
		HTTPClient:       opts.HTTPClient,
		Store:            c.store,
		Policy:           relay.NewBookingPolicy(settings.BookingTriggers),
		FallbackMessage:  settings.FallbackMessage,
		Logger:           opts.Logger,
		OnChange:         c.onRelayChange,
		OnBookingTrigger: c.ShowBooking,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	c.relay = rc
	c.leads = leads.NewSubmitter(opts.LeadsEndpoint, opts.Token, opts.HTTPClient, opts.Logger)
	return c, nil
}

// Settings returns the effective widget settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Open shows the widget.
func (c *Controller) Open() {
	c.mu.Lock()
	changed := !c.open
	c.open = true
	c.mu.Unlock()
	if changed {
		c.broadcast()
	}
}

// Close hides the widget. A reply that is streaming keeps streaming.
func (c *Controller) Close() {
	c.mu.Lock()
	changed := c.open
	c.open = false
	c.mu.Unlock()
	if changed {
		c.broadcast()
	}
}

// SetInput replaces the pending message text.
func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
	c.broadcast()
}

// Send sends the pending input and blocks until the reply settles.
func (c *Controller) Send(ctx context.Context) (relay.Outcome, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return relay.OutcomeRejected, ErrClosed
	}
	text := c.input
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return relay.OutcomeRejected, relay.ErrEmptyMessage
	}
	if c.relay.InFlight() {
		c.mu.Unlock()
		return relay.OutcomeRejected, relay.ErrBusy
	}
	c.input = ""
	c.mu.Unlock()

	return c.send(ctx, text)
}

// SendQuickReply sends reply as if typed, leaving the pending input alone.
func (c *Controller) SendQuickReply(ctx context.Context, reply string) (relay.Outcome, error) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return relay.OutcomeRejected, ErrClosed
	}
	return c.send(ctx, reply)
}

func (c *Controller) send(ctx context.Context, text string) (relay.Outcome, error) {
	outcome, err := c.relay.Send(ctx, text)
	if err != nil {
		if errors.Is(err, relay.ErrBusy) {
			c.mu.Lock()
			if c.input == "" {
				c.input = text
			}
			c.mu.Unlock()
		}
		return outcome, err
	}

	c.log.Debug().Str("outcome", outcome.String()).Msg("message sent")
	c.flushClosing()
	c.broadcast()
	return outcome, nil
}

// Cancel aborts a streaming reply without a fallback message.
func (c *Controller) Cancel() bool {
	ok := c.relay.Cancel()
	if ok {
		c.broadcast()
	}
	return ok
}

// ShowBooking reveals the booking form. It stays visible until Reset.
func (c *Controller) ShowBooking() {
	c.mu.Lock()
	changed := !c.bookingVisible
	c.bookingVisible = true
	c.mu.Unlock()
	if changed {
		c.log.Debug().Msg("booking form revealed")
		c.broadcast()
	}
}

// Reset silently cancels any reply, restores the welcome turn and hides the
// booking form. The widget stays open.
func (c *Controller) Reset() {
	c.relay.Cancel()

	c.mu.Lock()
	c.store.Reset()
	c.open = true
	c.input = ""
	c.bookingVisible = false
	c.confirmed = false
	c.pendingClosing = false
	c.mu.Unlock()

	c.broadcast()
}

// SubmitLead validates and sends the booking form. On success the booking is
// confirmed, the closing message joins the conversation, and later
// submissions are rejected until Reset. On failure nothing changes, so the
// caller can keep the form populated and retry.
func (c *Controller) SubmitLead(ctx context.Context, form leads.Form) (leads.Record, error) {
	c.mu.Lock()
	if c.confirmed {
		c.mu.Unlock()
		return leads.Record{}, ErrAlreadySubmitted
	}
	c.mu.Unlock()

	rec, err := c.leads.Submit(ctx, form, c.now())
	if err != nil {
		return leads.Record{}, err
	}

	c.mu.Lock()
	if c.confirmed {
		c.mu.Unlock()
		return leads.Record{}, ErrAlreadySubmitted
	}
	c.confirmed = true
	c.bookingVisible = true
	if c.relay.InFlight() {
		// Appending now would land under the streaming reply.
		c.pendingClosing = true
	} else {
		c.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: c.settings.ClosingMessage})
	}
	c.mu.Unlock()

	c.broadcast()
	return rec, nil
}

// State reports the widget state. Streaming wins over booking.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case !c.open:
		return StateClosed
	case c.relay.InFlight():
		return StateStreaming
	case c.bookingVisible:
		return StateBooking
	default:
		return StateIdle
	}
}

// Snapshot returns everything a front-end needs to draw the widget.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.store.Turns()
	snap := Snapshot{
		State:            c.stateLocked(),
		Open:             c.open,
		Streaming:        c.relay.InFlight(),
		BookingVisible:   c.bookingVisible,
		BookingConfirmed: c.confirmed,
		Input:            c.input,
		Turns:            turns,
	}
	if len(turns) == 1 && !snap.Streaming {
		snap.QuickReplies = append([]string(nil), c.settings.QuickReplies...)
	}
	return snap
}

// Subscribe returns a channel that receives a value after each change, and a
// function to stop. Notifications coalesce; always read a fresh Snapshot.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) broadcast() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) onRelayChange() {
	threshold := c.settings.BookingTurnThreshold
	if threshold > 0 && c.store.UserTurns() >= threshold {
		c.ShowBooking()
	}
	c.broadcast()
}

func (c *Controller) flushClosing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingClosing && !c.relay.InFlight() {
		c.pendingClosing = false
		c.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: c.settings.ClosingMessage})
	}
}
