// Package relay runs chat request/response cycles against the relay server and
// projects the streamed reply into the conversation store.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/sse"
)

// DefaultFallbackMessage replaces a reply that never arrived.
const DefaultFallbackMessage = "Sorry, I'm having trouble connecting right now. " +
	"Please reach out directly by email or WhatsApp and you'll hear back within 24 hours."

var (
	// ErrEmptyMessage is returned for a message that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned while another cycle is streaming.
	ErrBusy = errors.New("a reply is already streaming")
)

// Outcome describes how a cycle ended.
type Outcome int

const (
	// OutcomeRejected means no cycle ran (blank message or busy).
	OutcomeRejected Outcome = iota
	// OutcomeCompleted means the reply streamed to the end.
	OutcomeCompleted
	// OutcomeFailed means a transport failure was handled locally.
	OutcomeFailed
	// OutcomeCancelled means the cycle was aborted and left no trace.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ChatRequest is the body posted to the relay server.
type ChatRequest struct {
	Messages []conversation.Turn `json:"messages"`
}

// Options configures a Client.
type Options struct {
	Endpoint        string
	Token           string
	HTTPClient      *http.Client
	Store           *conversation.Store
	Policy          *BookingPolicy
	FallbackMessage string
	Logger          *zerolog.Logger

	// OnChange runs after every store mutation and streaming-state change.
	OnChange func()
	// OnBookingTrigger runs at most once per cycle when the reply matches Policy.
	OnBookingTrigger func()
}

// Client drives at most one chat cycle at a time.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	store    *conversation.Store
	policy   *BookingPolicy
	fallback string
	log      zerolog.Logger

	onChange  func()
	onBooking func()

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
	gen      uint64
}

// New creates a relay client. Store and Endpoint are required.
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: conversation store is required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("relay: endpoint is required")
	}

	c := &Client{
		endpoint:  opts.Endpoint,
		token:     opts.Token,
		http:      opts.HTTPClient,
		store:     opts.Store,
		policy:    opts.Policy,
		fallback:  opts.FallbackMessage,
		log:       zerolog.Nop(),
		onChange:  opts.OnChange,
		onBooking: opts.OnBookingTrigger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.fallback == "" {
		c.fallback = DefaultFallbackMessage
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "relay").Logger()
	}
	return c, nil
}

// InFlight reports whether a cycle is currently streaming.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Cancel aborts the in-flight cycle, if any. Once Cancel returns, that cycle
// makes no further store mutations and shows no fallback message.
func (c *Client) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.inFlight = false
	return true
}

// Send appends text as a user turn and streams the assistant reply into the
// store. It blocks until the cycle settles. Transport failures are handled by
// the fallback message and reported only through the Outcome.
func (c *Client) Send(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return OutcomeRejected, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return OutcomeRejected, ErrBusy
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.inFlight = true
	c.cancel = cancel
	c.store.Append(conversation.Turn{Role: conversation.RoleUser, Content: text})
	transcript := c.store.Turns()
	c.mu.Unlock()
	c.notify()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.gen == gen {
			c.inFlight = false
			c.cancel = nil
		}
		c.mu.Unlock()
		c.notify()
	}()

	outcome := c.run(cycleCtx, gen, transcript)
	c.log.Debug().Str("outcome", outcome.String()).Int("turns", len(transcript)).Msg("chat cycle settled")
	return outcome, nil
}

func (c *Client) run(ctx context.Context, gen uint64, transcript []conversation.Turn) Outcome {
	resp, err := c.post(ctx, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		c.log.Warn().Err(err).Msg("chat request failed")
		return c.fail(gen, false)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("chat endpoint returned an error")
		return c.fail(gen, false)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		c.log.Warn().Msg("chat endpoint returned no body")
		return c.fail(gen, false)
	}

	if !c.apply(gen, func() error {
		c.store.AppendEmptyAssistantTurn()
		return nil
	}) {
		return OutcomeCancelled
	}

	var acc strings.Builder
	triggered := false
	for delta, err := range sse.Deltas(ctx, resp.Body) {
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled
			}
			c.log.Warn().Err(err).Int("received", acc.Len()).Msg("chat stream interrupted")
			return c.fail(gen, acc.Len() > 0)
		}

		acc.WriteString(delta)
		text := acc.String()
		if !c.apply(gen, func() error { return c.store.UpdateLastTurn(text) }) {
			return OutcomeCancelled
		}

		if !triggered && c.policy.Matches(text) {
			triggered = true
			if c.onBooking != nil {
				c.onBooking()
			}
		}
	}

	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	if acc.Len() == 0 {
		c.log.Warn().Msg("chat stream ended without any text")
		return c.fail(gen, false)
	}
	return OutcomeCompleted
}

// fail shows the fallback message unless partial text already landed, in
// which case the partial reply stands as final.
func (c *Client) fail(gen uint64, hadText bool) Outcome {
	if hadText {
		return OutcomeFailed
	}
	if !c.apply(gen, func() error {
		if last, ok := c.store.Last(); ok && last.Role == conversation.RoleAssistant && last.Content == "" {
			return c.store.UpdateLastTurn(c.fallback)
		}
		c.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: c.fallback})
		return nil
	}) {
		return OutcomeCancelled
	}
	return OutcomeFailed
}

// apply runs a store mutation unless the cycle identified by gen has been
// cancelled or superseded.
func (c *Client) apply(gen uint64, mutate func() error) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	err := mutate()
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("failed to update conversation")
	}
	c.notify()
	return true
}

func (c *Client) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Client) post(ctx context.Context, transcript []conversation.Turn) (*http.Response, error) {
	body, err := json.Marshal(ChatRequest{Messages: transcript})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.http.Do(req)
}
