package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/schardosin/folio/pkg/relay"
)

const (
	DefaultWelcomeMessage = "Hey there! 👋 I'm the portfolio assistant. I can help you explore how we could work together on your project. What brings you here today?"
	DefaultClosingMessage = "Thanks! Your consultation request is in. You'll get a reply within 24 hours to confirm the call."

	// DefaultBookingTurnThreshold reveals the booking form after this many
	// visitor messages.
	DefaultBookingTurnThreshold = 4
)

// DefaultQuickReplies are offered under the welcome turn.
var DefaultQuickReplies = []string{
	"I need a developer",
	"I need cybersecurity help",
	"I need AI / Data solutions",
	"Business strategy / Consulting",
	"Training / Workshop",
}

// Settings is the public, per-deployment widget copy and booking policy.
type Settings struct {
	WelcomeMessage       string   `json:"welcome_message" yaml:"welcome_message"`
	FallbackMessage      string   `json:"fallback_message" yaml:"fallback_message"`
	ClosingMessage       string   `json:"closing_message" yaml:"closing_message"`
	QuickReplies         []string `json:"quick_replies" yaml:"quick_replies"`
	BookingTriggers      []string `json:"booking_triggers" yaml:"booking_triggers"`
	BookingTurnThreshold int      `json:"booking_turn_threshold" yaml:"booking_turn_threshold"`
}

// DefaultSettings returns the built-in widget settings.
func DefaultSettings() Settings {
	return Settings{
		WelcomeMessage:       DefaultWelcomeMessage,
		FallbackMessage:      relay.DefaultFallbackMessage,
		ClosingMessage:       DefaultClosingMessage,
		QuickReplies:         append([]string(nil), DefaultQuickReplies...),
		BookingTriggers:      append([]string(nil), relay.DefaultBookingTriggers...),
		BookingTurnThreshold: DefaultBookingTurnThreshold,
	}
}

// WithDefaults fills every empty field from DefaultSettings. A negative
// threshold disables the turn-count reveal.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if strings.TrimSpace(s.WelcomeMessage) == "" {
		s.WelcomeMessage = d.WelcomeMessage
	}
	if strings.TrimSpace(s.FallbackMessage) == "" {
		s.FallbackMessage = d.FallbackMessage
	}
	if strings.TrimSpace(s.ClosingMessage) == "" {
		s.ClosingMessage = d.ClosingMessage
	}
	if s.QuickReplies == nil {
		s.QuickReplies = d.QuickReplies
	}
	if len(s.BookingTriggers) == 0 {
		s.BookingTriggers = d.BookingTriggers
	}
	if s.BookingTurnThreshold == 0 {
		s.BookingTurnThreshold = d.BookingTurnThreshold
	}
	return s
}

// FetchSettings loads the widget settings published by a relay server at
// baseURL. Missing fields fall back to the defaults.
func FetchSettings(ctx context.Context, client *http.Client, baseURL, token string) (Settings, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/widget", nil)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to fetch widget settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Settings{}, fmt.Errorf("widget settings request returned status %d", resp.StatusCode)
	}

	var s Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode widget settings: %w", err)
	}
	return s.WithDefaults(), nil
}
