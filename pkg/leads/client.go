package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GenericSubmitMessage is shown when the sink gave no usable error.
const GenericSubmitMessage = "Something went wrong while sending your request. Please try again."

// SubmitError is a rejected or failed submission. Message is safe to show.
type SubmitError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lead submission failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("lead submission failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Submitter posts validated records to the lead endpoint.
type Submitter struct {
	endpoint string
	token    string
	http     *http.Client
	log      zerolog.Logger
}

// NewSubmitter creates a submitter for endpoint. A nil client uses a default
// http.Client; a nil logger disables logging.
func NewSubmitter(endpoint, token string, client *http.Client, logger *zerolog.Logger) *Submitter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &Submitter{endpoint: endpoint, token: token, http: client, log: zerolog.Nop()}
	if logger != nil {
		s.log = logger.With().Str("component", "leads").Logger()
	}
	return s
}

// Submit validates form and, when it passes, sends it in a single POST. A
// *ValidationError means nothing was sent. There is no retry.
func (s *Submitter) Submit(ctx context.Context, form Form, now time.Time) (Record, error) {
	rec, err := form.Validate(now)
	if err != nil {
		return Record{}, err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("lead submission request failed")
		return Record{}, &SubmitError{Message: GenericSubmitMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.Body)
		s.log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("lead submission rejected")
		return Record{}, &SubmitError{StatusCode: resp.StatusCode, Message: msg}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	s.log.Info().Str("preferred_date", rec.PreferredDate).Msg("lead submitted")
	return rec, nil
}

func errorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || json.Unmarshal(data, &payload) != nil || payload.Error == "" {
		return GenericSubmitMessage
	}
	return payload.Error
}
