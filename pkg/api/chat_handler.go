package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/relay"
	"github.com/schardosin/folio/pkg/sse"
)

// AIServiceError is the only upstream failure detail a visitor ever sees.
const AIServiceError = "AI service error"

// buildMessages drops client-supplied system turns and empty turns, keeps the
// last maxHistory turns, truncates each to maxChars runes and prepends the
// system prompt.
func buildMessages(turns []conversation.Turn, systemPrompt string, maxHistory, maxChars int) []openai.ChatCompletionMessage {
	kept := make([]conversation.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != conversation.RoleUser && t.Role != conversation.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, t)
	}
	if maxHistory > 0 && len(kept) > maxHistory {
		kept = kept[len(kept)-maxHistory:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(kept)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, t := range kept {
		content := t.Content
		if maxChars > 0 {
			if runes := []rune(content); len(runes) > maxChars {
				content = string(runes[:maxChars])
			}
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: content,
		})
	}
	return messages
}

func hasUserTurn(messages []openai.ChatCompletionMessage) bool {
	for _, m := range messages {
		if m.Role == openai.ChatMessageRoleUser {
			return true
		}
	}
	return false
}

// ChatHandler handles POST /api/chat. The reply is streamed back as
// `data: <chunk json>` frames closed by `data: [DONE]`.
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.log.Component("chat").With().Str("request_id", RequestID(ctx)).Logger()
	settings := s.Settings()

	var req relay.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid chat request body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	messages := buildMessages(req.Messages, settings.Relay.SystemPrompt, settings.Relay.MaxHistory, settings.Relay.MaxMessageChars)
	if !hasUserTurn(messages) {
		writeError(w, http.StatusBadRequest, "messages must include a user message")
		return
	}

	if s.provider == nil {
		log.Error().Msg("no model provider configured")
		writeError(w, http.StatusInternalServerError, AIServiceError)
		return
	}

	s.metrics.ChatStreamsInFlight.Inc()
	defer s.metrics.ChatStreamsInFlight.Dec()

	stream, err := s.provider.Stream(ctx, openai.ChatCompletionRequest{
		Messages:    messages,
		MaxTokens:   settings.Relay.MaxTokens,
		Temperature: settings.Relay.Temperature,
	})
	if err != nil {
		log.Error().Err(err).Str("provider", s.provider.Name).Msg("upstream request failed")
		s.metrics.UpstreamErrorsTotal.WithLabelValues(s.provider.Name, "connect").Inc()
		s.metrics.ChatStreamsTotal.WithLabelValues("upstream_error").Inc()
		writeError(w, http.StatusInternalServerError, AIServiceError)
		return
	}
	defer stream.Close()

	// Read the first chunk before committing to a 200 so an early upstream
	// failure can still be reported as a plain error.
	first, err := stream.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		log.Error().Err(err).Str("provider", s.provider.Name).Msg("upstream stream failed before first chunk")
		s.metrics.UpstreamErrorsTotal.WithLabelValues(s.provider.Name, "first_chunk").Inc()
		s.metrics.ChatStreamsTotal.WithLabelValues("upstream_error").Inc()
		writeError(w, http.StatusInternalServerError, AIServiceError)
		return
	}

	sw, werr := sse.NewWriter(w)
	if werr != nil {
		log.Error().Err(werr).Msg("response writer cannot stream")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	deltas := 0
	emit := func(chunk openai.ChatCompletionStreamResponse) error {
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := sw.WriteDelta(choice.Delta.Content); err != nil {
				return err
			}
			deltas++
			s.metrics.ChatDeltasTotal.Inc()
		}
		return nil
	}

	if errors.Is(err, io.EOF) {
		_ = sw.WriteDone()
		s.metrics.ChatStreamsTotal.WithLabelValues("completed").Inc()
		return
	}
	if err := emit(first); err != nil {
		log.Debug().Err(err).Msg("client went away")
		s.metrics.ChatStreamsTotal.WithLabelValues("client_gone").Inc()
		return
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Debug().Int("deltas", deltas).Msg("client cancelled stream")
				s.metrics.ChatStreamsTotal.WithLabelValues("client_gone").Inc()
				return
			}
			log.Error().Err(err).Int("deltas", deltas).Msg("upstream stream interrupted")
			s.metrics.UpstreamErrorsTotal.WithLabelValues(s.provider.Name, "stream").Inc()
			s.metrics.ChatStreamsTotal.WithLabelValues("interrupted").Inc()
			// Abort the connection so the client sees a truncated stream
			// rather than a clean end.
			panic(http.ErrAbortHandler)
		}
		if err := emit(chunk); err != nil {
			log.Debug().Err(err).Msg("client went away")
			s.metrics.ChatStreamsTotal.WithLabelValues("client_gone").Inc()
			return
		}
	}

	if err := sw.WriteDone(); err != nil {
		log.Debug().Err(err).Msg("failed to write done sentinel")
	}
	s.metrics.ChatStreamsTotal.WithLabelValues("completed").Inc()
	log.Info().Int("deltas", deltas).Int("turns", len(messages)-1).Msg("chat reply streamed")
}
