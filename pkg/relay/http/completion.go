package relayhttp

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
)

// Completer is the part of relay.CompletionClient the handler needs.
type Completer interface {
	Complete(ctx context.Context, msgs []relay.CompletionMessage) (string, error)
}

var _ Completer = (*relay.CompletionClient)(nil)

type completionErrorResponse struct {
	Message string        `json:"message"`
	Error   string        `json:"error,omitempty"`
	Details []relay.Issue `json:"details,omitempty"`
}

// NewCompletionHandler answers with the completion text as a JSON string.
// Upstream failures are 500.
func NewCompletionHandler(c Completer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, completionErrorResponse{Message: "Method not allowed"})
			return
		}
		if c == nil {
			http.Error(w, "completion client not configured", http.StatusServiceUnavailable)
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, completionErrorResponse{Message: "Invalid request format", Error: err.Error()})
			return
		}

		req, err := relay.ParseCompletionRequest(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, completionErrorResponse{
				Message: "Invalid request format",
				Error:   "Validation error",
				Details: issuesOf(err),
			})
			return
		}

		text, err := c.Complete(r.Context(), req.Messages)
		if err != nil {
			log.Error().Err(err).Str("component", "relayhttp").Int("messages", len(req.Messages)).Msg("chat completion failed")
			writeJSON(w, http.StatusInternalServerError, completionErrorResponse{
				Message: "Internal server error",
				Error:   err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, text)
	}
}
