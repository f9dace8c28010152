package relayhttp

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
)

const (
	webhookApology = "Lo siento, ha ocurrido un error al procesar tu mensaje."
	legacyApology  = "Lo siento, estoy teniendo dificultades para procesar tu solicitud. Por favor, intenta de nuevo en unos momentos."
)

// Options carry the values a handler stamps into outgoing metadata.
type Options struct {
	Source  string
	Version string
	Now     func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

type webhookResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewWebhookHandler relays a chat turn to strategy and answers
// {message, data}. Upstream failures are answered with 200 and an apology.
func NewWebhookHandler(strategy relay.ReplyStrategy, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{
				Message: "Method not allowed",
				Error:   "Only POST requests are allowed",
			})
			return
		}
		if strategy == nil {
			http.Error(w, "relay strategy not initialized", http.StatusServiceUnavailable)
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, webhookResponse{
					Message: "Request too large",
					Error:   "Request body must not exceed 1mb",
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, webhookResponse{Message: "Invalid request format", Error: err.Error()})
			return
		}

		req, err := relay.ParseChatRequest(body)
		if err == nil {
			err = req.RequireChatType()
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, webhookResponse{
				Message: "Invalid request format",
				Error:   `Request must include type: "chat" and data.message`,
				Details: issuesOf(err),
			})
			return
		}

		turn := relay.NewTurn(req, SessionContextFromRequest(r, opts.Source, opts.Version), opts.now())
		reply, err := strategy.Reply(r.Context(), turn)
		if err != nil {
			log.Error().Err(err).
				Str("component", "relayhttp").
				Str("strategy", strategy.Name()).
				Str("session_id", turn.Metadata.SessionID).
				Msg("relay request failed")
			writeJSON(w, http.StatusOK, webhookResponse{Message: webhookApology})
			return
		}

		resp := webhookResponse{Message: reply.Text}
		if reply.Raw != nil {
			resp.Data = reply.Raw
		}
		log.Debug().
			Str("component", "relayhttp").
			Str("kind", string(reply.Kind)).
			Str("session_id", turn.Metadata.SessionID).
			Msg("relay reply")
		writeJSON(w, http.StatusOK, resp)
	}
}

type legacyErrorResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Details []relay.Issue `json:"details,omitempty"`
}

// NewLegacyWebhookHandler relays through the LLM-chain workflow and returns
// the upstream JSON as-is.
func NewLegacyWebhookHandler(client *relay.WebhookClient, model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, legacyErrorResponse{Error: "Method not allowed"})
			return
		}
		if client == nil {
			http.Error(w, "legacy webhook not configured", http.StatusServiceUnavailable)
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, legacyErrorResponse{Error: err.Error()})
			return
		}

		req, err := relay.ParseChatRequest(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, legacyErrorResponse{
				Error:   "Validation error",
				Details: issuesOf(err),
			})
			return
		}

		raw, err := client.Post(r.Context(), relay.BuildLegacyPayload(req.Data.Message, model))
		if err == nil {
			reply := relay.DecodeReply(raw)
			if reply.Raw != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(reply.Raw)
				return
			}
			err = errors.New("upstream answered with non-JSON body")
		}
		log.Error().Err(err).Str("component", "relayhttp").Str("url", client.URL()).Msg("legacy webhook failed")
		writeJSON(w, http.StatusOK, webhookResponse{Message: legacyApology})
	}
}
