package relayhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
)

// MaxBodyBytes caps request bodies on every relay endpoint.
const MaxBodyBytes = 1 << 20

// errBodyTooLarge is returned by readBody when the request exceeds
// MaxBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("component", "relayhttp").Msg("failed to write response")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errBodyTooLarge
		}
		return nil, errors.Wrap(err, "read request body")
	}
	return body, nil
}

// SessionContextFromRequest derives the caller identity from request
// headers. source and version come from configuration.
func SessionContextFromRequest(r *http.Request, source, version string) relay.SessionContext {
	return relay.SessionContext{
		SessionID: strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Language:  primaryLanguage(r.Header.Get("Accept-Language")),
		UserAgent: r.Header.Get("User-Agent"),
		Platform:  strings.Trim(r.Header.Get("Sec-CH-UA-Platform"), `" `),
		Source:    source,
		Version:   version,
	}
}

// primaryLanguage returns the first tag of an Accept-Language header,
// without its quality value.
func primaryLanguage(h string) string {
	first, _, _ := strings.Cut(h, ",")
	tag, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(tag)
}

func issuesOf(err error) []relay.Issue {
	var verr *relay.ValidationError
	if errors.As(err, &verr) && verr != nil {
		return verr.Issues
	}
	return []relay.Issue{}
}
