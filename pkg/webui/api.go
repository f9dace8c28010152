package webui

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/conversation"
	relayhttp "github.com/go-go-golems/partes/pkg/relay/http"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

// Deps are the collaborators of the HTTP routes. Nil relay handlers answer
// 503.
type Deps struct {
	Manager  *conversation.Manager
	Catalog  *vehicle.Catalog
	Hub      *Hub
	Upgrader websocket.Upgrader

	Webhook    http.Handler
	Legacy     http.Handler
	Completion http.Handler

	Source  string
	Version string
}

type api struct {
	Deps
}

// NewRouter registers the relay endpoints, the session API and the
// transcript websocket.
func NewRouter(d Deps) *mux.Router {
	a := &api{Deps: d}
	r := mux.NewRouter()

	r.Handle("/api/n8nconnect", orUnavailable(d.Webhook))
	r.Handle("/api/n8n", orUnavailable(d.Legacy))
	r.Handle("/api/groqChat", orUnavailable(d.Completion))

	r.HandleFunc("/api/vehicles", a.handleVehicles).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", a.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", a.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", a.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/messages", a.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/search", a.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/mode", a.handleToggleMode).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/attachments", a.handleAttach).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/recording", a.handleRecording).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/vehicle", a.handleSetVehicle).Methods(http.MethodPut)

	r.HandleFunc("/ws", a.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func orUnavailable(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "endpoint not configured")
	})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("component", "webui").Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, relayhttp.MaxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func (a *api) session(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	id := mux.Vars(r)["id"]
	s, ok := a.Manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (a *api) handleVehicles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Catalog)
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (a *api) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sc := relayhttp.SessionContextFromRequest(r, a.Source, a.Version)
	// a client-supplied id is only honoured for unknown sessions
	if _, exists := a.Manager.Get(sc.SessionID); exists {
		sc.SessionID = ""
	}
	s := a.Manager.Create(sc)
	log.Info().Str("component", "webui").Str("session_id", s.ID()).Msg("session created")
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: s.ID()})
}

func (a *api) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (a *api) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Manager.Delete(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Message string `json:"message"`
}

func (a *api) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	req := submitRequest{}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err := s.Submit(r.Context(), req.Message)
	switch {
	case errors.Is(err, conversation.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, conversation.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	// upstream failures are part of the session state
	writeJSON(w, http.StatusOK, s.Snapshot())
}

type searchRequest struct {
	Query string `json:"query"`
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	req := searchRequest{}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Search(req.Query); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (a *api) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if !s.ToggleMode() {
		writeError(w, http.StatusConflict, "mode transition in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

type attachRequest struct {
	Name string `json:"name"`
}

func (a *api) handleAttach(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	req := attachRequest{}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.AttachFile(req.Name); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (a *api) handleRecording(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if _, err := s.ToggleRecording(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (a *api) handleSetVehicle(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	v := vehicle.Vehicle{}
	if err := decodeBody(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := vehicle.Validate(a.Catalog, v); err != nil {
		body := errorBody{Error: err.Error()}
		var fe *vehicle.FieldError
		if errors.As(err, &fe) {
			body.Field = fe.Field
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}
	if err := s.SetVehicle(v); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, conversation.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}
	s, ok := a.Manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := a.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "webui").Str("session_id", id).Msg("websocket upgrade failed")
		return
	}
	// attach before taking the snapshot; clients drop duplicates by seq
	pool := a.Hub.Attach(id, conn)
	hello, err := helloFrame(s.Snapshot())
	if err != nil {
		pool.Remove(conn)
		return
	}
	pool.SendToOne(conn, hello)
	log.Debug().Str("component", "webui").Str("session_id", id).Int("clients", pool.Count()).Msg("websocket attached")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			pool.Remove(conn)
			return
		}
	}
}
