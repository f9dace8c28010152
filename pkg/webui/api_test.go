package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/partes/pkg/conversation"
	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

func eventFor(sessionID string, seq uint64) conversation.Event {
	return conversation.Event{SessionID: sessionID, Seq: seq, Kind: conversation.EventState}
}

type testEnv struct {
	srv     *httptest.Server
	manager *conversation.Manager
	hub     *Hub
}

func newTestEnv(t *testing.T, strategy relay.ReplyStrategy) *testEnv {
	t.Helper()
	hub := NewHub(0)
	manager := conversation.NewManager(conversation.ManagerOptions{
		Strategy: strategy,
		Publisher: conversation.PublisherFunc(func(_ context.Context, e conversation.Event) error {
			return hub.Forward(e)
		}),
		Config:   conversation.Config{TransitionDelay: 5 * time.Millisecond, ReplyDelay: 5 * time.Millisecond},
		OnRemove: hub.CloseSession,
	})
	router := NewRouter(Deps{
		Manager:  manager,
		Catalog:  vehicle.MustDefaultCatalog(),
		Hub:      hub,
		Upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		Source:   relay.DefaultSource,
		Version:  "test",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		manager.Close()
	})
	return &testEnv{srv: srv, manager: manager, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var m map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&m)
	return resp, m
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	resp, m := e.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := m["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func transcriptOf(t *testing.T, m map[string]any) []string {
	t.Helper()
	raw, _ := m["transcript"].([]any)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any)["content"].(string))
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, relay.StrategyFunc(func(_ context.Context, turn relay.Turn) (relay.Reply, error) {
		return relay.Reply{Kind: relay.ReplyMessage, Text: "Para tu " + turn.Metadata.UserCar.Model + " tengo balatas"}, nil
	}))
	id := env.createSession(t)

	resp, m := env.do(t, http.MethodPut, "/api/sessions/"+id+"/vehicle", `{"brand":"Toyota","model":"RAV4","year":"2022"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "RAV4", m["vehicle"].(map[string]any)["model"])

	resp, m = env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"necesito balatas"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "received", m["chat"])
	require.Equal(t, []string{
		"He añadido tu Toyota RAV4 2022 a tu perfil. Ahora puedo ayudarte a encontrar piezas específicas para tu vehículo.",
		"necesito balatas",
		"Para tu RAV4 tengo balatas",
	}, transcriptOf(t, m))

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionAPIErrors(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	env := newTestEnv(t, relay.StrategyFunc(func(context.Context, relay.Turn) (relay.Reply, error) {
		started <- struct{}{}
		<-release
		return relay.Reply{Text: "ok"}, nil
	}))
	id := env.createSession(t)

	resp, _ := env.do(t, http.MethodGet, "/api/sessions/nope", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"   "}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, m := env.do(t, http.MethodPut, "/api/sessions/"+id+"/vehicle", `{"model":"Civic","year":"2019"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "brand", m["field"])

	resp, m = env.do(t, http.MethodPut, "/api/sessions/"+id+"/vehicle", `{"brand":"Toyota","model":"Civic","year":"2019"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "model", m["field"])

	firstStatus := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/sessions/"+id+"/messages", strings.NewReader(`{"message":"primero"}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			firstStatus <- 0
			return
		}
		_ = resp.Body.Close()
		firstStatus <- resp.StatusCode
	}()
	<-started
	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"segundo"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	close(release)
	require.Equal(t, http.StatusOK, <-firstStatus)
}

func TestSubmitUpstreamFailureIsSessionState(t *testing.T) {
	env := newTestEnv(t, relay.StrategyFunc(func(context.Context, relay.Turn) (relay.Reply, error) {
		return relay.Reply{}, &relay.UpstreamError{Status: 500}
	}))
	id := env.createSession(t)

	resp, m := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"hola"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "error", m["chat"])
	require.NotEmpty(t, m["error"])
}

func TestSearchModeAttachmentsRecording(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/search", `{"query":"amortiguadores"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/search", `{"query":"  "}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/attachments", `{"name":"foto.jpg"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, m := env.do(t, http.MethodPost, "/api/sessions/"+id+"/recording", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, m["recording"])

	require.Eventually(t, func() bool {
		_, m := env.do(t, http.MethodGet, "/api/sessions/"+id, "")
		return m["mode"] == "intelligent" && m["searching"] == false && len(transcriptOf(t, m)) == 4
	}, time.Second, 10*time.Millisecond)
}

func TestRelayRoutesWithoutHandlers(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, m := env.do(t, http.MethodPost, "/api/groqChat", `{"messages":[]}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "endpoint not configured", m["error"])
}

func TestVehiclesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, m := env.do(t, http.MethodGet, "/api/vehicles", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, m["makes"], 3)
}

func TestWebsocketHelloAndEvents(t *testing.T) {
	env := newTestEnv(t, relay.StrategyFunc(func(context.Context, relay.Turn) (relay.Reply, error) {
		return relay.Reply{Text: "hola, ¿qué pieza buscas?"}, nil
	}))
	id := env.createSession(t)

	resp, _ := env.do(t, http.MethodGet, "/ws?session_id=missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	hello := Frame{}
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, frameHello, hello.Type)
	require.Equal(t, id, hello.Snapshot.SessionID)
	require.Zero(t, hello.Snapshot.Seq)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"hola"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var contents []string
	for len(contents) < 2 {
		f := Frame{}
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, frameEvent, f.Type)
		require.Greater(t, f.Event.Seq, hello.Snapshot.Seq)
		if f.Event.Message != nil {
			contents = append(contents, f.Event.Message.Content)
		}
	}
	require.Equal(t, []string{"hola", "hola, ¿qué pieza buscas?"}, contents)
}
