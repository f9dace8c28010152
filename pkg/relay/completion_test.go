package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCompletionAPI struct {
	srv      *httptest.Server
	requests chan map[string]any
}

func newFakeCompletionAPI(t *testing.T, status int, reply string) *fakeCompletionAPI {
	t.Helper()
	f := &fakeCompletionAPI{requests: make(chan map[string]any, 4)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(b, &body))
		f.requests <- body
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func completionReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   DefaultCompletionModel,
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": text},
		}},
	})
	return string(b)
}

func newTestCompletionClient(t *testing.T, f *fakeCompletionAPI) *CompletionClient {
	t.Helper()
	c, err := NewCompletionClient(CompletionConfig{
		BaseURL:      f.srv.URL,
		APIKey:       "test-key",
		SystemPrompt: "persona",
	})
	require.NoError(t, err)
	return c
}

func messagesOf(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["messages"].([]any)
	require.True(t, ok)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.(map[string]any))
	}
	return out
}

func TestCompletionClientPrependsSystemPrompt(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusOK, completionReply("claro"))
	c := newTestCompletionClient(t, f)

	text, err := c.Complete(context.Background(), []CompletionMessage{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	require.Equal(t, "claro", text)

	body := <-f.requests
	require.Equal(t, DefaultCompletionModel, body["model"])
	require.InDelta(t, 0.7, body["temperature"], 1e-9)
	require.InDelta(t, 0.9, body["top_p"], 1e-9)
	require.EqualValues(t, DefaultMaxTokens, body["max_tokens"])

	msgs := messagesOf(t, body)
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0]["role"])
	require.Equal(t, "persona", msgs[0]["content"])
	require.Equal(t, "hola", msgs[1]["content"])
}

func TestCompletionClientKeepsCallerSystemPrompt(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusOK, completionReply("ok"))
	c := newTestCompletionClient(t, f)

	_, err := c.Complete(context.Background(), []CompletionMessage{
		{Role: RoleSystem, Content: "custom"},
		{Role: RoleUser, Content: "hola"},
	})
	require.NoError(t, err)

	msgs := messagesOf(t, <-f.requests)
	require.Len(t, msgs, 2)
	require.Equal(t, "custom", msgs[0]["content"])
}

func TestCompletionClientNoChoices(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	c := newTestCompletionClient(t, f)

	text, err := c.Complete(context.Background(), []CompletionMessage{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestCompletionClientUpstreamFailure(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`)
	c := newTestCompletionClient(t, f)

	_, err := c.Complete(context.Background(), []CompletionMessage{{Role: RoleUser, Content: "hola"}})
	require.Error(t, err)
}

func TestNewCompletionClientRequiresKey(t *testing.T) {
	_, err := NewCompletionClient(CompletionConfig{})
	require.Error(t, err)
}

func TestCompletionStrategyAddsVehicleLine(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusOK, completionReply("te recomiendo"))
	s := NewCompletionStrategy(newTestCompletionClient(t, f))
	require.Equal(t, StrategyCompletion, s.Name())

	reply, err := s.Reply(context.Background(), Turn{
		Message:  "necesito bujías",
		Metadata: Metadata{UserCar: &UserCar{Brand: "Honda", Model: "Civic", Year: "2018"}},
		History:  []CompletionMessage{{Role: RoleUser, Content: "hola"}, {Role: RoleAssistant, Content: "¡hola!"}},
	})
	require.NoError(t, err)
	require.Equal(t, ReplyCompletion, reply.Kind)
	require.Equal(t, "te recomiendo", reply.Text)

	msgs := messagesOf(t, <-f.requests)
	require.Len(t, msgs, 5)
	require.Equal(t, "persona", msgs[0]["content"])
	require.Equal(t, "Vehículo del usuario: Honda Civic 2018", msgs[1]["content"])
	require.Equal(t, "hola", msgs[2]["content"])
	require.Equal(t, "necesito bujías", msgs[4]["content"])
}

func TestCompletionStrategyEmptyTextFallsBack(t *testing.T) {
	f := newFakeCompletionAPI(t, http.StatusOK, completionReply(""))
	s := NewCompletionStrategy(newTestCompletionClient(t, f))

	reply, err := s.Reply(context.Background(), Turn{Message: "hola"})
	require.NoError(t, err)
	require.Equal(t, ReplyUnrecognized, reply.Kind)
	require.Equal(t, FallbackReply, reply.Text)
}
