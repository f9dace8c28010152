package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	header http.Header
	body   map[string]any
}

func newCapturingServer(t *testing.T, status int, reply string) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	got := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(b, &body))
		got <- capturedRequest{header: r.Header.Clone(), body: body}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestWebhookClientPostSetsHeaders(t *testing.T) {
	srv, got := newCapturingServer(t, http.StatusOK, `{"message":"ok"}`)

	c, err := NewWebhookClient(srv.URL, "secret-key")
	require.NoError(t, err)
	body, err := c.Post(context.Background(), map[string]string{"message": "hola"})
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"ok"}`, string(body))

	req := <-got
	require.Equal(t, "application/json", req.header.Get("Content-Type"))
	require.Equal(t, "application/json", req.header.Get("Accept"))
	require.Equal(t, DefaultUserAgent, req.header.Get("User-Agent"))
	require.Equal(t, "Bearer secret-key", req.header.Get("Authorization"))
	require.Equal(t, "hola", req.body["message"])
}

func TestWebhookClientWithoutKeyOmitsAuthorization(t *testing.T) {
	srv, got := newCapturingServer(t, http.StatusOK, `{}`)

	c, err := NewWebhookClient(srv.URL, "  ")
	require.NoError(t, err)
	_, err = c.Post(context.Background(), map[string]string{})
	require.NoError(t, err)
	require.Empty(t, (<-got).header.Get("Authorization"))
}

func TestWebhookClientUpstreamError(t *testing.T) {
	srv, _ := newCapturingServer(t, http.StatusBadGateway, `{"error":"down"}`)

	c, err := NewWebhookClient(srv.URL, "")
	require.NoError(t, err)
	_, err = c.Post(context.Background(), map[string]string{})
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	require.Equal(t, http.StatusBadGateway, uerr.Status)
	require.Contains(t, uerr.Error(), "502")
}

func TestWebhookClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewWebhookClient(srv.URL, "")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Post(ctx, map[string]string{})
	require.Error(t, err)
}

func TestNewWebhookClientRequiresURL(t *testing.T) {
	_, err := NewWebhookClient(" ", "k")
	require.Error(t, err)
}

func TestWebhookStrategyForwardsMetadata(t *testing.T) {
	srv, got := newCapturingServer(t, http.StatusOK, `{"response":{"generations":[[{"text":"X"}]]}}`)

	c, err := NewWebhookClient(srv.URL, "")
	require.NoError(t, err)
	s := NewWebhookStrategy(c)
	require.Equal(t, StrategyWebhook, s.Name())

	reply, err := s.Reply(context.Background(), Turn{
		Message:  "hola",
		Metadata: Metadata{SessionID: "abc", UserCar: &UserCar{Brand: "Toyota", Model: "RAV4", Year: "2022"}},
	})
	require.NoError(t, err)
	require.Equal(t, ReplyGeneration, reply.Kind)
	require.Equal(t, "X", reply.Text)

	req := <-got
	require.Equal(t, "hola", req.body["message"])
	md := req.body["metadata"].(map[string]any)
	require.Equal(t, "abc", md["sessionId"])
	require.Equal(t, "RAV4", md["userCar"].(map[string]any)["model"])
}
