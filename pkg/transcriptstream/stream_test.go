package transcriptstream

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/partes/pkg/conversation"
)

func TestStreamInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, Settings{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var (
		mu  sync.Mutex
		got []conversation.Event
	)
	s.AddHandler("collect", func(e conversation.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})
	go func() { _ = s.Run(ctx) }()
	<-s.Running()

	msg := conversation.Message{ID: "m1", Role: conversation.RoleUser, Content: "hola"}
	require.NoError(t, s.PublishEvent(ctx, conversation.Event{
		SessionID: "s1",
		Seq:       1,
		Kind:      conversation.EventMessage,
		Message:   &msg,
		State:     conversation.State{Mode: conversation.ModeNormal, Chat: conversation.ChatSubmitting, Loading: true},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "s1", got[0].SessionID)
	require.Equal(t, "hola", got[0].Message.Content)
	require.True(t, got[0].State.Loading)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent(message.NewMessage("x", []byte("not json")))
	require.Error(t, err)
}

func TestWatermillLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWatermillLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
	l.With(watermill.LogFields{"topic": Topic}).Info("subscribed", watermill.LogFields{"n": 1})

	out := buf.String()
	require.Contains(t, out, `"component":"watermill"`)
	require.Contains(t, out, `"topic":"partes.transcript"`)
	require.Contains(t, out, `"level":"debug"`)
	require.Contains(t, out, "subscribed")
}
