package webui

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/partes/pkg/conversation"
	"github.com/go-go-golems/partes/pkg/relay"
	relayhttp "github.com/go-go-golems/partes/pkg/relay/http"
	"github.com/go-go-golems/partes/pkg/transcriptstream"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

// Server owns the HTTP listener, the session manager and the transcript
// stream.
type Server struct {
	settings Settings
	manager  *conversation.Manager
	stream   *transcriptstream.Stream
	hub      *Hub
	server   *http.Server
}

func NewServer(ctx context.Context, s Settings, rs relay.Settings, ts transcriptstream.Settings) (*Server, error) {
	rs = rs.WithEnvDefaults()

	catalog, err := vehicle.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	strategy, err := rs.BuildStrategy()
	if err != nil {
		return nil, errors.Wrap(err, "build reply strategy")
	}
	stream, err := transcriptstream.New(ctx, ts)
	if err != nil {
		return nil, errors.Wrap(err, "build transcript stream")
	}

	hub := NewHub(time.Duration(s.WSIdleSeconds) * time.Second)
	stream.AddHandler("ws-forwarder", hub.Forward)

	manager := conversation.NewManager(conversation.ManagerOptions{
		Strategy:  strategy,
		Publisher: stream,
		Config:    s.SessionConfig(),
		OnRemove:  hub.CloseSession,
	})
	manager.SetEvictionConfig(
		time.Duration(s.SessionIdleSeconds)*time.Second,
		time.Duration(s.EvictIntervalSeconds)*time.Second,
	)

	deps := Deps{
		Manager:  manager,
		Catalog:  catalog,
		Hub:      hub,
		Upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		Source:   rs.Source,
		Version:  s.AppVersion,
	}
	opts := relayhttp.Options{Source: rs.Source, Version: s.AppVersion}
	if c, err := rs.WebhookClient(); err == nil {
		deps.Webhook = relayhttp.NewWebhookHandler(relay.NewWebhookStrategy(c), opts)
	} else {
		log.Warn().Err(err).Str("component", "webui").Msg("webhook relay disabled")
	}
	if c, err := rs.LegacyWebhookClient(); err == nil {
		deps.Legacy = relayhttp.NewLegacyWebhookHandler(c, rs.LegacyModel)
	} else {
		log.Warn().Err(err).Str("component", "webui").Msg("legacy webhook relay disabled")
	}
	if c, err := rs.CompletionClient(); err == nil {
		deps.Completion = relayhttp.NewCompletionHandler(c)
	} else {
		log.Warn().Err(err).Str("component", "webui").Msg("completion endpoint disabled")
	}

	return &Server{
		settings: s,
		manager:  manager,
		stream:   stream,
		hub:      hub,
		server: &http.Server{
			Addr:              s.Addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts the listener, the sessions
// and the stream down.
func (s *Server) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.stream.Run(ctx)
	})
	s.manager.StartEvictionLoop(ctx)

	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		s.hub.CloseAll()
		s.manager.Close()
		if cerr := s.stream.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("transcript stream close error")
		}
		return err
	})

	eg.Go(func() error {
		// handlers need the router subscribed before the first event
		select {
		case <-s.stream.Running():
		case <-ctx.Done():
			return nil
		}
		log.Info().Str("addr", s.settings.Addr).Msg("starting partes server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	return eg.Wait()
}
