package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeIntelligent Mode = "intelligent"
)

// ChatState is the lifecycle of the latest submit.
type ChatState string

const (
	ChatComposing  ChatState = "composing"
	ChatSubmitting ChatState = "submitting"
	ChatReceived   ChatState = "received"
	ChatError      ChatState = "error"
)

const (
	errorApology  = "Lo siento, ha ocurrido un error al procesar tu mensaje. Por favor, inténtalo de nuevo más tarde."
	voiceReceived = "He recibido tu mensaje de voz. Dame un momento para procesarlo."
)

var (
	ErrBusy         = errors.New("a message is already being submitted")
	ErrEmptyMessage = errors.New("message is empty")
	ErrClosed       = errors.New("session is closed")
)

type Config struct {
	// TransitionDelay is how long the mode toggle stays in transition
	// before the mode flips.
	TransitionDelay time.Duration
	// ReplyDelay delays the canned replies to searches, attachments and
	// voice notes.
	ReplyDelay time.Duration
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		TransitionDelay: 300 * time.Millisecond,
		ReplyDelay:      time.Second,
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Snapshot is a copy of a session at one point in time.
// Seq is the sequence number of the last event published before it.
type Snapshot struct {
	SessionID  string    `json:"session_id"`
	Seq        uint64    `json:"seq"`
	Transcript []Message `json:"transcript"`
	State
}

// Session is one conversation. All methods are safe for concurrent use;
// only one submit may be in flight at a time.
type Session struct {
	id        string
	cfg       Config
	strategy  relay.ReplyStrategy
	publisher Publisher

	mu            sync.Mutex
	sc            relay.SessionContext
	transcript    []Message
	mode          Mode
	transitioning bool
	chat          ChatState
	searching     int
	recording     bool
	suggestions   bool
	errMsg        string
	vehicle       vehicle.Vehicle
	seq           uint64
	lastActivity  time.Time
	timers        map[*time.Timer]struct{}
	closed        bool
}

// NewSession creates a session. strategy may be nil, in which case Submit
// fails; publisher may be nil.
func NewSession(id string, sc relay.SessionContext, strategy relay.ReplyStrategy, publisher Publisher, cfg Config) *Session {
	if sc.SessionID == "" {
		sc.SessionID = id
	}
	s := &Session{
		id:        id,
		cfg:       cfg,
		strategy:  strategy,
		publisher: publisher,
		sc:        sc,
		mode:      ModeNormal,
		chat:      ChatComposing,
		vehicle:   sc.Vehicle,
		timers:    map[*time.Timer]struct{}{},
	}
	s.lastActivity = cfg.now()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:  s.id,
		Seq:        s.seq,
		Transcript: append([]Message(nil), s.transcript...),
		State:      s.stateLocked(),
	}
}

func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.transcript...)
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Vehicle() vehicle.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Busy reports whether a submit is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat == ChatSubmitting
}

// ToggleMode starts a switch between normal and intelligent search. The mode
// flips after TransitionDelay; a toggle during the transition is ignored and
// reported as false.
func (s *Session) ToggleMode() bool {
	s.mu.Lock()
	if s.closed || s.transitioning {
		s.mu.Unlock()
		return false
	}
	s.transitioning = true
	s.touchLocked()
	evs := []Event{s.stateEventLocked()}
	s.mu.Unlock()
	s.publish(context.Background(), evs)

	s.after(s.cfg.TransitionDelay, func() []Event {
		if s.mode == ModeNormal {
			s.mode = ModeIntelligent
		} else {
			s.mode = ModeNormal
		}
		s.transitioning = false
		return []Event{s.stateEventLocked()}
	})
	return true
}

// Search records a catalog search and answers it after ReplyDelay. The
// searching flag stays set until every pending search has been answered.
func (s *Session) Search(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.searching++
	evs := s.appendLocked(RoleUser, "Búsqueda: "+query)
	s.mu.Unlock()
	s.publish(context.Background(), evs)

	reply := fmt.Sprintf("Aquí tienes los resultados para \"%s\". ¿Necesitas más información sobre algún producto en particular?", query)
	s.after(s.cfg.ReplyDelay, func() []Event {
		s.searching--
		return s.appendLocked(RoleSystem, reply)
	})
	return nil
}

// AttachFile records an uploaded file by name and acknowledges it after
// ReplyDelay. The file content is not processed.
func (s *Session) AttachFile(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	evs := s.appendLocked(RoleUser, "Archivo subido: "+name)
	s.mu.Unlock()
	s.publish(context.Background(), evs)

	reply := fmt.Sprintf("He recibido tu archivo \"%s\". ¿Qué te gustaría que haga con él?", name)
	s.after(s.cfg.ReplyDelay, func() []Event {
		return s.appendLocked(RoleSystem, reply)
	})
	return nil
}

// ToggleRecording starts or stops a voice note and returns the new
// recording flag. Stopping acknowledges the note after ReplyDelay.
func (s *Session) ToggleRecording() (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	s.recording = !s.recording
	recording := s.recording
	s.touchLocked()
	evs := []Event{s.stateEventLocked()}
	s.mu.Unlock()
	s.publish(context.Background(), evs)

	if !recording {
		s.after(s.cfg.ReplyDelay, func() []Event {
			return s.appendLocked(RoleSystem, voiceReceived)
		})
	}
	return recording, nil
}

// SetVehicle replaces the session vehicle. Brand, model and year are
// required.
func (s *Session) SetVehicle(v vehicle.Vehicle) error {
	if err := vehicle.Validate(nil, v); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.vehicle = v
	evs := s.appendLocked(RoleSystem, fmt.Sprintf(
		"He añadido tu %s %s %s a tu perfil. Ahora puedo ayudarte a encontrar piezas específicas para tu vehículo.",
		v.Brand, v.Model, v.Year))
	s.mu.Unlock()
	s.publish(context.Background(), evs)
	return nil
}

// Submit sends text to the reply strategy and appends the answer. On
// failure the error is recorded, an apology is appended and the error is
// returned. Whitespace-only text returns ErrEmptyMessage and changes
// nothing.
func (s *Session) Submit(ctx context.Context, text string) (relay.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return relay.Reply{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return relay.Reply{}, ErrClosed
	}
	if s.chat == ChatSubmitting {
		s.mu.Unlock()
		return relay.Reply{}, ErrBusy
	}
	history := completionHistory(s.transcript)
	s.chat = ChatSubmitting
	s.errMsg = ""
	evs := s.appendLocked(RoleUser, text)
	sc := s.sc
	sc.Vehicle = s.vehicle
	strategy := s.strategy
	now := s.cfg.now()
	s.mu.Unlock()
	s.publish(ctx, evs)

	var (
		reply relay.Reply
		err   error
	)
	if strategy == nil {
		err = errors.New("no reply strategy configured")
	} else {
		turn := relay.NewTurn(relay.ChatRequest{Type: relay.ChatType, Data: relay.ChatData{Message: text}}, sc, now)
		turn.History = history
		reply, err = strategy.Reply(ctx, turn)
	}

	s.mu.Lock()
	if err != nil {
		s.chat = ChatError
		s.errMsg = err.Error()
		evs = s.appendLocked(RoleSystem, errorApology)
	} else {
		s.chat = ChatReceived
		s.suggestions = reply.Suggestions
		evs = s.appendLocked(RoleSystem, reply.Text)
	}
	s.mu.Unlock()
	s.publish(context.Background(), evs)

	if err != nil {
		log.Warn().Err(err).Str("component", "conversation").Str("session_id", s.id).Msg("submit failed")
		return relay.Reply{}, errors.Wrap(err, "submit")
	}
	return reply, nil
}

// Close stops pending delayed replies. Later calls return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// after runs fn with s.mu held once d has elapsed and publishes the events
// it returns. Pending calls are dropped by Close.
func (s *Session) after(d time.Duration, fn func() []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, t)
		evs := fn()
		s.mu.Unlock()
		s.publish(context.Background(), evs)
	})
	s.timers[t] = struct{}{}
}

func (s *Session) stateLocked() State {
	st := State{
		Mode:          s.mode,
		Transitioning: s.transitioning,
		Chat:          s.chat,
		Searching:     s.searching > 0,
		Loading:       s.chat == ChatSubmitting,
		Recording:     s.recording,
		Suggestions:   s.suggestions,
		Error:         s.errMsg,
	}
	if !s.vehicle.IsZero() {
		v := s.vehicle
		st.Vehicle = &v
	}
	return st
}

func (s *Session) touchLocked() {
	s.lastActivity = s.cfg.now()
}

func (s *Session) stateEventLocked() Event {
	s.seq++
	return Event{SessionID: s.id, Seq: s.seq, Kind: EventState, State: s.stateLocked()}
}

// appendLocked adds a message and returns its event.
func (s *Session) appendLocked(role Role, content string) []Event {
	now := s.cfg.now()
	m := newMessage(role, content, now)
	s.transcript = append(s.transcript, m)
	s.lastActivity = now
	s.seq++
	e := Event{SessionID: s.id, Seq: s.seq, Kind: EventMessage, Message: &m, State: s.stateLocked()}
	return []Event{e}
}

func (s *Session) publish(ctx context.Context, evs []Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range evs {
		if err := s.publisher.PublishEvent(ctx, e); err != nil {
			log.Warn().Err(err).Str("component", "conversation").Str("session_id", s.id).Msg("failed to publish session event")
		}
	}
}
