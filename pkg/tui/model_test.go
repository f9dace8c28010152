package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/partes/pkg/conversation"
	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

func newTestModel(t *testing.T, strategy relay.ReplyStrategy, copyFn func(string) error) (Model, *conversation.Session) {
	t.Helper()
	events := NewEventChannel(16)
	s := conversation.NewSession("tui-1", relay.SessionContext{}, strategy, events, conversation.Config{
		TransitionDelay: 5 * time.Millisecond,
		ReplyDelay:      5 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return NewModel(s, Options{Events: events.Events(), Copy: copyFn}), s
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestEnterSubmitsAndShowsReply(t *testing.T) {
	m, s := newTestModel(t, relay.StrategyFunc(func(_ context.Context, turn relay.Turn) (relay.Reply, error) {
		return relay.Reply{Text: "Tengo filtros para " + turn.Message}, nil
	}), nil)

	m = typeText(t, m, "aceite")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	require.True(t, m.submitting)
	require.Empty(t, m.input.Value())

	// input is ignored while the submit is in flight
	m = typeText(t, m, "otra")
	require.Empty(t, m.input.Value())
	_, again := press(m, tea.KeyEnter)
	require.Nil(t, again)

	done := cmd()
	require.IsType(t, submitDoneMsg{}, done)
	next, _ := m.Update(done)
	m = next.(Model)

	require.False(t, m.submitting)
	require.Len(t, s.Transcript(), 2)
	require.Contains(t, m.View(), "Tengo filtros para aceite")
}

func TestSubmitErrorShowsBanner(t *testing.T) {
	m, _ := newTestModel(t, relay.StrategyFunc(func(context.Context, relay.Turn) (relay.Reply, error) {
		return relay.Reply{}, errors.New("upstream down")
	}), nil)

	m = typeText(t, m, "hola")
	m, cmd := press(m, tea.KeyEnter)
	next, _ := m.Update(cmd())
	m = next.(Model)

	view := m.View()
	require.Contains(t, view, "Error:")
	require.Contains(t, view, "upstream down")
}

func TestCopyLastReply(t *testing.T) {
	var copied string
	m, s := newTestModel(t, relay.StrategyFunc(func(context.Context, relay.Turn) (relay.Reply, error) {
		return relay.Reply{Text: "Balatas cerámicas"}, nil
	}), func(text string) error {
		copied = text
		return nil
	})

	m, cmd := press(m, tea.KeyCtrlY)
	require.Nil(t, cmd)
	require.Equal(t, "No hay respuesta para copiar", m.status)

	_, err := s.Submit(context.Background(), "frenos")
	require.NoError(t, err)
	next, _ := m.Update(submitDoneMsg{})
	m = next.(Model)

	m, cmd = press(m, tea.KeyCtrlY)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(Model)
	require.Equal(t, "Balatas cerámicas", copied)
	require.Equal(t, "Respuesta copiada", m.status)
}

func TestToggleModeAndSlashCommands(t *testing.T) {
	m, s := newTestModel(t, nil, nil)

	m, _ = press(m, tea.KeyCtrlT)
	require.True(t, m.snapshot.Transitioning)
	require.Eventually(t, func() bool {
		return s.Mode() == conversation.ModeIntelligent
	}, time.Second, 5*time.Millisecond)

	m = typeText(t, m, "/buscar amortiguadores")
	m, cmd := press(m, tea.KeyEnter)
	require.Nil(t, cmd)
	require.False(t, m.submitting)
	require.Equal(t, "Búsqueda: amortiguadores", s.Transcript()[0].Content)

	m = typeText(t, m, "/voz")
	m, _ = press(m, tea.KeyEnter)
	require.True(t, m.snapshot.Recording)
	require.Contains(t, m.View(), "Grabando")

	require.Eventually(t, func() bool {
		return !s.Snapshot().Searching
	}, time.Second, 5*time.Millisecond)
	m.snapshot = s.Snapshot()
	view := m.View()
	require.Contains(t, view, "Grabando")
	require.NotContains(t, view, "Buscando en el catálogo")
}

func TestViewShowsRecordingWhileSearching(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	m.snapshot.Searching = true
	m.snapshot.Recording = true

	view := m.View()
	require.Contains(t, view, "Buscando en el catálogo")
	require.Contains(t, view, "Grabando")
}

func TestEventsRefreshSnapshot(t *testing.T) {
	m, s := newTestModel(t, nil, nil)
	require.NoError(t, s.SetVehicle(vehicle.Vehicle{Brand: "Honda", Model: "Civic", Year: "2019"}))

	e := <-m.events
	next, cmd := m.Update(eventMsg(e))
	m = next.(Model)
	require.NotNil(t, cmd)
	require.NotNil(t, m.snapshot.Vehicle)
	require.True(t, strings.Contains(m.View(), "Honda Civic 2019"))
}

func TestVehiclePickerOpensAndCancels(t *testing.T) {
	m, _ := newTestModel(t, nil, nil)
	m, _ = press(m, tea.KeyCtrlV)
	require.NotNil(t, m.picker)
	require.Contains(t, m.View(), "Tu vehículo")

	m, _ = press(m, tea.KeyEsc)
	require.Nil(t, m.picker)
}

func TestVehiclePickerResult(t *testing.T) {
	p := NewVehiclePicker(vehicle.MustDefaultCatalog())
	p.brand, p.model, p.year = "Toyota", "Camry", "2021"
	p.engine = "3.5L V6"
	v, err := p.Result()
	require.NoError(t, err)
	require.Equal(t, vehicle.Vehicle{Brand: "Toyota", Model: "Camry", Year: "2021", Engine: "3.5L V6"}, v)

	p.model = "Civic"
	_, err = p.Result()
	require.ErrorIs(t, err, vehicle.ErrUnknownOption)

	p.brand = ""
	_, err = p.Result()
	require.ErrorIs(t, err, vehicle.ErrMissingField)
}
