package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/conversation"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

const (
	searchPrefix = "/buscar "
	attachPrefix = "/adjuntar "
	voiceCommand = "/voz"

	helpLine = "enter enviar • ctrl+t modo inteligente • ctrl+y copiar respuesta • ctrl+v vehículo • /buscar • /adjuntar • /voz • esc salir"
)

type eventMsg conversation.Event

type submitDoneMsg struct {
	err error
}

type statusMsg string

type Options struct {
	Catalog *vehicle.Catalog
	// Events refreshes the view when the session changes outside of a
	// submit, e.g. delayed search results.
	Events <-chan conversation.Event
	// Copy writes to the clipboard; defaults to atotto/clipboard.
	Copy func(string) error
}

// Model is the terminal chat over one conversation.Session.
type Model struct {
	session *conversation.Session
	catalog *vehicle.Catalog
	events  <-chan conversation.Event
	copy    func(string) error

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	picker   *VehiclePicker

	snapshot   conversation.Snapshot
	submitting bool
	status     string
	width      int
}

func NewModel(s *conversation.Session, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Pregunta por una pieza..."
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = systemStyle

	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = vehicle.MustDefaultCatalog()
	}

	m := Model{
		session:  s,
		catalog:  catalog,
		events:   opts.Events,
		copy:     copyFn,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		snapshot: s.Snapshot(),
		width:    80,
	}
	m.refreshViewport()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan conversation.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		return m.updatePicker(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		// header, banner, status, input and help
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refreshViewport()
		return m, nil

	case eventMsg:
		m.snapshot = m.session.Snapshot()
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case submitDoneMsg:
		m.submitting = false
		m.input.Focus()
		m.snapshot = m.session.Snapshot()
		if msg.err != nil {
			log.Debug().Err(msg.err).Str("component", "tui").Msg("submit failed")
		}
		m.refreshViewport()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		return m.handleEnter()

	case "ctrl+t":
		if !m.session.ToggleMode() {
			m.status = "Cambio de modo en curso"
		}
		m.snapshot = m.session.Snapshot()
		return m, nil

	case "ctrl+y":
		reply := lastReply(m.snapshot.Transcript)
		if reply == "" {
			m.status = "No hay respuesta para copiar"
			return m, nil
		}
		return m, copyCmd(m.copy, reply)

	case "ctrl+v":
		if m.submitting {
			return m, nil
		}
		m.picker = NewVehiclePicker(m.catalog)
		return m, m.picker.Form().Init()

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.submitting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.status = ""

	var err error
	switch {
	case strings.HasPrefix(text, searchPrefix):
		err = m.session.Search(strings.TrimPrefix(text, searchPrefix))
	case strings.HasPrefix(text, attachPrefix):
		err = m.session.AttachFile(strings.TrimPrefix(text, attachPrefix))
	case text == voiceCommand:
		_, err = m.session.ToggleRecording()
	default:
		m.submitting = true
		m.input.Blur()
		m.snapshot = m.session.Snapshot()
		m.refreshViewport()
		return m, submitCmd(m.session, text)
	}
	if err != nil {
		m.status = err.Error()
	}
	m.snapshot = m.session.Snapshot()
	m.refreshViewport()
	return m, nil
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.picker = nil
		return m, nil
	}
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = ws.Width
	}

	fm, cmd := m.picker.Form().Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		switch f.State {
		case huh.StateCompleted:
			v, err := m.picker.Result()
			m.picker = nil
			if err == nil {
				err = m.session.SetVehicle(v)
			}
			if err != nil {
				m.status = err.Error()
			}
			m.snapshot = m.session.Snapshot()
			m.refreshViewport()
			return m, nil
		case huh.StateAborted:
			m.picker = nil
			return m, nil
		}
	}
	return m, cmd
}

func submitCmd(s *conversation.Session, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Submit(context.Background(), text)
		return submitDoneMsg{err: err}
	}
}

func copyCmd(copyFn func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		if err := copyFn(text); err != nil {
			return statusMsg(errors.Wrap(err, "copy to clipboard").Error())
		}
		return statusMsg("Respuesta copiada")
	}
}

func lastReply(transcript []conversation.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == conversation.RoleSystem {
			return transcript[i].Content
		}
	}
	return ""
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(renderTranscript(m.snapshot.Transcript, m.width))
	m.viewport.GotoBottom()
}

func renderTranscript(transcript []conversation.Message, width int) string {
	if len(transcript) == 0 {
		return statusStyle.Render("¡Hola! Cuéntame qué pieza necesitas.")
	}
	body := bodyStyle.Width(max(width-2, 10))
	var b strings.Builder
	for i, msg := range transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		if msg.Role == conversation.RoleUser {
			b.WriteString(userStyle.Render("Tú"))
		} else {
			b.WriteString(systemStyle.Render("Partes"))
		}
		b.WriteString("\n")
		b.WriteString(body.Render(msg.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) header() string {
	mode := modeStyle.Render("modo normal")
	if m.snapshot.Mode == conversation.ModeIntelligent {
		mode = smartStyle.Render("modo inteligente")
	}
	if m.snapshot.Transitioning {
		mode = modeStyle.Render("cambiando de modo...")
	}
	parts := []string{titleStyle.Render("Partes"), mode}
	if m.snapshot.Vehicle != nil {
		parts = append(parts, modeStyle.Render(m.snapshot.Vehicle.String()))
	}
	return strings.Join(parts, "  ")
}

func (m Model) View() string {
	if m.picker != nil {
		return pickerStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(" Tu vehículo "),
			m.picker.Form().View(),
			helpStyle.Render("esc cancelar"),
		))
	}

	lines := []string{m.header(), m.viewport.View()}
	if m.snapshot.Chat == conversation.ChatError && m.snapshot.Error != "" {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Error: %s", m.snapshot.Error)))
	}
	switch {
	case m.submitting:
		lines = append(lines, m.spinner.View()+statusStyle.Render(" Buscando respuesta..."))
	case m.snapshot.Searching:
		lines = append(lines, m.spinner.View()+statusStyle.Render(" Buscando en el catálogo..."))
	case m.status != "" && !m.snapshot.Recording:
		lines = append(lines, statusStyle.Render(m.status))
	}
	if m.snapshot.Recording {
		lines = append(lines, statusStyle.Render("● Grabando (escribe /voz para terminar)"))
	}
	lines = append(lines, m.input.View(), helpStyle.Render(helpLine))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
