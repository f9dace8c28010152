package cmds

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"

	"github.com/go-go-golems/partes/pkg/conversation"
	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/tui"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

type ChatCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ChatCommand)(nil)

type ChatSettings struct {
	PickVehicle bool `glazed:"pick-vehicle"`
	AltScreen   bool `glazed:"alt-screen"`
}

func NewChatCommand() (*ChatCommand, error) {
	relaySection, err := relay.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build relay section")
	}
	vehicleSection, err := vehicle.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build vehicle section")
	}

	desc := cmds.NewCommandDescription(
		"chat",
		cmds.WithShort("Chat with the assistant in the terminal"),
		cmds.WithFlags(
			fields.New("pick-vehicle", fields.TypeBool, fields.WithDefault(false),
				fields.WithHelp("Choose the vehicle before the chat starts")),
			fields.New("alt-screen", fields.TypeBool, fields.WithDefault(true),
				fields.WithHelp("Use the terminal alternate screen")),
		),
		cmds.WithSections(relaySection, vehicleSection),
	)
	return &ChatCommand{CommandDescription: desc}, nil
}

func (c *ChatCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, _ io.Writer) error {
	s := &ChatSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "init chat settings")
	}
	rs := relay.Settings{}
	if err := parsed.DecodeSectionInto(relay.SectionSlug, &rs); err != nil {
		return errors.Wrap(err, "init relay settings")
	}
	vs := vehicle.Settings{}
	if err := parsed.DecodeSectionInto(vehicle.SectionSlug, &vs); err != nil {
		return errors.Wrap(err, "init vehicle settings")
	}
	rs = rs.WithEnvDefaults()

	catalog, err := vehicle.DefaultCatalog()
	if err != nil {
		return err
	}
	sc, err := terminalSessionContext(rs, vs, catalog)
	if err != nil {
		return err
	}
	strategy, err := rs.BuildStrategy()
	if err != nil {
		return errors.Wrap(err, "build reply strategy")
	}

	events := tui.NewEventChannel(64)
	session := conversation.NewSession(sc.SessionID, sc, strategy, events, conversation.DefaultConfig())
	defer session.Close()

	if s.PickVehicle {
		v, err := tui.NewVehiclePicker(catalog).Run()
		if err != nil {
			return errors.Wrap(err, "pick vehicle")
		}
		if err := session.SetVehicle(v); err != nil {
			return err
		}
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if s.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	model := tui.NewModel(session, tui.Options{Catalog: catalog, Events: events.Events()})
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat")
	}
	return nil
}
