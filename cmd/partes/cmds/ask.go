package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

type AskCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*AskCommand)(nil)

type AskSettings struct {
	Message string `glazed:"message"`
	Raw     bool   `glazed:"raw"`
}

func NewAskCommand() (*AskCommand, error) {
	relaySection, err := relay.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build relay section")
	}
	vehicleSection, err := vehicle.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build vehicle section")
	}

	desc := cmds.NewCommandDescription(
		"ask",
		cmds.WithShort("Send one message to the assistant and print the reply"),
		cmds.WithArguments(
			fields.New("message", fields.TypeString, fields.WithHelp("Message to send (prompted for when omitted)")),
		),
		cmds.WithFlags(
			fields.New("raw", fields.TypeBool, fields.WithDefault(false),
				fields.WithHelp("Print the upstream JSON instead of the reply text")),
		),
		cmds.WithSections(relaySection, vehicleSection),
	)
	return &AskCommand{CommandDescription: desc}, nil
}

func (c *AskCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &AskSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "init ask settings")
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

	message := strings.TrimSpace(s.Message)
	if message == "" {
		var err error
		message, err = askForMessage(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
	}

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

	turn := relay.NewTurn(relay.ChatRequest{Type: relay.ChatType, Data: relay.ChatData{Message: message}}, sc, time.Now())
	log.Debug().Str("component", "ask").Str("strategy", strategy.Name()).Str("session_id", sc.SessionID).Msg("sending message")
	reply, err := strategy.Reply(ctx, turn)
	if err != nil {
		return errors.Wrap(err, "ask")
	}

	if s.Raw && reply.Raw != nil {
		_, err = fmt.Fprintln(w, string(reply.Raw))
		return err
	}
	return printReply(w, reply.Text, w == io.Writer(os.Stdout) && isatty.IsTerminal(os.Stdout.Fd()))
}

func askForMessage(r io.Reader, w io.Writer) (string, error) {
	ui := &input.UI{
		Writer: w,
		Reader: r,
	}
	answer, err := ui.Ask("¿Qué pieza buscas?", &input.Options{
		Required:  true,
		Loop:      true,
		HideOrder: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "read message")
	}
	return strings.TrimSpace(answer), nil
}

// printReply renders markdown replies when writing to a terminal.
func printReply(w io.Writer, text string, terminal bool) error {
	if terminal {
		styled, err := glamour.Render(text, "dark")
		if err == nil {
			_, err = fmt.Fprint(w, styled)
			return err
		}
		log.Debug().Err(err).Str("component", "ask").Msg("markdown rendering failed, printing plain text")
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
