package cmds

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/transcriptstream"
	"github.com/go-go-golems/partes/pkg/webui"
)

type ServeCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ServeCommand)(nil)

func NewServeCommand() (*ServeCommand, error) {
	relaySection, err := relay.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build relay section")
	}
	redisSection, err := transcriptstream.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build redis section")
	}
	serverSection, err := webui.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build server section")
	}

	desc := cmds.NewCommandDescription(
		"serve",
		cmds.WithShort("Serve the chat relay endpoints, the session API and the transcript websocket"),
		cmds.WithSections(relaySection, redisSection, serverSection),
	)
	return &ServeCommand{CommandDescription: desc}, nil
}

func (c *ServeCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, _ io.Writer) error {
	rs := relay.Settings{}
	if err := parsed.DecodeSectionInto(relay.SectionSlug, &rs); err != nil {
		return errors.Wrap(err, "init relay settings")
	}
	ts := transcriptstream.Settings{}
	if err := parsed.DecodeSectionInto(transcriptstream.SectionSlug, &ts); err != nil {
		return errors.Wrap(err, "init redis settings")
	}
	ss := webui.Settings{}
	if err := parsed.DecodeSectionInto(webui.SectionSlug, &ss); err != nil {
		return errors.Wrap(err, "init server settings")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := webui.NewServer(ctx, ss, rs, ts)
	if err != nil {
		return err
	}
	log.Debug().Str("component", "serve").Str("strategy", rs.Strategy).Bool("redis", ts.Enabled).Msg("serve settings decoded")
	return srv.Run(ctx)
}
