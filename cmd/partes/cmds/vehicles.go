package cmds

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"

	"github.com/go-go-golems/partes/pkg/vehicle"
)

type VehiclesCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*VehiclesCommand)(nil)

type VehiclesSettings struct {
	Brand string `glazed:"brand"`
}

func NewVehiclesCommand() (*VehiclesCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"vehicles",
		cmds.WithShort("List the vehicle catalog"),
		cmds.WithLong("List one row per make and model with its year span, versions and engines."),
		cmds.WithFlags(
			fields.New("brand", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Only list models of this brand")),
		),
		cmds.WithSections(glazedSection, commandSettingsSection),
	)
	return &VehiclesCommand{CommandDescription: desc}, nil
}

func (c *VehiclesCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsed *values.Values,
	gp middlewares.Processor,
) error {
	s := &VehiclesSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	catalog, err := vehicle.DefaultCatalog()
	if err != nil {
		return err
	}
	if s.Brand != "" {
		if _, ok := catalog.Make(s.Brand); !ok {
			return errors.Errorf("unknown brand %q", s.Brand)
		}
	}

	for _, row := range catalogRows(catalog, s.Brand) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func catalogRows(c *vehicle.Catalog, brand string) []types.Row {
	var rows []types.Row
	for _, mk := range c.Makes {
		if brand != "" && mk.Name != brand {
			continue
		}
		for _, m := range mk.Models {
			span := ""
			if len(m.Years) > 0 {
				span = fmt.Sprintf("%d-%d", slices.Min(m.Years), slices.Max(m.Years))
			}
			rows = append(rows, types.NewRow(
				types.MRP("brand", mk.Name),
				types.MRP("model", m.Name),
				types.MRP("years", span),
				types.MRP("versions", strings.Join(m.Versions, ", ")),
				types.MRP("engines", strings.Join(m.Engines, ", ")),
			))
		}
	}
	return rows
}
