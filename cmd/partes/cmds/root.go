package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/spf13/cobra"
)

// AddToRootCommand registers serve, ask, chat and vehicles.
func AddToRootCommand(rootCmd *cobra.Command) error {
	builders := []func() (glazed_cmds.Command, error){
		func() (glazed_cmds.Command, error) { return NewServeCommand() },
		func() (glazed_cmds.Command, error) { return NewAskCommand() },
		func() (glazed_cmds.Command, error) { return NewChatCommand() },
		func() (glazed_cmds.Command, error) { return NewVehiclesCommand() },
	}
	for _, build := range builders {
		c, err := build()
		if err != nil {
			return err
		}
		cobraCmd, err := cli.BuildCobraCommand(c, cli.WithCobraMiddlewaresFunc(getMiddlewares))
		if err != nil {
			return err
		}
		rootCmd.AddCommand(cobraCmd)
	}
	return nil
}

// getMiddlewares layers flags over PARTES_* environment variables over
// defaults.
func getMiddlewares(
	_ *values.Values,
	cmd *cobra.Command,
	args []string,
) ([]sources.Middleware, error) {
	return []sources.Middleware{
		sources.FromCobra(cmd),
		sources.FromArgs(args),
		sources.FromEnv("PARTES",
			fields.WithSource("env"),
		),
		sources.FromDefaults(),
	}, nil
}
