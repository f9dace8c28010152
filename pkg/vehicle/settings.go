package vehicle

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
)

const SectionSlug = "vehicle"

// Settings preselects the session vehicle from flags.
type Settings struct {
	Brand   string `glazed:"brand"`
	Model   string `glazed:"model"`
	Year    string `glazed:"year"`
	Version string `glazed:"version"`
	Engine  string `glazed:"engine"`
}

func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"Vehicle attached to the conversation",
		schema.WithFields(
			fields.New("brand", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Vehicle brand, e.g. Toyota")),
			fields.New("model", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Vehicle model")),
			fields.New("year", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Model year")),
			fields.New("version", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Trim version")),
			fields.New("engine", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Engine")),
		),
	)
}

func (s Settings) Vehicle() Vehicle {
	return Vehicle{Brand: s.Brand, Model: s.Model, Year: s.Year, Version: s.Version, Engine: s.Engine}
}
