package vehicle

import (
	_ "embed"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Model is one selectable model of a make, with the years, trims and engines
// offered for it.
type Model struct {
	Name     string   `yaml:"name" json:"name"`
	Years    []int    `yaml:"years" json:"years"`
	Versions []string `yaml:"versions,omitempty" json:"versions,omitempty"`
	Engines  []string `yaml:"engines,omitempty" json:"engines,omitempty"`
}

type Make struct {
	Name   string  `yaml:"name" json:"name"`
	Models []Model `yaml:"models" json:"models"`
}

// Catalog is the static make/model/year tree backing vehicle selection.
type Catalog struct {
	Makes []Make `yaml:"makes" json:"makes"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// MustDefaultCatalog panics if the embedded catalog cannot be parsed.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(b []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "parse vehicle catalog")
	}
	if len(c.Makes) == 0 {
		return nil, errors.New("vehicle catalog has no makes")
	}
	return c, nil
}

func (c *Catalog) Brands() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Makes))
	for _, m := range c.Makes {
		out = append(out, m.Name)
	}
	return out
}

func (c *Catalog) Make(brand string) (Make, bool) {
	if c == nil {
		return Make{}, false
	}
	for _, m := range c.Makes {
		if m.Name == brand {
			return m, true
		}
	}
	return Make{}, false
}

func (c *Catalog) Models(brand string) []string {
	mk, ok := c.Make(brand)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(mk.Models))
	for _, m := range mk.Models {
		out = append(out, m.Name)
	}
	return out
}

func (c *Catalog) Model(brand, model string) (Model, bool) {
	mk, ok := c.Make(brand)
	if !ok {
		return Model{}, false
	}
	for _, m := range mk.Models {
		if m.Name == model {
			return m, true
		}
	}
	return Model{}, false
}

// Years returns the model years as strings, newest first, the way the form
// presents them.
func (c *Catalog) Years(brand, model string) []string {
	m, ok := c.Model(brand, model)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.Years))
	for _, y := range m.Years {
		out = append(out, strconv.Itoa(y))
	}
	return out
}

func (c *Catalog) Versions(brand, model string) []string {
	m, _ := c.Model(brand, model)
	return m.Versions
}

func (c *Catalog) Engines(brand, model string) []string {
	m, _ := c.Model(brand, model)
	return m.Engines
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
