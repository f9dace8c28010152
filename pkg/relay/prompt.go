package relay

import (
	"bytes"
	_ "embed"
	"strings"

	"github.com/go-go-golems/glazed/pkg/helpers/templating"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed partners.yaml
var partnersYAML []byte

//go:embed system_prompt.tmpl
var systemPromptTemplate string

// Store is a partner store advertised to the assistant.
type Store struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Rating      float64  `yaml:"rating" json:"rating"`
	Location    string   `yaml:"location" json:"location"`
	Specialties []string `yaml:"specialties" json:"specialties"`
}

// Partners is the static store/category list embedded in the system prompt.
type Partners struct {
	Stores     []Store  `yaml:"stores" json:"stores"`
	Categories []string `yaml:"categories" json:"categories"`
}

func DefaultPartners() (Partners, error) {
	p := Partners{}
	if err := yaml.Unmarshal(partnersYAML, &p); err != nil {
		return Partners{}, errors.Wrap(err, "parse partners")
	}
	return p, nil
}

// RenderSystemPrompt fills the assistant persona template with the partner
// list.
func RenderSystemPrompt(p Partners) (string, error) {
	tmpl, err := templating.CreateTemplate("system-prompt").Parse(systemPromptTemplate)
	if err != nil {
		return "", errors.Wrap(err, "parse system prompt template")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", errors.Wrap(err, "render system prompt")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DefaultSystemPrompt renders the persona with the embedded partners.
func DefaultSystemPrompt() (string, error) {
	p, err := DefaultPartners()
	if err != nil {
		return "", err
	}
	return RenderSystemPrompt(p)
}
