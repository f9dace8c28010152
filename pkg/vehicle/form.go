package vehicle

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Vehicle is the user's car. A session holds at most one and replaces it
// wholesale on every save.
type Vehicle struct {
	Brand   string `json:"brand"`
	Model   string `json:"model"`
	Year    string `json:"year"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
}

func (v Vehicle) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", v.Brand, v.Model, v.Year))
}

func (v Vehicle) IsZero() bool {
	return v == Vehicle{}
}

var ErrMissingField = errors.New("missing required field")

// FieldError reports which form field failed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

var ErrUnknownOption = errors.New("value not offered by catalog")

// Form is the cascading brand → model → year → version/engine selection.
// Changing an upstream field clears everything below it.
type Form struct {
	catalog *Catalog
	Vehicle
}

func NewForm(c *Catalog) *Form {
	return &Form{catalog: c}
}

func (f *Form) Catalog() *Catalog {
	return f.catalog
}

func (f *Form) SelectBrand(brand string) {
	f.Brand = brand
	f.Model = ""
	f.Year = ""
	f.Version = ""
	f.Engine = ""
}

func (f *Form) SelectModel(model string) {
	f.Model = model
	f.Year = ""
	f.Version = ""
	f.Engine = ""
}

func (f *Form) SelectYear(year string) {
	f.Year = year
}

func (f *Form) SelectVersion(version string) {
	f.Version = version
}

func (f *Form) SelectEngine(engine string) {
	f.Engine = engine
}

// ModelOptions lists the models of the selected brand; empty until a brand
// is chosen.
func (f *Form) ModelOptions() []string {
	if f.Brand == "" {
		return nil
	}
	return f.catalog.Models(f.Brand)
}

func (f *Form) YearOptions() []string {
	if f.Model == "" {
		return nil
	}
	return f.catalog.Years(f.Brand, f.Model)
}

func (f *Form) VersionOptions() []string {
	if f.Model == "" {
		return nil
	}
	return f.catalog.Versions(f.Brand, f.Model)
}

func (f *Form) EngineOptions() []string {
	if f.Model == "" {
		return nil
	}
	return f.catalog.Engines(f.Brand, f.Model)
}

// Submit validates the form and returns the selected vehicle. Brand, model
// and year are required; version and engine are optional but must be
// offered by the catalog when set.
func (f *Form) Submit() (Vehicle, error) {
	if err := Validate(f.catalog, f.Vehicle); err != nil {
		return Vehicle{}, err
	}
	return f.Vehicle, nil
}

// Validate checks v against the required fields and, when c is not nil,
// against the catalog.
func Validate(c *Catalog, v Vehicle) error {
	required := []struct {
		name  string
		value string
	}{
		{"brand", v.Brand},
		{"model", v.Model},
		{"year", v.Year},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &FieldError{Field: r.name, Err: ErrMissingField}
		}
	}
	if c == nil {
		return nil
	}
	if !contains(c.Brands(), v.Brand) {
		return &FieldError{Field: "brand", Err: ErrUnknownOption}
	}
	if !contains(c.Models(v.Brand), v.Model) {
		return &FieldError{Field: "model", Err: ErrUnknownOption}
	}
	if !contains(c.Years(v.Brand, v.Model), v.Year) {
		return &FieldError{Field: "year", Err: ErrUnknownOption}
	}
	if v.Version != "" && !contains(c.Versions(v.Brand, v.Model), v.Version) {
		return &FieldError{Field: "version", Err: ErrUnknownOption}
	}
	if v.Engine != "" && !contains(c.Engines(v.Brand, v.Model), v.Engine) {
		return &FieldError{Field: "engine", Err: ErrUnknownOption}
	}
	return nil
}
