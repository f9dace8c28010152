package tui

import (
	"github.com/charmbracelet/huh"

	"github.com/go-go-golems/partes/pkg/vehicle"
)

// VehiclePicker is a cascading huh form over the vehicle catalog. Model,
// year, version and engine options follow the selected brand and model.
type VehiclePicker struct {
	catalog *vehicle.Catalog
	form    *huh.Form

	brand   string
	model   string
	year    string
	version string
	engine  string
}

func NewVehiclePicker(c *vehicle.Catalog) *VehiclePicker {
	p := &VehiclePicker{catalog: c}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Marca").
				Options(huh.NewOptions(c.Brands()...)...).
				Value(&p.brand),
			huh.NewSelect[string]().
				Title("Modelo").
				OptionsFunc(func() []huh.Option[string] {
					return huh.NewOptions(c.Models(p.brand)...)
				}, &p.brand).
				Value(&p.model),
			huh.NewSelect[string]().
				Title("Año").
				OptionsFunc(func() []huh.Option[string] {
					return huh.NewOptions(c.Years(p.brand, p.model)...)
				}, &p.model).
				Value(&p.year),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Versión").
				OptionsFunc(func() []huh.Option[string] {
					return optional(c.Versions(p.brand, p.model))
				}, &p.model).
				Value(&p.version),
			huh.NewSelect[string]().
				Title("Motor").
				OptionsFunc(func() []huh.Option[string] {
					return optional(c.Engines(p.brand, p.model))
				}, &p.model).
				Value(&p.engine),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
	return p
}

func optional(values []string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("(sin especificar)", "")}
	return append(opts, huh.NewOptions(values...)...)
}

// Form is the huh form, usable as a tea.Model or with Run.
func (p *VehiclePicker) Form() *huh.Form {
	return p.form
}

// Run shows the picker on the terminal and returns the chosen vehicle.
func (p *VehiclePicker) Run() (vehicle.Vehicle, error) {
	if err := p.form.Run(); err != nil {
		return vehicle.Vehicle{}, err
	}
	return p.Result()
}

// Result replays the selections through a vehicle.Form so the required
// fields and the catalog are checked.
func (p *VehiclePicker) Result() (vehicle.Vehicle, error) {
	f := vehicle.NewForm(p.catalog)
	f.SelectBrand(p.brand)
	f.SelectModel(p.model)
	f.SelectYear(p.year)
	f.SelectVersion(p.version)
	f.SelectEngine(p.engine)
	return f.Submit()
}
