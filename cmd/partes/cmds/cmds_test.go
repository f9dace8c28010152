package cmds

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

func TestCatalogRows(t *testing.T) {
	c := vehicle.MustDefaultCatalog()

	rows := catalogRows(c, "Honda")
	require.Len(t, rows, 2)
	model, ok := rows[0].Get("model")
	require.True(t, ok)
	require.Equal(t, "Civic", model)
	years, _ := rows[0].Get("years")
	require.Equal(t, "2015-2024", years)
	engines, _ := rows[0].Get("engines")
	require.Equal(t, "1.5L Turbo, 2.0L 4-cil", engines)

	require.Greater(t, len(catalogRows(c, "")), len(rows))
}

func TestLocaleLanguage(t *testing.T) {
	require.Equal(t, "es-MX", localeLanguage("", "es_MX.UTF-8"))
	require.Equal(t, "en-US", localeLanguage("en_US@euro"))
	require.Empty(t, localeLanguage("C", "POSIX", ""))
}

func TestTerminalSessionContextChecksVehicle(t *testing.T) {
	c := vehicle.MustDefaultCatalog()
	rs := relay.Settings{Source: relay.DefaultSource}

	sc, err := terminalSessionContext(rs, vehicle.Settings{}, c)
	require.NoError(t, err)
	require.NotEmpty(t, sc.SessionID)
	require.True(t, sc.Vehicle.IsZero())

	sc, err = terminalSessionContext(rs, vehicle.Settings{Brand: "Nissan", Model: "Sentra", Year: "2020"}, c)
	require.NoError(t, err)
	require.Equal(t, "Sentra", sc.Vehicle.Model)

	_, err = terminalSessionContext(rs, vehicle.Settings{Brand: "Nissan"}, c)
	require.ErrorIs(t, err, vehicle.ErrMissingField)
}

func TestAskForMessage(t *testing.T) {
	var out bytes.Buffer
	msg, err := askForMessage(strings.NewReader("  bujías para sentra \n"), &out)
	require.NoError(t, err)
	require.Equal(t, "bujías para sentra", msg)
	require.Contains(t, out.String(), "¿Qué pieza buscas?")
}

func TestPrintReplyPlain(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printReply(&out, "**Balatas** disponibles", false))
	require.Equal(t, "**Balatas** disponibles\n", out.String())
}
