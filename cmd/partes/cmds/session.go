package cmds

import (
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/partes/pkg/relay"
	"github.com/go-go-golems/partes/pkg/vehicle"
)

const cliVersion = "1.0"

// terminalSessionContext describes a terminal user the way the HTTP layer
// describes a browser. The vehicle flags are checked against the catalog
// when any of them is set.
func terminalSessionContext(rs relay.Settings, vs vehicle.Settings, catalog *vehicle.Catalog) (relay.SessionContext, error) {
	v := vs.Vehicle()
	if !v.IsZero() {
		if err := vehicle.Validate(catalog, v); err != nil {
			return relay.SessionContext{}, errors.Wrap(err, "vehicle flags")
		}
	}
	return relay.SessionContext{
		SessionID: uuid.NewString(),
		Language:  localeLanguage(os.Getenv("LC_ALL"), os.Getenv("LANG")),
		UserAgent: "partes-cli/" + cliVersion,
		Platform:  runtime.GOOS,
		Source:    rs.Source,
		Version:   cliVersion,
		Vehicle:   v,
	}, nil
}

// localeLanguage turns "es_MX.UTF-8" into "es-MX"; the first non-empty,
// non-POSIX value wins.
func localeLanguage(values ...string) string {
	for _, v := range values {
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}
