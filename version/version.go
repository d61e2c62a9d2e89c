package version //nolint:revive // package name intentionally matches build-info convention

import (
	"fmt"
	"runtime/debug"
)

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

// String renders the build information, falling back to the module version
// recorded by the go tool when no ldflags were set.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			v = info.Main.Version
		}
	}

	out := v
	if Commit != "" {
		out += fmt.Sprintf(" (%s)", Commit)
	}
	if Date != "" {
		out += " built " + Date
	}
	return out
}
