// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	-ldflags "-X github.com/arencloud/courtside/internal/version.Version=vX.Y.Z
//	          -X github.com/arencloud/courtside/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// String is the one-line form printed by the CLI.
func String() string {
	s := Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
