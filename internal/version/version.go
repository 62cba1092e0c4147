// Package version carries build metadata stamped in via -ldflags.
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return Version + " (" + Commit + ", " + BuildDate + ")"
}
