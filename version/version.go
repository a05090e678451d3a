package version

import "fmt"

// these values are set during build via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	Date      = "unknown"
	BuiltBy   = "unknown"
	GitTag    = ""
	GoVersion = ""
)

var FullVersion = fmt.Sprintf("%s (commit %s, built %s by %s)",
	Version, Commit, Date, BuiltBy)
