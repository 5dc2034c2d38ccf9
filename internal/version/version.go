// Package version carries build metadata injected via -ldflags.
package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.3.0
	Commit    = "none"                          // short git sha
	BuildDate = time.Now().Format(time.RFC3339) // overridden at build time
	GoVersion = runtime.Version()
)
