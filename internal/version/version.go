package version

import (
	"fmt"
	"io"
	"runtime"
)

// Set with -ldflags "-X github.com/larsks/gpiocdev/internal/version.Version=..."
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// String returns a one-line description of this build.
func String() string {
	return fmt.Sprintf("%s (built %s, %s %s/%s)", Version, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func Fprint(w io.Writer) {
	fmt.Fprintln(w, String()) //nolint:errcheck
}
