package cmd

import (
	"fmt"
	"runtime/debug"
)

// set with -ldflags "-X filecms/cmd.version=..."
var version = ""

// BuildVersion returns the version stamped at link time, or the module
// version from the build info
func BuildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func Version() {
	fmt.Printf("filecms %s\n", BuildVersion())
}
