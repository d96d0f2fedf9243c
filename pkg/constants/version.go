package constants

import (
	"os"
)

// BuildVersion is the local build version, set by build system
const BuildVersion = "0.1.0"

var CurrentCommit string

// UserVersion is the version reported to users.
func UserVersion() string {
	if os.Getenv("VMCORE_VERSION_IGNORE_COMMIT") == "1" {
		return BuildVersion
	}

	return BuildVersion + CurrentCommit
}
