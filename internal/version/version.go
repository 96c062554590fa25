// Package version holds the gateway's version and comparison helpers.
package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the service semantic version, overridable at build time with
// -ldflags "-X github.com/hrygo/chatgate/internal/version.Version=x.y.z".
var Version = "0.1.0"

// GetCurrentVersion returns the version string for the given mode; dev builds
// are suffixed so they never compare equal to a release.
func GetCurrentVersion(mode string) string {
	if mode == "prod" {
		return Version
	}
	return fmt.Sprintf("%s-%s", Version, mode)
}

// IsVersionGreaterOrEqualThan reports whether version >= target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare("v"+version, "v"+target) >= 0
}
