package util

import (
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// oldest client that sends options in the current message layout
	RequiredClientVersion string = "v0.2.0"
	ClientVersionHeader   string = "X-Qp-Client-Version"
)

// CheckClientVersion reports whether a client with version toCheck may use
// the API. Versions that are not semver (e.g. "dev" builds) are accepted.
func CheckClientVersion(toCheck string) bool {
	if toCheck == "" {
		return true
	}
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return true
	}
	return semver.Compare(toCheck, RequiredClientVersion) >= 0
}
