// Package version exposes the clay release version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the current version string.
func Get() string {
	return strings.TrimSpace(raw)
}
