// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// Set with -ldflags "-X github.com/tphakala/shiftledger/internal/buildinfo.version=..."
var (
	version   = ""
	buildDate = ""
)

// Context contains build metadata that is not user-configurable.
type Context struct {
	Version   string
	BuildDate string
}

// Current returns the metadata of the running binary.
func Current() *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or "dev" for local builds.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return "dev"
	}
	return c.Version
}

// GetBuildDate returns the build date or "unknown".
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

// Release is the identifier reported to error tracking.
func (c *Context) Release() string {
	return fmt.Sprintf("shiftledger@%s", c.GetVersion())
}

// String is the text shown by --version.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
