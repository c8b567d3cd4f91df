// Package version holds build metadata injected via ldflags.
package version

import "time"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Timestamp returns Date as epoch seconds, or 0 when it is not an RFC 3339 time.
func Timestamp() int64 {
	t, err := time.Parse(time.RFC3339, Date)
	if err != nil {
		return 0
	}
	return t.Unix()
}
