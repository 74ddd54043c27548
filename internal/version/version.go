// Package version carries build metadata stamped into release binaries.
package version

import "strings"

// Set by the release pipeline through -ldflags "-X ...". Source builds keep
// the dev defaults.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the stamped metadata as one line, skipping blank fields.
func String() string {
	var b strings.Builder
	for _, part := range []struct{ prefix, value string }{
		{"", Version},
		{"commit=", Commit},
		{"date=", Date},
	} {
		value := strings.TrimSpace(part.value)
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part.prefix)
		b.WriteString(value)
	}
	return b.String()
}
