// Package launcher splits the binary into keyword-selected run modes.
package launcher

import "context"

// RunWithArgs runs one mode with its remaining command-line args.
type RunWithArgs func(context.Context, []string) error

// Launcher parses args, selects a mode, and runs it.
type Launcher interface {
	Execute(context.Context, []string) error
	CommandLineSyntax() string
}

// SubLauncher is one runnable mode (console, eval). Parse consumes the
// mode's args and returns whatever it cannot interpret.
type SubLauncher interface {
	Keyword() string
	Parse([]string) ([]string, error)
	CommandLineSyntax() string
	SimpleDescription() string
	Run(context.Context) error
}
