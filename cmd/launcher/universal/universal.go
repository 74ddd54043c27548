// Package universal routes command-line args to a sublauncher by leading
// keyword.
package universal

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/cmd/launcher"
)

type uniLauncher struct {
	chosen       launcher.SubLauncher
	sublaunchers []launcher.SubLauncher
}

// NewLauncher routes by leading keyword; args without one go to the first
// sublauncher.
func NewLauncher(sublaunchers ...launcher.SubLauncher) launcher.Launcher {
	return &uniLauncher{sublaunchers: sublaunchers}
}

func (u *uniLauncher) Execute(ctx context.Context, args []string) error {
	rest, err := u.parse(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("launcher: unparsed args: %v", rest)
	}
	if u.chosen == nil {
		return fmt.Errorf("launcher: no sublauncher selected")
	}
	return u.chosen.Run(ctx)
}

func (u *uniLauncher) parse(args []string) ([]string, error) {
	byKeyword, err := u.indexByKeyword()
	if err != nil {
		return nil, err
	}
	u.chosen = u.sublaunchers[0]
	if len(args) > 0 {
		if picked, ok := byKeyword[args[0]]; ok {
			u.chosen = picked
			args = args[1:]
		}
	}
	return u.chosen.Parse(args)
}

func (u *uniLauncher) indexByKeyword() (map[string]launcher.SubLauncher, error) {
	if len(u.sublaunchers) == 0 {
		return nil, fmt.Errorf("launcher: no sublaunchers configured")
	}
	out := make(map[string]launcher.SubLauncher, len(u.sublaunchers))
	for _, one := range u.sublaunchers {
		if one == nil {
			continue
		}
		key := one.Keyword()
		if key == "" {
			return nil, fmt.Errorf("launcher: empty keyword")
		}
		if _, exists := out[key]; exists {
			return nil, fmt.Errorf("launcher: duplicate keyword %q", key)
		}
		out[key] = one
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("launcher: no valid sublaunchers")
	}
	return out, nil
}

func (u *uniLauncher) CommandLineSyntax() string {
	var b strings.Builder
	b.WriteString("Usage: boxagent [mode] [flags]\n\nModes:\n")
	for _, one := range u.sublaunchers {
		if one == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-10s %s\n", one.Keyword(), one.SimpleDescription())
	}
	b.WriteString("\nFlags per mode:\n")
	for _, one := range u.sublaunchers {
		if one == nil {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s\n", one.Keyword(), one.CommandLineSyntax())
	}
	return b.String()
}
