package evalmode

import (
	"context"
	"fmt"

	"github.com/andrewrchen05/bounding-box-agent/cmd/launcher"
)

type evalLauncher struct {
	run  launcher.RunWithArgs
	args []string
}

func NewLauncher(run launcher.RunWithArgs) launcher.SubLauncher {
	return &evalLauncher{run: run}
}

func (l *evalLauncher) Keyword() string {
	return "eval"
}

func (l *evalLauncher) Parse(args []string) ([]string, error) {
	l.args = append([]string(nil), args...)
	return nil, nil
}

func (l *evalLauncher) CommandLineSyntax() string {
	return "  eval [flags]\n  Example: eval -suite light -model gemini-2.5-flash"
}

func (l *evalLauncher) SimpleDescription() string {
	return "run the live-model eval suite"
}

func (l *evalLauncher) Run(ctx context.Context) error {
	if l.run == nil {
		return fmt.Errorf("launcher(eval): run function is nil")
	}
	return l.run(ctx, l.args)
}
