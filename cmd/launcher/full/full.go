package full

import (
	"github.com/andrewrchen05/bounding-box-agent/cmd/launcher"
	launcherconsole "github.com/andrewrchen05/bounding-box-agent/cmd/launcher/console"
	launchereval "github.com/andrewrchen05/bounding-box-agent/cmd/launcher/evalmode"
	"github.com/andrewrchen05/bounding-box-agent/cmd/launcher/universal"
)

// NewLauncher wires every mode the binary ships: the console (default) and
// the eval suite.
func NewLauncher(consoleRun, evalRun launcher.RunWithArgs) launcher.Launcher {
	return universal.NewLauncher(
		launcherconsole.NewLauncher(consoleRun),
		launchereval.NewLauncher(evalRun),
	)
}
