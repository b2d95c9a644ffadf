package cmd

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	cfg "github.com/cedar-backup/cback/pkg/config"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

var now = time.Now

// setupLogging installs the default logger from the persistent logging flags.
func setupLogging(cmd *cobra.Command) (io.Closer, error) {
	flags := cmd.Flags()
	logFile, _ := flags.GetString("logfile")
	owner, _ := flags.GetString("owner")
	mode, _ := flags.GetString("mode")
	level, _ := flags.GetString("logs-level")
	verbose, _ := flags.GetBool("verbose")
	debug, _ := flags.GetBool("debug")
	quiet, _ := flags.GetBool("quiet")

	return log.Setup(log.Options{
		LogFile: logFile,
		Owner:   owner,
		Mode:    mode,
		Level:   level,
		Verbose: verbose,
		Debug:   debug,
		Quiet:   quiet,
		Screen:  cmd.ErrOrStderr(),
	})
}

// loadConfig reads the configuration file and, when check is set, rejects
// a configuration with any problem.
func loadConfig(path string, check bool) (*schema.Configuration, error) {
	config, err := cfg.Load(path)
	if err != nil {
		return nil, err
	}
	if !check {
		return config, nil
	}
	if err := cfg.Validate(config); err != nil {
		return nil, errUtils.WithHint(err, "run 'cback validate' for a full report")
	}
	return config, nil
}

// newCommandRunner returns the runner external tools are started with,
// honouring the command overrides of the options section.
func newCommandRunner(config *schema.Configuration, logOutput bool) runner.CommandRunner {
	var overrides []schema.CommandOverride
	if config.Options != nil {
		overrides = config.Options.Overrides
	}
	return runner.NewShellRunner(runner.NewPathResolver(overrides), logOutput)
}

// remotePeerFactory builds managed peers that reach their host through r.
func remotePeerFactory(r runner.CommandRunner) action.PeerFactory {
	return func(p schema.RemotePeer, workingDir string) action.ManagedPeer {
		return &peer.RemotePeer{
			Name:          p.Name,
			CollectDir:    p.CollectDir,
			WorkingDir:    workingDir,
			RemoteUser:    p.RemoteUser,
			RcpCommand:    p.RcpCommand,
			RshCommand:    p.RshCommand,
			CbackCommand:  p.CbackCommand,
			IgnoreFailure: p.IgnoreFailure,
			Runner:        r,
		}
	}
}
