package cmd

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	errUtils "github.com/cedar-backup/cback/errors"
	e "github.com/cedar-backup/cback/internal/exec"
	"github.com/cedar-backup/cback/pkg/action"
	cfg "github.com/cedar-backup/cback/pkg/config"
	"github.com/cedar-backup/cback/pkg/extend"
	"github.com/cedar-backup/cback/pkg/lock"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/version"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cback [flags] action...",
	Short: "Run Cedar Backup actions",
	Long: `cback runs the backup actions described by its configuration file.

The built-in actions are collect, stage, store, purge, rebuild, validate and
initialize. "all" runs collect, stage, store and purge in order. Actions added
in the extensions section run at the position given by their index or by
their dependencies.`,
	Example: "cback --full all\ncback --config /etc/cback.yaml collect stage",
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Determine if the command is a help command or if the help flag is set
		isHelpRequested := cmd.Name() == "help" || cmd.Flags().Changed("help")

		// Do not silence usage or errors when help is invoked
		cmd.SilenceUsage = !isHelpRequested
		cmd.SilenceErrors = !isHelpRequested
	},
	RunE: runActions,
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return RootCmd.Execute()
}

func runActions(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errUtils.WithExitCode(
			errUtils.WithHint(errUtils.ErrNoActions, "specify at least one action, for example 'cback all'"),
			errUtils.ExitUsage,
		)
	}

	closer, err := setupLogging(cmd)
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitLogging)
	}
	defer closer.Close()

	opts := runOptions(cmd)
	log.SetDefault(log.Default().With("run", opts.RunID))
	log.Info("Cedar Backup run started", "version", version.Version, "actions", strings.Join(args, " "))

	configPath, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(configPath, !isValidateOnly(args))
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitConfig)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	r := newCommandRunner(config, opts.Output)
	resolver := extend.NewResolver(r)
	set, err := action.NewSet(action.SetParams{
		Actions:    args,
		Config:     config,
		Local:      !opts.ManagedOnly,
		Managed:    opts.Managed || opts.ManagedOnly,
		BuiltIns:   e.BuiltInActions(r, e.BuiltInOptions{Extensions: resolver, Quiet: quiet}),
		Extensions: resolver,
		Runner:     r,
		NewPeer:    remotePeerFactory(r),
	})
	if err != nil {
		return errUtils.WithExitCode(err, selectionExitCode(err))
	}

	execute := func() error {
		return set.Execute(cmd.Context(), configPath, opts, config)
	}
	if !isValidateOnly(args) && config.Options != nil && config.Options.WorkingDir != "" {
		err = lock.New(config.Options.WorkingDir).WithLock(execute)
	} else {
		err = execute()
	}
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitExecution)
	}

	log.Info("Cedar Backup run completed")
	return nil
}

func runOptions(cmd *cobra.Command) *schema.RunOptions {
	full, _ := cmd.Flags().GetBool("full")
	managed, _ := cmd.Flags().GetBool("managed")
	managedOnly, _ := cmd.Flags().GetBool("managed-only")
	output, _ := cmd.Flags().GetBool("output")
	debug, _ := cmd.Flags().GetBool("debug")
	return &schema.RunOptions{
		Full:        full,
		Managed:     managed,
		ManagedOnly: managedOnly,
		Output:      output || debug,
		RunID:       uuid.NewString(),
	}
}

// isValidateOnly reports whether the run only checks the configuration, in
// which case problems are reported by the validate action itself.
func isValidateOnly(args []string) bool {
	return len(args) == 1 && args[0] == action.Validate
}

// selectionExitCode maps an action set build failure to a process exit code.
// Bad action names are command line errors; everything else comes from the
// configuration.
func selectionExitCode(err error) int {
	switch {
	case errors.Is(err, errUtils.ErrNoActions),
		errors.Is(err, errUtils.ErrInvalidAction),
		errors.Is(err, errUtils.ErrNonCombinableAction):
		return errUtils.ExitUsage
	default:
		return errUtils.ExitConfig
	}
}

func init() {
	RootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errUtils.WithExitCode(err, errUtils.ExitUsage)
	})

	RootCmd.PersistentFlags().StringP("config", "c", cfg.DefaultConfigPath, "Path to the cback configuration file")
	RootCmd.PersistentFlags().StringP("logfile", "l", log.DefaultLogFile, "Path to the log file")
	RootCmd.PersistentFlags().StringP("owner", "o", "", "Ownership of a newly created log file, as user:group")
	RootCmd.PersistentFlags().StringP("mode", "m", "", "Octal permissions of a newly created log file, for example 640")
	RootCmd.PersistentFlags().String("logs-level", "", "Logs level. Supported log levels are Trace, Debug, Info, Warning, Off. Overrides --verbose and --debug")
	RootCmd.PersistentFlags().BoolP("output", "O", false, "Log the output of external commands")
	RootCmd.PersistentFlags().BoolP("debug", "d", false, "Write debugging information to the log (implies --output)")
	RootCmd.PersistentFlags().BoolP("verbose", "b", false, "Print verbose output to the screen")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "Do not write anything to the screen")

	RootCmd.Flags().BoolP("full", "f", false, "Perform a full backup, regardless of configuration")
	RootCmd.Flags().BoolP("managed", "M", false, "Also run the actions on managed remote peers")
	RootCmd.Flags().BoolP("managed-only", "N", false, "Run the actions on managed remote peers only")
}
