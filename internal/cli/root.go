// Package cli implements the switchpoint command-line interface: config
// scaffolding, validation, and diagnostics against the configured databases.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/internal/config"
	"github.com/mesh-intelligence/switchpoint/internal/logging"
	"github.com/mesh-intelligence/switchpoint/internal/paths"
	"github.com/mesh-intelligence/switchpoint/internal/telemetry"
	"github.com/mesh-intelligence/switchpoint/pkg/switchpoint"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// sysError marks failures of the environment (databases, file system) as
// opposed to bad input.
type sysError struct{ err error }

func (e sysError) Error() string { return e.err.Error() }
func (e sysError) Unwrap() error { return e.err }

func systemError(err error) error {
	if err == nil {
		return nil
	}
	return sysError{err: err}
}

// app holds global flag values and state shared by the subcommands of one
// command tree.
type app struct {
	configFlag string
	logLevel   string
	console    bool
	jsonMode   bool

	logger   zerolog.Logger
	shutdown telemetry.Shutdown
}

// NewRootCmd creates the top-level "switchpoint" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "switchpoint",
		Short: "Route database access through readonly and writable switch points",
		Long: "switchpoint validates switch point configuration and inspects how\n" +
			"switch points route to their readonly and writable databases.",
		Version: switchpoint.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "config file (default: $"+paths.EnvConfig+", ./"+paths.ConfigFileName+", or the platform config dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.console, "log-console", false, "human-readable log output")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newRouteCmd(a))
	root.AddCommand(newPingCmd(a))
	root.AddCommand(newExecCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(os.Stderr, "switchpoint:", err)
	var sys sysError
	if errors.As(err, &sys) {
		return exitSysError
	}
	return exitUserError
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logging.Options{
		Writer:  cmd.ErrOrStderr(),
		Level:   a.logLevel,
		Console: a.console,
	})
	if err != nil {
		return err
	}
	a.logger = logger

	shutdown, err := telemetry.Init(cmd.Context(), "switchpoint", switchpoint.Version, cmd.ErrOrStderr())
	if err != nil {
		return systemError(err)
	}
	a.shutdown = shutdown
	return nil
}

// configPath resolves the configuration file from flag, env, or default.
func (a *app) configPath() (string, error) {
	path, err := paths.ResolveConfigFile(a.configFlag)
	if err != nil {
		return "", systemError(fmt.Errorf("resolve config file: %w", err))
	}
	return path, nil
}

func (a *app) loadConfig() (string, types.Config, error) {
	path, err := a.configPath()
	if err != nil {
		return "", types.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return path, types.Config{}, err
	}
	return path, cfg, nil
}

// openRepository loads the configuration and builds a repository on it. The
// caller must Close the repository.
func (a *app) openRepository() (*switchpoint.Repository, string, error) {
	path, cfg, err := a.loadConfig()
	if err != nil {
		return nil, path, err
	}
	repo, err := switchpoint.New(cfg, switchpoint.WithLogger(a.logger))
	if err != nil {
		return nil, path, err
	}
	return repo, path, nil
}
