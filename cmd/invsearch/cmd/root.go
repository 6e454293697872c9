// Package cmd provides the CLI commands for invsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/invsearch/internal/config"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/logging"
	"github.com/Aman-CERP/invsearch/internal/output"
	"github.com/Aman-CERP/invsearch/internal/profiling"
	"github.com/Aman-CERP/invsearch/pkg/version"
)

// globalOptions holds the persistent flags and the resources they start.
type globalOptions struct {
	configPath string
	format     string
	debug      bool
	profile    profiling.Options

	session        *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the invsearch CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globalOptions{})
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invsearch",
		Short: "Inventory search and custom-ID service",
		Long: `invsearch indexes inventories and their items into a full-text search
index and serves ranked search, suggestions and custom item ID generation
over HTTP.

Run 'invsearch serve' to start the API, or use the subcommands to query
and maintain the index from the shell.`,
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  opts.start,
		PersistentPostRunE: opts.stop,
	}

	cmd.SetVersionTemplate("invsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ./invsearch.yaml if present)")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.invsearch/logs/")

	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(
		newServeCmd(opts),
		newReindexCmd(opts),
		newCheckCmd(opts),
		newSearchCmd(opts),
		newCustomIDCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command and prints a failure for the user.
func Execute() error {
	opts := &globalOptions{}
	root := newRootCmd(opts)
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), apperr.FormatForUser(err, opts.debug))
	}
	return err
}

// start sets up logging and profiling before any command runs.
func (o *globalOptions) start(_ *cobra.Command, _ []string) error {
	logCfg := logging.CLIConfig()
	if o.debug {
		logCfg = logging.DebugConfig()
	}
	if err := o.setupLogging(logCfg); err != nil {
		return err
	}
	if o.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Short()))
	}

	if o.profile.Enabled() {
		s, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.session = s
	}
	return nil
}

// stop flushes profiles and closes the log file.
func (o *globalOptions) stop(_ *cobra.Command, _ []string) error {
	var err error
	if o.session != nil {
		err = o.session.Stop()
		o.session = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

// setupLogging replaces the default logger, closing the previous one.
func (o *globalOptions) setupLogging(cfg logging.Config) error {
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads --config, or the defaults merged with the user and
// working-directory config files.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(wd)
}

// projectConfigPath is the file a running server reloads on change.
func (o *globalOptions) projectConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return config.FindProjectConfig(wd)
}

// writer returns an output writer honoring --format.
func (o *globalOptions) writer(cmd *cobra.Command) (*output.Writer, error) {
	f, err := output.ParseFormat(o.format)
	if err != nil {
		return nil, apperr.ValidationError(err.Error(), nil)
	}
	return output.NewWithFormat(cmd.OutOrStdout(), f), nil
}
