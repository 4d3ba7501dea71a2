package main

import (
	"github.com/spf13/cobra"

	"github.com/justyntemme/gopd/pkg/config"
	"github.com/justyntemme/gopd/pkg/debug"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	LogLevel string
	Config   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pdhost",
		Short: "Run Pure Data patches on the embedded engine",
		Long: `pdhost opens a patch in one or more engine instances, processes
audio blocks and prints the messages the patch sends back.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setLogLevel(opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error|off)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "host configuration file")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newMonitorCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func setLogLevel(level string) error {
	l, err := debug.NewLogger(level)
	if err != nil {
		return err
	}
	debug.SetLogger(l)
	return nil
}

// loadConfig reads --config, or the defaults, and applies a patch argument.
// The file's log level applies unless --log-level was given.
func loadConfig(cmd *cobra.Command, opts *rootOptions, args []string) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
		if !cmd.Flags().Changed("log-level") {
			if err := setLogLevel(cfg.LogLevel); err != nil {
				return nil, err
			}
		}
	}
	if len(args) > 0 {
		cfg.Patch = args[0]
	}
	return cfg, cfg.Validate()
}
