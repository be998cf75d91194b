package main

import (
	"github.com/hostward/device-agent/pkg/config"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	jsonLog    bool
}

func (o *globalOptions) mutators() []func(*config.Config) {
	var mutators []func(*config.Config)
	if o.logLevel != "" {
		mutators = append(mutators, config.SetLogLevel(o.logLevel))
	}
	if o.jsonLog {
		mutators = append(mutators, config.SetJSONLog(true))
	}
	return mutators
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "device-agent",
		Short:         "Device agent collects host inventory and ships it to the collector",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts, false)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath, "path to the TOML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.jsonLog, "json", false, "write console logs as JSON")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newInitCommand(opts),
		newCheckStatusCommand(opts),
		newRegisterCommand(opts),
		newUnregisterCommand(opts),
		newStatusCommand(opts),
		newFingerprintCommand(),
		newUnsealCommand(),
		newConfigCommand(opts),
	)
	return rootCmd
}
