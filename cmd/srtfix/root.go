package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "srtfix",
		Short:         "Repair mis-encoded subtitle files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	persistent.StringVarP(&flags.mapping, "mapping", "m", "", "Mapping table CSV (overrides paths.mapping_file)")
	persistent.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	persistent.StringVar(&flags.logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(newRepairCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newMappingCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
