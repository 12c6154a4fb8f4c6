package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cfg := newConfig()
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "numsel",
		Short:         "numsel: pick a free number and claim it under your name",
		Long:          "numsel keeps a fixed set of numbered slots in a shared store. Everyone watching sees claims as they land, and each number can be claimed by exactly one person.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadConfig(cfg, configPath); err != nil {
				return err
			}
			return validateConfig(cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.numsel/config.toml)")
	flags.String("backend", "", "Store backend: file, memory, redis or postgres")
	flags.String("store-path", "", "TOML file used by the file backend")
	flags.Int("total", 0, "How many numbers the store holds")
	flags.String("log-level", "", "Log level: trace, debug, info, warn or error")
	bindFlags(cfg, flags, map[string]string{
		keyStoreBackend: "backend",
		keyStorePath:    "store-path",
		keyTotalNumbers: "total",
		keyLogLevel:     "log-level",
	})

	open := newAppOpener(cfg)
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(open),
		newStatusCmd(open),
		newClaimCmd(open),
		newPickCmd(open),
		newWatchCmd(open),
		newServeCmd(open),
	)

	return rootCmd
}

func bindFlags(cfg *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = cfg.BindPFlag(key, flags.Lookup(name))
	}
}
