package main

import (
	"github.com/spf13/cobra"

	"handheld_rfid_go/internal/config"
	"handheld_rfid_go/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	driver     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "handheld-rfid",
		Short:        "Handheld RFID reader session manager",
		Long:         "handheld-rfid connects to one RFID reader and a paired barcode scanner, runs tag inventory and shows what was read.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "handheld-rfid.yaml", "YAML config file (optional)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "KEY=VALUE file loaded before the environment is read")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.StringVar(&opts.driver, "driver", "", "override reader driver (sim, st8508)")

	tuiCmd := newTUICmd(opts)
	rootCmd.RunE = tuiCmd.RunE
	rootCmd.AddCommand(
		tuiCmd,
		newServeCmd(opts),
		newScanCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, err
	}
	return config.Load(o.configPath, func(c *config.Config) {
		if o.driver != "" {
			c.Driver = o.driver
		}
		if o.logLevel != "" {
			c.Log.Level = o.logLevel
		}
	})
}

// setupLogging sends logs to the configured file when the terminal is taken, stderr otherwise.
func setupLogging(cfg config.Config, toFile bool) (func(), error) {
	path := ""
	if toFile {
		path = cfg.Log.File
	}
	return logging.Setup(cfg.Log.Level, path)
}
