package main

import (
	"github.com/gwlsn/thingiverse-auth/internal/config"
	"github.com/gwlsn/thingiverse-auth/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "thingiverse-auth",
		Short:         "Thingiverse authentication strategy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newProfileCmd(opts))
	return cmd
}

// load reads the config and re-initializes logging from it.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("loaded config", "config", cfg.String())
	return cfg, nil
}
