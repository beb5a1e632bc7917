// Package main is the canvasd server entrypoint.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"collabcanvas/internal/config"
	"collabcanvas/internal/log"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "canvasd",
		Short:        "Serves a shared canvas that painters draw tiles onto.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         run,
	}
	cmd.Flags().StringP("config", "c", "", "path to a YAML config file")
	cmd.Flags().String("listen", "", "address to listen on (overrides config and CANVAS_LISTEN)")
	cmd.Flags().String("log-level", "", "trace, debug, info, warn or error")
	return cmd
}

// loadConfig layers flags over the config file and environment, then
// validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "load config failed")
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.SetLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg)
	if err != nil {
		return err
	}
	if err := d.run(ctx); err != nil {
		return err
	}
	logger.Info("canvas server stopped")
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
