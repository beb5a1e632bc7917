// Package main is an example painter: it finds a canvas server, claims a
// tile and keeps it filled with a slowly rotating colour.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"collabcanvas/internal/discovery"
	"collabcanvas/internal/log"
	"collabcanvas/internal/painter"
)

var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	url       string
	discover  bool
	browseFor time.Duration
	name      string
	site      string
	logLevel  string

	rootCmd = &cobra.Command{
		Use:          "painter",
		Short:        "Paints a tile on a canvas server.",
		SilenceUsage: true,
		RunE:         run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	log.SetLogger(logLevel)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := url
	if discover {
		browseCtx, cancel := context.WithTimeout(ctx, browseFor)
		found, err := discovery.Browse(browseCtx)
		cancel()
		if err != nil {
			return errors.Wrap(err, "discover canvas server failed")
		}
		logger.WithField("url", found).Info("mDNS discovered canvas server")
		target = found
	}
	if target == "" {
		return errors.New("either --url or --discover is required")
	}
	return painter.New(name, site, log.Component("painter")).Run(ctx, target)
}

func init() {
	host, _ := os.Hostname()
	rootCmd.Flags().StringVar(&url, "url", "", "canvas server WebSocket URL, e.g. ws://localhost:8080/ws")
	rootCmd.Flags().BoolVar(&discover, "discover", false, "find the server with mDNS instead of --url")
	rootCmd.Flags().DurationVar(&browseFor, "browse-timeout", 15*time.Second, "how long to browse for a server")
	rootCmd.Flags().StringVar(&name, "name", host, "name announced to the server")
	rootCmd.Flags().StringVar(&site, "site", "", "URL announced to the server")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
