// Package main is a headless canvas viewer: it follows a canvas server and
// keeps a PNG of the composite up to date.
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

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/discovery"
	"collabcanvas/internal/log"
	"collabcanvas/internal/viewer"
)

var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	url       string
	discover  bool
	browseFor time.Duration
	out       string
	scale     int
	interval  time.Duration
	logLevel  string

	rootCmd = &cobra.Command{
		Use:          "viewer",
		Short:        "Follows a canvas server and writes the composite to a PNG file.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	log.SetLogger(logLevel)
	if scale < 1 || scale > canvas.MaxScale {
		return errors.Errorf("--scale must be between 1 and %d", canvas.MaxScale)
	}
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

	v := viewer.New(viewer.PNGFile(out, scale),
		viewer.WithInterval(interval),
		viewer.WithLogger(log.Component("viewer")),
	)
	return v.Run(ctx, target)
}

func init() {
	rootCmd.Flags().StringVar(&url, "url", "", "canvas server WebSocket URL, e.g. ws://localhost:8080/ws")
	rootCmd.Flags().BoolVar(&discover, "discover", false, "find the server with mDNS instead of --url")
	rootCmd.Flags().DurationVar(&browseFor, "browse-timeout", 15*time.Second, "how long to browse for a server")
	rootCmd.Flags().StringVarP(&out, "out", "o", "canvas.png", "PNG file kept up to date with the composite")
	rootCmd.Flags().IntVar(&scale, "scale", 4, "upscaling factor for the PNG")
	rootCmd.Flags().DurationVar(&interval, "interval", viewer.DefaultInterval, "how often to ask for pixels")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
