package main

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"collabcanvas/internal/config"
	"collabcanvas/internal/discovery"
	"collabcanvas/internal/httpapi"
	"collabcanvas/internal/hub"
	"collabcanvas/internal/journal"
	"collabcanvas/internal/log"
	"collabcanvas/internal/relay"
	"collabcanvas/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// daemon holds everything canvasd runs. newDaemon does all the setup that can
// fail; run only starts goroutines, and resources are released after every
// goroutine has returned.
type daemon struct {
	cfg      config.Config
	hub      *hub.Hub
	store    journal.Store
	recorder *journal.Recorder
	rdb      *redis.Client
	relay    *relay.Relay
	ln       net.Listener
	srv      *http.Server
}

func newDaemon(ctx context.Context, cfg config.Config) (*daemon, error) {
	d := &daemon{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			d.close()
		}
	}()
	var err error

	opts := []hub.Option{
		hub.WithPollInterval(cfg.PollInterval),
		hub.WithLogger(log.Component("hub")),
	}

	d.store, err = journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN, cfg.Journal.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal failed")
	}
	if d.store != nil {
		d.recorder = journal.NewRecorder(d.store, log.Component("journal"))
		opts = append(opts, hub.WithJournal(d.recorder))
	}

	if cfg.Redis.Addr != "" {
		d.rdb, err = relay.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		d.relay, err = relay.New(relay.NewRedisPublisher(d.rdb), cfg.Redis.Channel, log.Component("relay"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, hub.WithFrameSink(d.relay, cfg.Redis.Interval))
	}

	d.hub = hub.New(opts...)

	d.ln, err = net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s failed", cfg.Listen)
	}
	d.srv = &http.Server{
		Handler:           httpapi.NewRouter(d.hub, transport.NewServer(d.hub, log.Component("transport")), log.Component("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ready = true
	return d, nil
}

// Addr is the address the HTTP server listens on.
func (d *daemon) Addr() net.Addr {
	return d.ln.Addr()
}

func (d *daemon) run(ctx context.Context) error {
	defer d.close()
	g, ctx := errgroup.WithContext(ctx)
	d.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	if d.recorder != nil {
		g.Go(func() error { return d.recorder.Run(ctx) })
		logger.WithField("driver", d.cfg.Journal.Driver).Info("journal enabled")
	}
	if d.relay != nil {
		g.Go(func() error { return d.relay.Run(ctx) })
		logger.WithFields(logrus.Fields{"addr": d.cfg.Redis.Addr, "instance": d.relay.Instance()}).Info("frame relay enabled")
	}
	g.Go(func() error { return d.hub.Run(ctx) })
	g.Go(func() error { return d.hub.Poll(ctx) })
	g.Go(func() error {
		logger.WithField("addr", d.Addr().String()).Info("canvas server starting")
		if err := d.srv.Serve(d.ln); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http failed")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return d.srv.Shutdown(shutdownCtx)
	})

	if d.cfg.Discovery.Enabled {
		_, portStr, _ := net.SplitHostPort(d.Addr().String())
		port, _ := strconv.Atoi(portStr)
		ad, err := discovery.Advertise(d.cfg.Discovery.Instance, port, "/ws")
		if err != nil {
			logger.WithError(err).Warn("mDNS advertisement disabled")
		} else {
			defer ad.Shutdown()
			logger.WithFields(logrus.Fields{"service": discovery.Service, "port": port}).Info("mDNS service registered")
		}
	}

	return g.Wait()
}

// close releases what newDaemon opened. It must only run once nothing uses
// the store or the Redis client any more.
func (d *daemon) close() {
	if d.ln != nil {
		d.ln.Close()
	}
	if d.rdb != nil {
		if err := d.rdb.Close(); err != nil {
			logger.WithError(err).Warn("close redis client failed")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.WithError(err).Warn("close journal failed")
		}
	}
}
