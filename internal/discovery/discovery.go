// Package discovery advertises the canvas server on the local network and
// lets painters find it.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
)

const (
	// Service is the mDNS service type.
	Service = "_collabcanvas._tcp"
	domain  = "local."
	pathKey = "path="
)

// ErrNotFound is returned by Browse when no server answered in time.
var ErrNotFound = errors.New("no canvas server found")

// Advertisement is a registered mDNS service. Shutdown withdraws it.
type Advertisement interface {
	Shutdown()
}

// Advertise registers the server under instance, defaulting to one derived
// from the hostname.
func Advertise(instance string, port int, path string) (Advertisement, error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("CollabCanvas-%s", host)
	}
	server, err := zeroconf.Register(instance, Service, domain, port, []string{pathKey + path}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "register mDNS service failed")
	}
	return server, nil
}

// Browse returns the WebSocket URL of the first server that answers before
// ctx is done.
func Browse(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", errors.Wrap(err, "initialize mDNS resolver failed")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, domain, entries); err != nil {
		return "", errors.Wrap(err, "browse mDNS services failed")
	}
	for {
		select {
		case <-ctx.Done():
			return "", ErrNotFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if u, ok := URL(entry); ok {
				return u, nil
			}
		}
	}
}

// URL builds the WebSocket address advertised by entry.
func URL(entry *zeroconf.ServiceEntry) (string, bool) {
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return "", false
	}
	path := "/ws"
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, pathKey) {
			path = strings.TrimPrefix(txt, pathKey)
		}
	}
	return "ws://" + net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)) + path, true
}
