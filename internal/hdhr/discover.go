// SPDX-License-Identifier: MIT

package hdhr

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
)

const (
	defaultRounds = 2
	defaultWindow = 250 * time.Millisecond
	maxPacketSize = 8096
)

// Discoverer broadcasts discovery probes and collects replies.
type Discoverer struct {
	// Port is the UDP port probes are sent to. Zero means DiscoverUDPPort.
	Port int
	// Rounds is the number of send/collect rounds. Zero means 2.
	Rounds int
	// Window is the collection time per round. Zero means 250ms.
	Window time.Duration
	// Interfaces enumerates the sockets to probe on. Nil means BroadcastInterfaces.
	Interfaces func() ([]Interface, error)

	Logger zerolog.Logger
}

// NewDiscoverer returns a Discoverer with protocol defaults.
func NewDiscoverer() *Discoverer {
	return &Discoverer{Logger: log.WithComponent("discovery")}
}

// Result holds the deduplicated devices of one discovery cycle, in the order
// their first reply arrived.
type Result struct {
	StorageServers []*Device
	Tuners         []*Device
}

type probeSocket struct {
	iface Interface
	conn  *net.UDPConn
}

// Discover probes every broadcast-capable interface. A failure on one
// interface never aborts the others; no replies is not an error. An error is
// returned only when the interfaces cannot be enumerated or ctx is done.
func (d *Discoverer) Discover(ctx context.Context) (Result, error) {
	logger := log.WithContext(ctx, d.Logger)

	list := d.Interfaces
	if list == nil {
		list = BroadcastInterfaces
	}
	ifaces, err := list()
	if err != nil {
		return Result{}, err
	}

	sockets := d.open(ifaces, logger)
	defer func() {
		for _, s := range sockets {
			_ = s.conn.Close()
		}
	}()

	c := newCollector()
	packet := EncodeDiscoverRequest(DeviceTypeWildcard, DeviceIDWildcard)
	rounds := d.Rounds
	if rounds <= 0 {
		rounds = defaultRounds
	}
	window := d.Window
	if window <= 0 {
		window = defaultWindow
	}
	port := d.Port
	if port == 0 {
		port = DiscoverUDPPort
	}

	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			return c.result(), err
		}
		for _, s := range sockets {
			dst := &net.UDPAddr{IP: s.iface.Broadcast, Port: port}
			if _, err := s.conn.WriteToUDP(packet, dst); err != nil {
				metrics.IncDiscoveryInterfaceError("send")
				logger.Warn().Err(err).
					Str(log.FieldEvent, "discovery.send_failed").
					Str(log.FieldInterface, s.iface.Name).
					Str(log.FieldAddr, dst.String()).
					Msg("discovery probe not sent")
			}
		}
		d.collect(ctx, sockets, time.Now().Add(window), c, logger)
	}

	metrics.IncDiscoveryCycle()
	return c.result(), nil
}

func (d *Discoverer) open(ifaces []Interface, logger zerolog.Logger) []probeSocket {
	sockets := make([]probeSocket, 0, len(ifaces))
	for _, iface := range ifaces {
		// Go enables SO_BROADCAST on datagram sockets by default.
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: iface.IP})
		if err != nil {
			metrics.IncDiscoveryInterfaceError("bind")
			logger.Warn().Err(err).
				Str(log.FieldEvent, "discovery.bind_failed").
				Str(log.FieldInterface, iface.Name).
				Str(log.FieldAddr, iface.IP.String()).
				Msg("cannot probe interface")
			continue
		}
		sockets = append(sockets, probeSocket{iface: iface, conn: conn})
	}
	return sockets
}

// collect reads replies on every socket until deadline, one goroutine per
// socket. Each goroutine ends on its read deadline, so the group always
// finishes within the window.
func (d *Discoverer) collect(ctx context.Context, sockets []probeSocket, deadline time.Time, c *collector, logger zerolog.Logger) {
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	var g errgroup.Group
	for _, s := range sockets {
		g.Go(func() error {
			if err := s.conn.SetReadDeadline(deadline); err != nil {
				return nil
			}
			buf := make([]byte, maxPacketSize)
			for {
				n, addr, err := s.conn.ReadFromUDP(buf)
				if err != nil {
					var ne net.Error
					if !errors.As(err, &ne) || !ne.Timeout() {
						metrics.IncDiscoveryInterfaceError("recv")
						logger.Debug().Err(err).
							Str(log.FieldInterface, s.iface.Name).
							Msg("discovery receive ended")
					}
					return nil
				}
				c.add(buf[:n], addr, logger)
			}
		})
	}
	_ = g.Wait()
}

type collector struct {
	mu      sync.Mutex
	storage []*Device
	tuners  []*Device
	seen    map[string]struct{}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(packet []byte, addr *net.UDPAddr, logger zerolog.Logger) {
	reply, err := DecodeReply(packet)
	if err != nil {
		metrics.IncDiscoveryReply("malformed")
		logger.Debug().Err(err).Str(log.FieldAddr, addr.String()).Msg("discarding discovery reply")
		return
	}
	dev := classify(reply, addr.IP.String())
	if dev == nil {
		metrics.IncDiscoveryReply("ignored")
		return
	}
	metrics.IncDiscoveryReply(dev.Kind.String())

	key := dev.Kind.String() + "|" + dev.Identity()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	if dev.Kind == KindStorage {
		c.storage = append(c.storage, dev)
	} else {
		c.tuners = append(c.tuners, dev)
	}
}

func (c *collector) result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{
		StorageServers: append([]*Device(nil), c.storage...),
		Tuners:         append([]*Device(nil), c.tuners...),
	}
}
