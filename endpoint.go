package osc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

// PacketWriter is the part of a net.PacketConn an Endpoint sends through.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	Close() error
}

// Endpoint is a datagram socket bound to one resolved peer. It is reference
// counted: Connect and NewEndpoint return it with one reference, Retain adds
// one, and the Close that drops the last reference closes the socket.
//
// Sends may be made from multiple goroutines.
type Endpoint struct {
	host, port string
	conn       PacketWriter
	peer       net.Addr
	log        *slog.Logger
	metrics    *Metrics

	addrMu sync.RWMutex
	addrs  []registeredAddress

	refs      atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Endpoint.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	metrics  *Metrics
	resolver *net.Resolver
	// listen opens an unconnected socket for the given network, "udp4"
	// or "udp6".
	listen func(network string) (PacketWriter, error)
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records sends in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithResolver sets the resolver Connect uses, instead of
// net.DefaultResolver.
func WithResolver(r *net.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		resolver: net.DefaultResolver,
		listen: func(network string) (PacketWriter, error) {
			return net.ListenUDP(network, nil)
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect resolves host and port and opens a UDP socket to send to the
// result. port may be numeric or a service name. Addresses are tried in the
// order the resolver returns them, IPv4 or IPv6, and the first one a socket
// can be opened for becomes the peer.
//
// The returned error wraps ErrResolve if nothing could be resolved, or
// ErrSocket if no socket could be opened. Nothing is left open on failure.
func Connect(ctx context.Context, host, port string, opts ...Option) (*Endpoint, error) {
	c := newConfig(opts)
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrResolve)
	}
	ips, err := c.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %w", ErrResolve, host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: host %q: no addresses", ErrResolve, host)
	}
	p, err := c.resolver.LookupPort(ctx, "udp", port)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q: %w", ErrResolve, port, err)
	}

	for _, ip := range ips {
		ip = ip.Unmap()
		network := "udp6"
		if ip.Is4() {
			network = "udp4"
		}
		conn, err := c.listen(network)
		if err != nil {
			c.logger.Debug("cannot open socket for candidate", "host", host, "addr", ip, "network", network, "err", err)
			continue
		}
		peer := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(p)))
		e := newEndpoint(conn, peer, c)
		e.host, e.port = host, port
		c.logger.Info("osc endpoint connected", "host", host, "port", port, "peer", peer)
		return e, nil
	}
	return nil, fmt.Errorf("%w: none of %d addresses for %q usable", ErrSocket, len(ips), host)
}

// NewEndpoint returns an Endpoint that sends to peer through conn, taking
// ownership of conn.
func NewEndpoint(conn PacketWriter, peer net.Addr, opts ...Option) *Endpoint {
	return newEndpoint(conn, peer, newConfig(opts))
}

func newEndpoint(conn PacketWriter, peer net.Addr, c *config) *Endpoint {
	e := &Endpoint{
		conn:    conn,
		peer:    peer,
		log:     c.logger,
		metrics: c.metrics,
	}
	e.refs.Store(1)
	return e
}

// RemoteAddr returns the resolved peer.
func (e *Endpoint) RemoteAddr() net.Addr {
	if e == nil {
		return nil
	}
	return e.peer
}

// LocalAddr returns the address of the socket, if it has one.
func (e *Endpoint) LocalAddr() net.Addr {
	if e == nil {
		return nil
	}
	if la, ok := e.conn.(interface{ LocalAddr() net.Addr }); ok {
		return la.LocalAddr()
	}
	return nil
}

// Retain adds a reference and returns e. It returns nil if e has already been
// released.
func (e *Endpoint) Retain() *Endpoint {
	if e == nil {
		return nil
	}
	for {
		n := e.refs.Load()
		if n <= 0 {
			return nil
		}
		if e.refs.CompareAndSwap(n, n+1) {
			return e
		}
	}
}

// Close drops a reference. Dropping the last one closes the socket; further
// calls do nothing.
func (e *Endpoint) Close() error {
	if e == nil {
		return ErrNotAllocated
	}
	for {
		n := e.refs.Load()
		if n <= 0 {
			return nil
		}
		if e.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				return e.teardown()
			}
			return nil
		}
	}
}

func (e *Endpoint) teardown() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
		e.log.Debug("osc endpoint closed", "host", e.host, "port", e.port, "peer", e.peer, "err", e.closeErr)
	})
	return e.closeErr
}

func (e *Endpoint) usable() error {
	if e == nil || e.refs.Load() <= 0 {
		return ErrNotAllocated
	}
	return nil
}

// Send writes b to the peer as one datagram and returns the number of bytes
// written. A write that reports fewer bytes than requested is continued from
// where it stopped until all of b has gone or a write fails. There is no
// retry of failed writes, the error wraps ErrSend.
func (e *Endpoint) Send(b []byte) (int, error) {
	if err := e.usable(); err != nil {
		return 0, err
	}
	sent := 0
	for sent < len(b) {
		n, err := e.conn.WriteTo(b[sent:], e.peer)
		if n > 0 {
			sent += n
		}
		if err != nil {
			e.metrics.sendError()
			e.log.Warn("osc send failed", "peer", e.peer, "sent", sent, "len", len(b), "err", err)
			return sent, fmt.Errorf("%w: %w", ErrSend, err)
		}
		if n <= 0 {
			// Nothing went and nothing failed, stop rather than spin.
			e.metrics.sendError()
			return sent, fmt.Errorf("%w: %w", ErrSend, io.ErrShortWrite)
		}
		if sent < len(b) {
			e.metrics.shortWrite()
		}
	}
	e.metrics.sent(sent)
	return sent, nil
}
