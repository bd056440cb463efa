// package dispatch coalesces outbound OSC values and sends them in periodic
// bundles, so a value that changes faster than the flush interval costs at
// most one message per interval.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/constraints"

	osc "github.com/pfcm/oscsend"
	"github.com/pfcm/oscsend/internal/clock"
)

// ErrInterval is returned when activating the timer with a non-positive
// interval.
var ErrInterval = errors.New("dispatch: flush interval must be positive")

// Dispatcher owns an Endpoint and a Cache, and flushes the cache to the
// endpoint on a timer once activated. It is reference counted like the
// Endpoint: the Close that drops the last reference stops the timer and
// releases the endpoint.
//
// All methods are safe for concurrent use. The timer callback runs on its
// own goroutine and takes the same lock as SetValue and Flush.
type Dispatcher struct {
	ep      *osc.Endpoint
	clock   clock.Clock
	log     *slog.Logger
	metrics *osc.Metrics
	onFlush func(b osc.Bundle, n int, err error)

	// mu guards cache and is held across a flush's send, so bundles leave
	// in the order their values were taken.
	mu    sync.Mutex
	cache *Cache

	timerMu  sync.Mutex
	timer    *clock.Timer
	interval time.Duration
	// gen changes whenever the timer is stopped or restarted. A tick from
	// an older generation does nothing and does not re-arm.
	gen uint64

	refs      atomic.Int32
	closeOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*config)

type config struct {
	policy       Policy
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *osc.Metrics
	interval     time.Duration
	onFlush      func(osc.Bundle, int, error)
	endpointOpts []osc.Option
}

// WithPolicy sets the cache write policy. The default is Replace.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithInterval activates the flush timer at construction.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithClock sets the clock that drives the flush timer.
func WithClock(cl clock.Clock) Option {
	return func(c *config) { c.clock = cl }
}

// WithLogger sets the logger, for the dispatcher and for an endpoint made by
// Create.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records flushes in m, and sends too for an endpoint made by
// Create.
func WithMetrics(m *osc.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithOnFlush sets a function called after every timer-driven flush that
// had something to send, with the bundle and the send's result. It runs
// without any dispatcher lock held.
func WithOnFlush(f func(b osc.Bundle, n int, err error)) Option {
	return func(c *config) { c.onFlush = f }
}

// WithEndpointOptions passes options through to osc.Connect in Create.
func WithEndpointOptions(opts ...osc.Option) Option {
	return func(c *config) { c.endpointOpts = append(c.endpointOpts, opts...) }
}

func newConfig(opts []Option) *config {
	c := &config{
		policy: Replace,
		clock:  clock.Real(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Create connects to host and port and returns a Dispatcher sending there.
// If WithInterval is given the flush timer is already running.
func Create(ctx context.Context, host, port string, opts ...Option) (*Dispatcher, error) {
	c := newConfig(opts)
	epOpts := append([]osc.Option{osc.WithLogger(c.logger), osc.WithMetrics(c.metrics)}, c.endpointOpts...)
	ep, err := osc.Connect(ctx, host, port, epOpts...)
	if err != nil {
		return nil, err
	}
	// The dispatcher holds its own reference.
	defer ep.Close()
	return newDispatcher(ep, c)
}

// New returns a Dispatcher sending to ep. It takes its own reference to ep,
// the caller keeps theirs.
func New(ep *osc.Endpoint, opts ...Option) (*Dispatcher, error) {
	return newDispatcher(ep, newConfig(opts))
}

func newDispatcher(ep *osc.Endpoint, c *config) (*Dispatcher, error) {
	ep = ep.Retain()
	if ep == nil {
		return nil, osc.ErrNotAllocated
	}
	d := &Dispatcher{
		ep:      ep,
		clock:   c.clock,
		log:     c.logger,
		metrics: c.metrics,
		onFlush: c.onFlush,
		cache:   NewCache(c.policy),
	}
	d.refs.Store(1)
	if c.interval != 0 {
		if err := d.Activate(c.interval); err != nil {
			ep.Close()
			return nil, err
		}
	}
	return d, nil
}

// Endpoint returns the endpoint the dispatcher sends to.
func (d *Dispatcher) Endpoint() *osc.Endpoint {
	if d == nil {
		return nil
	}
	return d.ep
}

func (d *Dispatcher) usable() error {
	if d == nil || d.refs.Load() <= 0 {
		return osc.ErrNotAllocated
	}
	return nil
}

// SetValue stores v for addr, to be sent by a later flush. It fails without
// storing anything if a message to addr carrying v could not be encoded.
func (d *Dispatcher) SetValue(addr string, v osc.Argument) error {
	if err := d.usable(); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: nil value for %q", osc.ErrUnsupportedType, addr)
	}
	var scratch [osc.MaxMessageSize]byte
	if _, err := osc.NewMessage(addr, v).Append(scratch[:0]); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Set(addr, v)
	return nil
}

// SetNumberAsFloat32 stores n for addr as a Float32, whatever its numeric
// type, so a float channel never holds a mix of encodings.
func SetNumberAsFloat32[T constraints.Integer | constraints.Float](d *Dispatcher, addr string, n T) error {
	return d.SetValue(addr, osc.AsFloat32(n))
}

// Pending returns how many values are waiting to be flushed for addr.
func (d *Dispatcher) Pending(addr string) int {
	if d.usable() != nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Pending(addr)
}

// Addresses returns every address ever set, in the order first set.
func (d *Dispatcher) Addresses() []string {
	if d.usable() != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Addresses()
}

// Flush takes the oldest pending value of every address and sends them all
// in one bundle. With nothing pending it sends nothing and returns 0, nil.
func (d *Dispatcher) Flush() (int, error) {
	_, n, err := d.flush()
	return n, err
}

func (d *Dispatcher) flush() (osc.Bundle, int, error) {
	if err := d.usable(); err != nil {
		return osc.Bundle{}, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.cache.Take()
	if len(b.Messages) == 0 {
		return b, 0, nil
	}
	n, err := d.ep.SendBundle(b)
	if err != nil {
		return b, n, fmt.Errorf("flushing %d values: %w", len(b.Messages), err)
	}
	d.metrics.Flushed(len(b.Messages))
	return b, n, nil
}

// Activate starts flushing every interval. If the timer is already running
// it is stopped first, there is never more than one.
func (d *Dispatcher) Activate(interval time.Duration) error {
	if err := d.usable(); err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInterval, interval)
	}
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	d.stopLocked()
	d.interval = interval
	d.scheduleLocked(d.gen)
	d.log.Debug("osc flush timer activated", "interval", interval, "peer", d.ep.RemoteAddr())
	return nil
}

// Deactivate stops the flush timer. It may be called at any time, including
// from a WithOnFlush function, and any number of times.
func (d *Dispatcher) Deactivate() {
	if d == nil {
		return
	}
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if d.timer != nil {
		d.log.Debug("osc flush timer deactivated", "peer", d.ep.RemoteAddr())
	}
	d.stopLocked()
}

// Active reports whether the flush timer is running.
func (d *Dispatcher) Active() bool {
	if d == nil {
		return false
	}
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	return d.timer != nil
}

func (d *Dispatcher) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Dispatcher) scheduleLocked(gen uint64) {
	d.timer = d.clock.AfterFunc(d.interval, func() { d.tick(gen) })
}

// tick is the timer callback: flush, report, and re-arm unless the timer
// was stopped or restarted in the meantime.
func (d *Dispatcher) tick(gen uint64) {
	d.timerMu.Lock()
	stale := gen != d.gen
	d.timerMu.Unlock()
	if stale {
		return
	}

	b, n, err := d.flush()
	if errors.Is(err, osc.ErrNotAllocated) {
		// Closed between the generation check and the flush.
		return
	}
	if err != nil {
		d.log.Warn("osc flush failed", "peer", d.ep.RemoteAddr(), "values", len(b.Messages), "err", err)
	}
	if d.onFlush != nil && len(b.Messages) > 0 {
		d.onFlush(b, n, err)
	}

	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if gen != d.gen || d.usable() != nil {
		return
	}
	d.scheduleLocked(gen)
}

// Retain adds a reference and returns d. It returns nil if d has already
// been released.
func (d *Dispatcher) Retain() *Dispatcher {
	if d == nil {
		return nil
	}
	for {
		n := d.refs.Load()
		if n <= 0 {
			return nil
		}
		if d.refs.CompareAndSwap(n, n+1) {
			return d
		}
	}
}

// Close drops a reference. Dropping the last one stops the timer and
// releases the endpoint; pending values are discarded.
func (d *Dispatcher) Close() error {
	if d == nil {
		return osc.ErrNotAllocated
	}
	for {
		n := d.refs.Load()
		if n <= 0 {
			return nil
		}
		if d.refs.CompareAndSwap(n, n-1) {
			if n > 1 {
				return nil
			}
			var err error
			d.closeOnce.Do(func() {
				d.Deactivate()
				err = d.ep.Close()
			})
			return err
		}
	}
}
