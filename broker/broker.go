// Package broker implements the TCP acceptor and per-connection session
// state machine: the part of the system that turns bytes on a socket into
// calls against the Topic Registry and back again.
//
// A Broker owns one or more listeners, each running its own accept loop
// (optionally sharing a port via SO_REUSEPORT); each accepted connection
// becomes a Session running its own read and write loops. Session dispatches
// PUBLISH/SUBSCRIBE/UNSUBSCRIBE/PING against a Registry. Its outbound queue
// is unbounded by default; when a positive queue cap is configured, a
// Publish fanning out to many sessions drops a slow subscriber whose queue
// is full instead of blocking on it.
package broker

import (
	"context"
	"net"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/neuropipe/broker/registry"
)

// Broker runs one or more listeners bound to the same address and owns their
// lifetime.
type Broker struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	reuseport    bool
	queueCap     int
	trace        bool

	mu        sync.Mutex
	listeners []*listener

	reg *registry.Registry
	log *zap.Logger
}

// New builds a Broker from Options. It does not start listening; call Start.
func New(opts Options) *Broker {
	numListeners := opts.NumListeners
	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}
	if !opts.Reuseport {
		numListeners = 1
	}

	return &Broker{
		addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		numListeners: numListeners,
		reuseport:    opts.Reuseport,
		queueCap:     opts.SessionQueueCap,
		trace:        opts.Trace,
		reg:          opts.Registry,
		log:          opts.Log,
	}
}

// Start launches every listener in its own goroutine. It returns once they
// have all been scheduled, not once they are accepting connections; listen
// errors are logged rather than returned, since one failed listener among
// several reuseport listeners is not by itself fatal.
func (b *Broker) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	b.cancel = cancel

	b.log.Info("Starting broker listeners", zap.String("addr", b.addr), zap.Int("count", b.numListeners))

	for i := 0; i < b.numListeners; i++ {
		b.startListener(ctx, i)
	}
}

func (b *Broker) startListener(ctx context.Context, index int) {
	l := newListener(ctx, b.addr, b.reuseport, b.queueCap, b.trace, b.reg, b.log.Named("listener").With(zap.Int("listener", index)))

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	b.stopWaiter.Add(1)
	go func() {
		defer b.stopWaiter.Done()

		if err := l.listen(); err != nil {
			b.log.Error("Listener stopped with error", zap.Int("listener", index), zap.Error(err))
		}
	}()
}

// Close cancels every listener's context, forces their active sessions
// closed, and waits for all accept loops to return.
func (b *Broker) Close() error {
	b.log.Info("Stopping broker")

	if b.cancel != nil {
		b.cancel()
	}

	b.mu.Lock()
	listeners := append([]*listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.close()
	}

	b.stopWaiter.Wait()
	b.log.Info("Broker stopped")

	return nil
}

// SessionCount sums the active session count across every listener, for the
// admin HTTP surface.
func (b *Broker) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, l := range b.listeners {
		total += l.sessionCount()
	}
	return total
}

// Registry exposes the broker's Topic Registry, primarily so the admin HTTP
// surface can read Stats() without threading a second reference through the
// command layer.
func (b *Broker) Registry() *registry.Registry {
	return b.reg
}
