package broker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/zap"

	"github.com/neuropipe/broker/internal/metrics"
	"github.com/neuropipe/broker/registry"
)

// listener owns one accept loop bound to addr. Several listeners can share
// the same address when reuseport is enabled, spreading incoming
// connections across them via the kernel's SO_REUSEPORT load balancing.
type listener struct {
	ctx       context.Context
	addr      string
	reuseport bool
	queueCap  int
	trace     bool

	reg *registry.Registry
	log *zap.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func newListener(ctx context.Context, addr string, reuseport bool, queueCap int, trace bool, reg *registry.Registry, log *zap.Logger) *listener {
	return &listener{
		ctx:       ctx,
		addr:      addr,
		reuseport: reuseport,
		queueCap:  queueCap,
		trace:     trace,
		reg:       reg,
		log:       log,
		sessions:  make(map[*Session]struct{}),
	}
}

func (l *listener) listen() error {
	ln, err := l.bind()
	if err != nil {
		return err
	}
	defer ln.Close()

	var sessionWaiter sync.WaitGroup

	go func() {
		<-l.ctx.Done()

		l.log.Debug("Closing listener")
		if err := ln.Close(); err != nil {
			l.log.Warn("Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.ctxDone() || errors.Is(err, net.ErrClosed) {
				sessionWaiter.Wait()
				return nil
			}

			l.log.Error("Accept failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		session := NewSession(l.ctx, conn, l.reg, l.queueCap, l.trace, l.removeSession, l.log.Named("session"))
		l.addSession(session)

		metrics.Default().ActiveSessions.Inc()
		metrics.Default().SessionsOpened.Inc()

		sessionWaiter.Add(1)
		go func() {
			defer sessionWaiter.Done()
			session.Start()
		}()
	}
}

func (l *listener) bind() (net.Listener, error) {
	if l.reuseport {
		return reuseport.Listen("tcp", l.addr)
	}

	return net.Listen("tcp", l.addr)
}

// close disconnects every session currently owned by this listener. Used for
// an immediate, non-graceful shutdown.
func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for session := range l.sessions {
		session.Close()
	}
}

func (l *listener) addSession(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[s] = struct{}{}
}

func (l *listener) removeSession(s *Session) {
	l.mu.Lock()
	delete(l.sessions, s)
	l.mu.Unlock()

	metrics.Default().ActiveSessions.Dec()
	metrics.Default().SessionsClosed.Inc()
}

func (l *listener) sessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *listener) ctxDone() bool {
	select {
	case <-l.ctx.Done():
		return true
	default:
		return false
	}
}
