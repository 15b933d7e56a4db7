package broker

import (
	"context"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/neuropipe/broker/internal/metrics"
	"github.com/neuropipe/broker/protocol"
	"github.com/neuropipe/broker/registry"
)

const readBufferSize = 4096

// Session is one connected client: a read loop that turns incoming bytes
// into commands, and a write loop that owns the socket's write side so every
// outbound frame - whether a command reply or a fanned-out MESSAGE - passes
// through a single writer. It implements registry.Subscriber so the Registry
// can hold it directly.
//
// A context-scoped pair of goroutines, synchronized with a WaitGroup, owns
// the connection: the read loop parses and dispatches, the write loop owns
// the socket's write side and drains the outbound queue. The queue is
// unbounded by default; a positive queueCap turns on a drop-on-full policy,
// since a Publish fanning out to many sessions cannot be allowed to block on
// any one of them.
type Session struct {
	id registry.SessionID

	ctx    context.Context
	cancel context.CancelFunc

	conn net.Conn
	reg  *registry.Registry

	loopWaiter sync.WaitGroup

	writeQueue *sessionQueue
	closeOnce  sync.Once

	onClose func(*Session)

	trace bool
	log   *zap.Logger
}

// NewSession wraps conn as a Session. onClose, if non-nil, is invoked exactly
// once after both loops have exited so the owning listener can drop it from
// its connection table. queueCap below 1 leaves the outbound queue
// unbounded; a positive queueCap bounds it and enables the slow-consumer
// drop policy.
func NewSession(
	parentCtx context.Context,
	conn net.Conn,
	reg *registry.Registry,
	queueCap int,
	trace bool,
	onClose func(*Session),
	log *zap.Logger,
) *Session {
	ctx, cancel := context.WithCancel(parentCtx)
	id := registry.NewSessionID()

	return &Session{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		reg:        reg,
		writeQueue: newSessionQueue(queueCap),
		onClose:    onClose,
		trace:      trace,
		log:        log.With(zap.Stringer("session", id), zap.Stringer("peer", conn.RemoteAddr())),
	}
}

// ID implements registry.Subscriber.
func (s *Session) ID() registry.SessionID { return s.id }

// Deliver implements registry.Subscriber. It never blocks: if the session's
// outbound queue is bounded and full, the session is dropped as a slow
// consumer instead of stalling the Publish call that is fanning out to
// every subscriber.
func (s *Session) Deliver(frame []byte) {
	if s.writeQueue.push(frame) {
		metrics.Default().MessagesDelivered.Inc()
		return
	}

	s.log.Warn("Session outbound queue full, dropping slow consumer")
	metrics.Default().SessionsDropped.Inc()
	s.Close()
}

// Start runs the read and write loops and blocks until both exit.
func (s *Session) Start() {
	s.loopWaiter.Add(2)

	go func() {
		defer s.loopWaiter.Done()
		s.readLoop()
	}()

	go func() {
		defer s.loopWaiter.Done()
		s.writeLoop()
	}()

	s.loopWaiter.Wait()

	s.reg.UnsubscribeAll(s)
	metrics.Default().ActiveTopics.Set(float64(s.reg.Stats().TopicCount))

	if s.onClose != nil {
		s.onClose(s)
	}
}

// Close cancels the session's context, unblocking both loops, and closes the
// underlying connection. It is safe to call more than once and from any
// goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.writeQueue.close()
		s.conn.Close()
	})
}

func (s *Session) readLoop() {
	log := s.log.Named("read")
	defer log.Debug("read loop exiting")

	buf := make([]byte, 0, readBufferSize)
	chunk := make([]byte, readBufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.Close()
			return
		default:
		}

		n, err := s.conn.Read(chunk)
		if err != nil {
			if !s.ctxDone() {
				log.Debug("connection read ended", zap.Error(err))
			}
			s.Close()
			return
		}

		buf = append(buf, chunk[:n]...)

		var lines [][]byte
		lines, buf = protocol.SplitLines(buf)

		for _, line := range lines {
			if s.trace {
				log.Debug("received line", zap.String("line", string(line)))
			}

			if !s.dispatch(line) {
				return
			}
		}
	}
}

// dispatch handles one parsed line, writing the appropriate reply. It
// returns false when the session should terminate, which happens only when
// a reply could not be queued (the session has then already been closed).
func (s *Session) dispatch(line []byte) bool {
	req := protocol.ParseLine(line)

	switch r := req.(type) {
	case *protocol.PublishRequest:
		metrics.Default().MessagesPublished.Inc()
		metrics.Default().PayloadBytes.Observe(float64(len(r.Payload)))
		s.reg.Publish(string(r.Topic), r.Payload)
		return s.reply(protocol.FormatPublished())

	case *protocol.SubscribeRequest:
		s.reg.Subscribe(string(r.Topic), s)
		metrics.Default().ActiveTopics.Set(float64(s.reg.Stats().TopicCount))
		return s.reply(protocol.FormatSubscribed(r.Topic))

	case *protocol.UnsubscribeRequest:
		s.reg.Unsubscribe(string(r.Topic), s)
		metrics.Default().ActiveTopics.Set(float64(s.reg.Stats().TopicCount))
		return s.reply(protocol.FormatUnsubscribed(r.Topic))

	case *protocol.PingRequest:
		return s.reply(protocol.FormatPong())

	case *protocol.ErrorRequest:
		metrics.Default().ProtocolErrors.Inc()
		return s.reply(protocol.FormatError(r.Code))

	default:
		return true
	}
}

// reply enqueues frame on this session's own write queue. It mirrors
// Deliver's non-blocking, drop-on-full behavior but does not count towards
// MessagesDelivered, which tracks fan-out only.
func (s *Session) reply(frame []byte) bool {
	if s.writeQueue.push(frame) {
		return true
	}

	s.log.Warn("Session outbound queue full while replying, dropping")
	s.Close()
	return false
}

func (s *Session) writeLoop() {
	log := s.log.Named("write")
	defer log.Debug("write loop exiting")

	for {
		frame, ok := s.writeQueue.pop()
		if !ok {
			return
		}

		if _, err := s.conn.Write(frame); err != nil {
			if !s.ctxDone() && !strings.Contains(err.Error(), "use of closed network connection") {
				log.Debug("write failed", zap.Error(err))
			}
			s.Close()
			return
		}
	}
}

func (s *Session) ctxDone() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}
