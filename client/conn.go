// Package client is a reference implementation of the wire protocol from
// the consuming side, used by the broker's own tests and suitable for
// embedding in other Go programs that want to talk to it without
// reimplementing the line protocol themselves.
//
// It is a persistent connection with a background read loop and a
// channel-based correlation scheme. This protocol has no request IDs and is
// strictly one-reply-per-request, so correlation collapses to a single
// pending-reply channel guarded by a write mutex that only allows one
// in-flight request at a time. MESSAGE frames, which arrive unprompted, are
// routed to a separate Updates channel instead.
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Update is a single MESSAGE frame delivered asynchronously because this
// connection is subscribed to its topic.
type Update struct {
	Topic   string
	Payload []byte
}

// Conn is a client-side connection to a broker.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn net.Conn

	updates chan *Update

	// writeMu serializes requests: since the wire carries no request IDs,
	// only one request may be outstanding at a time.
	writeMu sync.Mutex
	replyCh chan []byte

	log *zap.Logger
}

// New returns an unconnected Conn. Call Connect before issuing commands.
func New(log *zap.Logger) *Conn {
	return &Conn{
		updates: make(chan *Update, 255),
		replyCh: make(chan []byte, 1),
		log:     log,
	}
}

// Connect dials addr and starts the background read loop. ctx governs the
// lifetime of that loop; canceling it (or calling Close) terminates the
// connection.
func (c *Conn) Connect(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		cancel()
		return err
	}

	c.ctx = ctx
	c.cancel = cancel
	c.conn = conn

	go c.readLoop()

	return nil
}

// Close terminates the connection and its read loop.
func (c *Conn) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.conn.Close()
}

// Updates returns the channel on which MESSAGE frames for subscribed topics
// arrive.
func (c *Conn) Updates() <-chan *Update {
	return c.updates
}

// Publish sends a PUBLISH command and waits for its acknowledgment.
func (c *Conn) Publish(ctx context.Context, topic string, payload []byte) error {
	line := fmt.Sprintf("PUBLISH:%s:%s\n", topic, payload)
	return c.roundTrip(ctx, []byte(line), "OK:PUBLISHED")
}

// Subscribe sends a SUBSCRIBE command and waits for its acknowledgment.
func (c *Conn) Subscribe(ctx context.Context, topic string) error {
	line := fmt.Sprintf("SUBSCRIBE:%s\n", topic)
	return c.roundTrip(ctx, []byte(line), "OK:SUBSCRIBED:"+topic)
}

// Unsubscribe sends an UNSUBSCRIBE command and waits for its acknowledgment.
func (c *Conn) Unsubscribe(ctx context.Context, topic string) error {
	line := fmt.Sprintf("UNSUBSCRIBE:%s\n", topic)
	return c.roundTrip(ctx, []byte(line), "OK:UNSUBSCRIBED:"+topic)
}

// Ping sends a PING and waits for PONG.
func (c *Conn) Ping(ctx context.Context) error {
	return c.roundTrip(ctx, []byte("PING\n"), "PONG")
}

func (c *Conn) roundTrip(ctx context.Context, line []byte, want string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(line); err != nil {
		return err
	}

	select {
	case reply, ok := <-c.replyCh:
		if !ok {
			return fmt.Errorf("connection closed before reply")
		}

		if string(reply) != want {
			return fmt.Errorf("unexpected reply: %s", reply)
		}

		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")
	r := bufio.NewReader(c.conn)

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			log.Debug("read loop exiting", zap.Error(err))
			close(c.updates)
			close(c.replyCh)
			return
		}

		line = line[:len(line)-1]

		if bytes.HasPrefix(line, []byte("MESSAGE:")) {
			c.dispatchUpdate(line)
			continue
		}

		select {
		case c.replyCh <- line:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) dispatchUpdate(line []byte) {
	rest := line[len("MESSAGE:"):]

	idx := bytes.IndexByte(rest, ':')
	if idx < 0 {
		c.log.Warn("malformed MESSAGE frame", zap.ByteString("line", line))
		return
	}

	update := &Update{
		Topic:   string(rest[:idx]),
		Payload: append([]byte(nil), rest[idx+1:]...),
	}

	select {
	case c.updates <- update:
	case <-c.ctx.Done():
	}
}
