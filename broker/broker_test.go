package broker_test

import (
	"bufio"
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neuropipe/broker/broker"
	"github.com/neuropipe/broker/client"
	"github.com/neuropipe/broker/registry"
)

var _ = Describe("Broker", func() {
	It("listens on the configured port", func() {
		b := makeBroker(6790)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		conn, err := net.Dial("tcp", "127.0.0.1:6790")
		Expect(err).To(Succeed())
		conn.Close()
	})

	It("acknowledges PING with PONG", func() {
		b := makeBroker(6791)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		c := dialClient("127.0.0.1:6791")
		defer c.Close()

		Expect(c.Ping(context.Background())).To(Succeed())
	})

	It("acknowledges PUBLISH with OK:PUBLISHED", func() {
		b := makeBroker(6792)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		c := dialClient("127.0.0.1:6792")
		defer c.Close()

		Expect(c.Publish(context.Background(), "news", []byte("hello"))).To(Succeed())
	})

	It("delivers a MESSAGE update to a subscriber of the published topic", func() {
		b := makeBroker(6793)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		sub := dialClient("127.0.0.1:6793")
		defer sub.Close()

		Expect(sub.Subscribe(context.Background(), "news")).To(Succeed())

		pub := dialClient("127.0.0.1:6793")
		defer pub.Close()

		Expect(pub.Publish(context.Background(), "news", []byte("hello"))).To(Succeed())

		var update *client.Update
		Eventually(sub.Updates(), time.Second).Should(Receive(&update))
		Expect(update.Topic).To(Equal("news"))
		Expect(update.Payload).To(Equal([]byte("hello")))
	})

	It("reports an ERROR for a malformed line and keeps the connection open", func() {
		b := makeBroker(6794)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		conn, err := net.Dial("tcp", "127.0.0.1:6794")
		Expect(err).To(Succeed())
		defer conn.Close()

		_, err = conn.Write([]byte("NONSENSE\n"))
		Expect(err).To(Succeed())
		Expect(readLine(conn)).To(Equal([]byte("ERROR:UNKNOWN_COMMAND")))

		_, err = conn.Write([]byte("PING\n"))
		Expect(err).To(Succeed())
		Expect(readLine(conn)).To(Equal([]byte("PONG")))
	})

	It("removes a session and its subscriptions after it disconnects", func() {
		b := makeBroker(6795)
		defer func() { Expect(b.Close()).To(Succeed()) }()

		sub := dialClient("127.0.0.1:6795")
		Expect(sub.Subscribe(context.Background(), "news")).To(Succeed())
		sub.Close()

		Eventually(func() int {
			return b.SessionCount()
		}, time.Second, 10*time.Millisecond).Should(Equal(0))

		Expect(b.Registry().Stats().TopicCount).To(Equal(0))
	})
})

func makeBroker(port int) *broker.Broker {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	b := broker.New(broker.Options{
		Host:         "127.0.0.1",
		Port:         port,
		NumListeners: 1,
		Reuseport:    true,
		Registry:     registry.New(),
		Log:          log,
	})

	b.Start(context.Background())

	// Give the accept loop time to bind before the test dials it.
	time.Sleep(50 * time.Millisecond)

	return b
}

func dialClient(addr string) *client.Conn {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	c := client.New(log)
	Expect(c.Connect(context.Background(), addr)).To(Succeed())

	return c
}

func readLine(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	return line[:len(line)-1], nil
}
