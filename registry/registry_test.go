package registry_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/neuropipe/broker/registry"
)

// fakeSubscriber records every frame delivered to it, standing in for a
// broker/Session in these unit tests.
type fakeSubscriber struct {
	id registry.SessionID

	mu     sync.Mutex
	frames [][]byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{id: registry.NewSessionID()}
}

func (f *fakeSubscriber) ID() registry.SessionID { return f.id }

func (f *fakeSubscriber) Deliver(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), frame...))
}

func (f *fakeSubscriber) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

var _ = Describe("Registry", func() {
	var reg *registry.Registry

	BeforeEach(func() {
		reg = registry.New()
	})

	It("does not create a topic entry for a publish with no subscribers", func() {
		reg.Publish("x", []byte("hello"))

		stats := reg.Stats()
		Expect(stats.TopicCount).To(Equal(0))
	})

	It("delivers a publish to a subscriber that joined before it", func() {
		a := newFakeSubscriber()
		reg.Subscribe("ch", a)

		reg.Publish("ch", []byte("hi"))

		Expect(a.Frames()).To(Equal([][]byte{[]byte("MESSAGE:ch:hi\n")}))
	})

	It("fans a single publish out to every subscriber of the topic", func() {
		a := newFakeSubscriber()
		b := newFakeSubscriber()
		reg.Subscribe("bc", a)
		reg.Subscribe("bc", b)

		reg.Publish("bc", []byte("ping"))

		Expect(a.Frames()).To(Equal([][]byte{[]byte("MESSAGE:bc:ping\n")}))
		Expect(b.Frames()).To(Equal([][]byte{[]byte("MESSAGE:bc:ping\n")}))
	})

	It("is idempotent when the same session subscribes twice", func() {
		a := newFakeSubscriber()
		reg.Subscribe("ch", a)
		reg.Subscribe("ch", a)

		reg.Publish("ch", []byte("once"))

		Expect(a.Frames()).To(HaveLen(1))
	})

	It("stops delivering after unsubscribe", func() {
		a := newFakeSubscriber()
		reg.Subscribe("t", a)
		reg.Publish("t", []byte("first"))

		reg.Unsubscribe("t", a)
		reg.Publish("t", []byte("second"))

		Expect(a.Frames()).To(Equal([][]byte{[]byte("MESSAGE:t:first\n")}))
	})

	It("removes an emptied topic entry", func() {
		a := newFakeSubscriber()
		reg.Subscribe("t", a)
		reg.Unsubscribe("t", a)

		Expect(reg.Stats().TopicCount).To(Equal(0))
	})

	It("removes a session from every topic on UnsubscribeAll", func() {
		a := newFakeSubscriber()
		reg.Subscribe("t1", a)
		reg.Subscribe("t2", a)

		reg.UnsubscribeAll(a)

		Expect(reg.Stats().TopicCount).To(Equal(0))

		reg.Publish("t1", []byte("x"))
		reg.Publish("t2", []byte("y"))
		Expect(a.Frames()).To(BeEmpty())
	})

	It("preserves publish order for a single subscriber of one topic", func() {
		a := newFakeSubscriber()
		reg.Subscribe("t", a)

		reg.Publish("t", []byte("1"))
		reg.Publish("t", []byte("2"))
		reg.Publish("t", []byte("3"))

		Expect(a.Frames()).To(Equal([][]byte{
			[]byte("MESSAGE:t:1\n"),
			[]byte("MESSAGE:t:2\n"),
			[]byte("MESSAGE:t:3\n"),
		}))
	})

	It("assigns strictly increasing sequence numbers across topics", func() {
		m1 := reg.Publish("a", []byte("1"))
		m2 := reg.Publish("b", []byte("2"))
		m3 := reg.Publish("a", []byte("3"))

		Expect(m1.Sequence).To(BeNumerically("<", m2.Sequence))
		Expect(m2.Sequence).To(BeNumerically("<", m3.Sequence))
	})

	It("is a no-op to unsubscribe from an absent topic or session", func() {
		a := newFakeSubscriber()
		Expect(func() { reg.Unsubscribe("nope", a) }).NotTo(Panic())

		reg.Subscribe("ch", newFakeSubscriber())
		Expect(func() { reg.Unsubscribe("ch", a) }).NotTo(Panic())
		Expect(reg.Stats().SubscribersByTopic).To(Equal(map[string]int{"ch": 1}))
	})
})
