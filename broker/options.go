package broker

import (
	"go.uber.org/zap"

	"github.com/neuropipe/broker/registry"
)

// Options configures a Broker.
type Options struct {
	// Host to listen on.
	Host string

	// Port to listen on.
	Port int

	// NumListeners is the number of parallel TCP listeners sharing the same
	// address via SO_REUSEPORT. A value below 1 defaults to runtime.NumCPU().
	NumListeners int

	// Reuseport controls whether listeners bind with SO_REUSEPORT. When
	// false, only a single listener is started regardless of NumListeners,
	// since stacking plain binds on one address would fail.
	Reuseport bool

	// Trace dumps every parsed request to the log at debug level. Only
	// useful in local debugging.
	Trace bool

	// SessionQueueCap bounds each session's outbound frame queue. A value
	// below 1 leaves the queue unbounded, the protocol's baseline. A
	// positive value is an opt-in operational knob: once a subscriber's
	// queue reaches it, the subscriber is disconnected rather than letting
	// Publish block on a slow reader.
	SessionQueueCap int

	Registry *registry.Registry

	Log *zap.Logger
}
