package protocol

// Request is the parsed form of one command line sent by a client.
type Request interface {
	GetCommand() Command
}

// PublishRequest asks the broker to fan out payload to every current
// subscriber of topic.
type PublishRequest struct {
	Topic   []byte
	Payload []byte
}

func (r *PublishRequest) GetCommand() Command { return Publish }

// SubscribeRequest registers the connection to receive future publishes to
// topic.
type SubscribeRequest struct {
	Topic []byte
}

func (r *SubscribeRequest) GetCommand() Command { return Subscribe }

// UnsubscribeRequest removes the connection from topic's subscriber set.
type UnsubscribeRequest struct {
	Topic []byte
}

func (r *UnsubscribeRequest) GetCommand() Command { return Unsubscribe }

// PingRequest asks the broker to reply PONG. Any text following PING on the
// same line is ignored.
type PingRequest struct{}

func (r *PingRequest) GetCommand() Command { return Ping }

// ErrorRequest represents a line that failed to parse as any recognized
// command. It is still a Request so the read loop can reply and move on
// without treating the connection as terminal.
type ErrorRequest struct {
	Code ErrorCode
}

func (r *ErrorRequest) GetCommand() Command { return "" }

var (
	_ Request = (*PublishRequest)(nil)
	_ Request = (*SubscribeRequest)(nil)
	_ Request = (*UnsubscribeRequest)(nil)
	_ Request = (*PingRequest)(nil)
	_ Request = (*ErrorRequest)(nil)
)
