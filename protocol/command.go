package protocol

// Command names the client instruction a request line encodes.
type Command string

const (
	Publish     Command = "PUBLISH"
	Subscribe   Command = "SUBSCRIBE"
	Unsubscribe Command = "UNSUBSCRIBE"
	Ping        Command = "PING"
)

// ErrorCode names a protocol-level rejection of a client's command line.
// A protocol error never closes the connection it was received on.
type ErrorCode string

const (
	EmptyMessage   ErrorCode = "EMPTY_MESSAGE"
	InvalidFormat  ErrorCode = "INVALID_FORMAT"
	EmptyTopic     ErrorCode = "EMPTY_TOPIC"
	UnknownCommand ErrorCode = "UNKNOWN_COMMAND"
)
