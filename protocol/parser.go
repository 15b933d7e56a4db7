package protocol

import "bytes"

var (
	prefixPublish     = []byte("PUBLISH:")
	prefixSubscribe   = []byte("SUBSCRIBE:")
	prefixUnsubscribe = []byte("UNSUBSCRIBE:")
	prefixPing        = []byte("PING")
)

// ParseLine parses one command line, with the terminating LF already
// stripped by the caller. A trailing CR is tolerated and stripped here.
//
// ParseLine never returns a bare Go error: a malformed line is reported as
// an *ErrorRequest so the session can reply and keep the connection open,
// exactly as spec.md's protocol error taxonomy requires.
func ParseLine(line []byte) Request {
	line = trimTrailingCR(line)

	if len(line) == 0 {
		return &ErrorRequest{Code: EmptyMessage}
	}

	// UNSUBSCRIBE is checked ahead of SUBSCRIBE: both share the "SUB..."
	// substring and a naive Contains-based dispatch would misclassify one
	// as the other. bytes.HasPrefix on the full literal already
	// disambiguates them, but the ordering is kept defensive.
	switch {
	case bytes.HasPrefix(line, prefixPublish):
		return parsePublish(line)

	case bytes.HasPrefix(line, prefixUnsubscribe):
		return parseTopicCommand(line, prefixUnsubscribe, newUnsubscribe)

	case bytes.HasPrefix(line, prefixSubscribe):
		return parseTopicCommand(line, prefixSubscribe, newSubscribe)

	case bytes.HasPrefix(line, prefixPing):
		return &PingRequest{}

	default:
		return &ErrorRequest{Code: UnknownCommand}
	}
}

func parsePublish(line []byte) Request {
	rest := line[len(prefixPublish):]

	idx := bytes.IndexByte(rest, ':')
	if idx < 0 {
		return &ErrorRequest{Code: InvalidFormat}
	}

	topic := rest[:idx]
	if len(topic) == 0 {
		return &ErrorRequest{Code: InvalidFormat}
	}

	// Everything past the first colon, including further colons, belongs
	// to the payload verbatim.
	payload := rest[idx+1:]

	return &PublishRequest{Topic: topic, Payload: payload}
}

func newSubscribe(topic []byte) Request   { return &SubscribeRequest{Topic: topic} }
func newUnsubscribe(topic []byte) Request { return &UnsubscribeRequest{Topic: topic} }

func parseTopicCommand(line, prefix []byte, build func([]byte) Request) Request {
	topic := line[len(prefix):]
	if len(topic) == 0 {
		return &ErrorRequest{Code: EmptyTopic}
	}

	// A topic name may not itself contain the delimiter that separates a
	// command from its topic elsewhere in the protocol; PUBLISH avoids this
	// by construction (it splits at the first colon), but SUBSCRIBE and
	// UNSUBSCRIBE take the rest of the line verbatim and must check for it.
	if bytes.IndexByte(topic, ':') >= 0 {
		return &ErrorRequest{Code: InvalidFormat}
	}

	return build(topic)
}

func trimTrailingCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}

	return line
}
