package protocol

import (
	"bytes"
)

var (
	// PrefixOK starts every successful command acknowledgment.
	PrefixOK = []byte("OK:")
	// PrefixMessage starts every delivery frame pushed to a subscriber.
	PrefixMessage = []byte("MESSAGE:")
	// PrefixError starts every protocol error reply.
	PrefixError = []byte("ERROR:")

	linePublished     = []byte("OK:PUBLISHED\n")
	linePong          = []byte("PONG\n")
	lineSep           = []byte(":")
	newline           = []byte("\n")
	subscribedPrefix  = []byte("OK:SUBSCRIBED:")
	unsubscribePrefix = []byte("OK:UNSUBSCRIBED:")
)

// FormatPublished builds the acknowledgment frame for a successful PUBLISH.
func FormatPublished() []byte {
	return linePublished
}

// FormatSubscribed builds the acknowledgment frame for a successful
// SUBSCRIBE to topic.
func FormatSubscribed(topic []byte) []byte {
	return joinLine(subscribedPrefix, topic)
}

// FormatUnsubscribed builds the acknowledgment frame for a successful
// UNSUBSCRIBE from topic.
func FormatUnsubscribed(topic []byte) []byte {
	return joinLine(unsubscribePrefix, topic)
}

// FormatPong builds the reply frame for PING.
func FormatPong() []byte {
	return linePong
}

// FormatMessage builds a delivery frame carrying payload published to topic.
// The broker does not interpret payload; it is copied verbatim.
func FormatMessage(topic, payload []byte) []byte {
	line := make([]byte, 0, len(PrefixMessage)+len(topic)+1+len(payload)+1)
	line = append(line, PrefixMessage...)
	line = append(line, topic...)
	line = append(line, lineSep...)
	line = append(line, payload...)
	line = append(line, newline...)
	return line
}

// FormatError builds the ERROR:<CODE> frame for a protocol error.
func FormatError(code ErrorCode) []byte {
	line := make([]byte, 0, len(PrefixError)+len(code)+1)
	line = append(line, PrefixError...)
	line = append(line, code...)
	line = append(line, newline...)
	return line
}

func joinLine(prefix, topic []byte) []byte {
	line := make([]byte, 0, len(prefix)+len(topic)+1)
	line = append(line, prefix...)
	line = append(line, topic...)
	line = append(line, newline...)
	return line
}

// SplitLines splits buf on LF, returning each complete line (without its
// trailing LF) and the unconsumed remainder that follows the last LF, if
// any. It never allocates when there are no complete lines to return.
func SplitLines(buf []byte) (lines [][]byte, remainder []byte) {
	remainder = buf

	for {
		idx := bytes.IndexByte(remainder, '\n')
		if idx < 0 {
			return lines, remainder
		}

		lines = append(lines, remainder[:idx])
		remainder = remainder[idx+1:]
	}
}
