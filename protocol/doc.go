// Package protocol implements the parsing and serialising of the line-based
// wire protocol NeuroPipe uses to talk to its clients.
//
// The protocol aims to be
//
// - easy to implement
// - efficient to parse
// - human readable
//
// - `Command`  - a client instruction to the broker
// - `Request`  - the parsed form of one command line from a client
// - `Response` - one outbound line the broker writes back to a client
//
// === General syntax
//
// - lines are `\n` delimited; a trailing `\r` is tolerated and stripped
// - command names are case sensitive and are always uppercase
// - a command line carries no length prefix and no request identifier: for a
//   single connection, replies are emitted in the same order the commands
//   that produced them arrived
//
// === PUBLISH
//
//	> PUBLISH:<topic>:<payload>\n
//	< OK:PUBLISHED\n
//
// The topic is the text between the `PUBLISH:` prefix and the next colon.
// Everything after that colon, including further colons, is the payload
// verbatim; the broker never decodes it.
//
// === SUBSCRIBE / UNSUBSCRIBE
//
//	> SUBSCRIBE:<topic>\n
//	< OK:SUBSCRIBED:<topic>\n
//
//	> UNSUBSCRIBE:<topic>\n
//	< OK:UNSUBSCRIBED:<topic>\n
//
// === PING
//
//	> PING\n
//	< PONG\n
//
// === Deliveries
//
// Whenever a topic a connection is subscribed to receives a publish, the
// broker pushes a delivery line at any time, interleaved with command
// replies only at line boundaries:
//
//	< MESSAGE:<topic>:<payload>\n
//
// === Errors
//
//	< ERROR:<CODE>\n
//
// where CODE is one of EMPTY_MESSAGE, INVALID_FORMAT, EMPTY_TOPIC,
// UNKNOWN_COMMAND. A protocol error never closes the connection.
package protocol
