/*
Package protocol defines the message model exchanged with the coordination server and its two wire encodings.

A Message is a numeric type code, a conversation id and a flat string map. The conversation id
correlates a reply with the request that caused it; zero means "outside a conversation".

# Encodings

  - JSONCodec: one JSON document per websocket message: {"type":1,"conversationId":7,"values":{...}}.
  - Framer: a binary frame over a raw stream socket: u16le type, u16le sequence, optional u16le
    conversation id, then comma separated key=value pairs and a terminating zero byte.

Sequence numbers only exist inside the binary framing; they never reach the Message model.
*/
package protocol
