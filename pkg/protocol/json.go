package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONCodec encodes messages as single JSON documents.
type JSONCodec struct{}

// Encode marshals a message.
func (JSONCodec) Encode(m Message) ([]byte, error) {
	if m.Values == nil {
		m.Values = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Type, err)
	}
	return data, nil
}

type wireMessage struct {
	Type           *json.Number               `json:"type"`
	ConversationID *json.Number               `json:"conversationId"`
	Values         map[string]json.RawMessage `json:"values"`
}

// Decode unmarshals a message. Non-string values are kept as their JSON text
// and a missing or null conversation id decodes as zero.
func (JSONCodec) Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var wire wireMessage
	if err := dec.Decode(&wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if wire.Type == nil {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	code, err := strconv.Atoi(wire.Type.String())
	if err != nil {
		return Message{}, fmt.Errorf("%w: bad type %q", ErrMalformedMessage, wire.Type.String())
	}

	m := Message{Type: Type(code), Values: make(map[string]string, len(wire.Values))}
	if wire.ConversationID != nil {
		id, err := strconv.ParseInt(wire.ConversationID.String(), 10, 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: bad conversation id %q", ErrMalformedMessage, wire.ConversationID.String())
		}
		m.ConversationID = id
	}

	for k, raw := range wire.Values {
		m.Values[k] = stringify(raw)
	}
	return m, nil
}

func stringify(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
