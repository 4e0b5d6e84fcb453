package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Framer encodes messages with the binary stream framing.
//
// The conversation field is optional on the wire and its presence is fixed per direction,
// so ReadConversation and WriteConversation describe the two halves of one connection.
type Framer struct {
	ReadConversation  bool
	WriteConversation bool

	mu  sync.Mutex
	seq uint16
}

// NewClientFramer returns the robot side framing: inbound frames carry a conversation id,
// outbound frames do not.
func NewClientFramer() *Framer {
	return &Framer{ReadConversation: true}
}

// NewServerFramer returns the mirror of NewClientFramer.
func NewServerFramer() *Framer {
	return &Framer{WriteConversation: true}
}

// Encode builds a complete frame including the terminator.
func (f *Framer) Encode(m Message) ([]byte, error) {
	if m.Type < 0 || m.Type > 0xFFFF {
		return nil, fmt.Errorf("message type %d does not fit the frame header", m.Type)
	}

	f.mu.Lock()
	seq := f.seq
	f.seq++
	f.mu.Unlock()

	header := 4
	if f.WriteConversation {
		header = 6
	}
	payload := encodeValues(m.Values)

	buf := make([]byte, header, header+len(payload)+1)
	binary.LittleEndian.PutUint16(buf[0:], uint16(m.Type))
	binary.LittleEndian.PutUint16(buf[2:], seq)
	if f.WriteConversation {
		binary.LittleEndian.PutUint16(buf[4:], uint16(m.ConversationID))
	}
	buf = append(buf, payload...)
	buf = append(buf, 0)
	return buf, nil
}

// Write encodes m and writes it to w.
func (f *Framer) Write(w io.Writer, m Message) error {
	frame, err := f.Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Read blocks until one full frame has been read from r.
// A stream that ends cleanly between frames returns io.EOF.
func (f *Framer) Read(r *bufio.Reader) (Message, error) {
	header := 4
	if f.ReadConversation {
		header = 6
	}

	head := make([]byte, header)
	if _, err := io.ReadFull(r, head); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
		}
		return Message{}, err
	}

	data, err := r.ReadBytes(0)
	if err != nil {
		if err == io.EOF {
			return Message{}, io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	m := Message{
		Type:   Type(binary.LittleEndian.Uint16(head[0:])),
		Values: DecodeValues(string(data[:len(data)-1])),
	}
	if f.ReadConversation {
		m.ConversationID = int64(binary.LittleEndian.Uint16(head[4:]))
	}
	return m, nil
}

// DecodeValues parses a "k=v,k=v" payload. Entries are trimmed, empty entries dropped,
// and an entry without '=' maps to an empty value.
func DecodeValues(payload string) map[string]string {
	values := map[string]string{}
	for _, entry := range strings.Split(payload, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !found {
			values[entry] = ""
			continue
		}
		values[key] = value
	}
	return values
}

func encodeValues(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + values[k]
	}
	return strings.Join(parts, ",")
}
