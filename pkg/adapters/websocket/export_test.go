package websocket

import "github.com/gorilla/websocket"

// WriteRaw sends an unencoded text frame.
func WriteRaw(c *Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
