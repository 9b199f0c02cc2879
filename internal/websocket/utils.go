package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// ReadWait is how long a peer may stay silent before it is dropped.
	// Browsers answer control pings on their own, so this only trips on
	// dead peers.
	ReadWait = 2 * time.Minute
	// PingInterval must stay below ReadWait.
	PingInterval = 30 * time.Second
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// WritePing sends a control ping frame.
func WritePing(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ExtendReadDeadline pushes the read deadline out by ReadWait.
func ExtendReadDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(ReadWait))
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	ExtendReadDeadline(conn)
	return conn.ReadJSON(v)
}
