package goevtlib

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketSource reads a live raw stream over a WebSocket connection.
//
// Each binary message is the next consecutive chunk of the stream.
// It implements io.Reader and can be used as the source of a Reader.
// It is not safe for concurrent use.
type WebSocketSource struct {
	// URL of the stream, e.g. "ws://camera.local:9000/raw".
	URL string

	// timeout of the opening handshake.
	// It defaults to 10 seconds.
	HandshakeTimeout time.Duration

	sessionID uuid.UUID
	conn      *websocket.Conn
	leftover  []byte
}

// Initialize dials the stream.
func (s *WebSocketSource) Initialize() error {
	if s.URL == "" {
		return fmt.Errorf("URL is required")
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.HandshakeTimeout,
	}

	conn, res, err := dialer.Dial(s.URL, nil)
	if err != nil {
		return err
	}
	if res != nil && res.Body != nil {
		res.Body.Close()
	}

	s.sessionID = uuid.New()
	s.conn = conn

	return nil
}

// SessionID returns the identifier assigned to this connection.
func (s *WebSocketSource) SessionID() uuid.UUID {
	return s.sessionID
}

// Read implements io.Reader. Non-binary messages are skipped.
func (s *WebSocketSource) Read(p []byte) (int, error) {
	for len(s.leftover) == 0 {
		typ, byts, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return 0, io.EOF
			}
			return 0, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		s.leftover = byts
	}

	n := copy(p, s.leftover)
	s.leftover = s.leftover[n:]

	return n, nil
}

// Close closes the connection.
func (s *WebSocketSource) Close() error {
	return s.conn.Close()
}
