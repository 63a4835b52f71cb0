package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// WSPeer adapts a gorilla websocket connection to the Peer interface.
// Writes are serialized; gorilla connections allow one writer at a time.
type WSPeer struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewWSPeer wraps a websocket connection.
func NewWSPeer(id string, conn *websocket.Conn) *WSPeer {
	return &WSPeer{id: id, conn: conn}
}

func (p *WSPeer) ID() string { return p.id }

// Send writes a signaling frame to the socket.
func (p *WSPeer) Send(msg SignalMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return websocket.ErrCloseSent
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(msg)
}

// Close shuts the socket down once.
func (p *WSPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// Read blocks for the next inbound frame.
func (p *WSPeer) Read() (SignalMessage, error) {
	var msg SignalMessage
	err := p.conn.ReadJSON(&msg)
	return msg, err
}
