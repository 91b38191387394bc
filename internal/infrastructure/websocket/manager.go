package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one connection. A user with several devices has several
// clients; each session's events go to its own client's send channel.
// Inbound frames are routed to OnMessage; OnClose fires once when the
// read pump exits.
type Client struct {
	UserID    string
	Conn      *websocket.Conn
	Send      chan []byte
	OnMessage func(message []byte)
	OnClose   func()

	sendMu     sync.Mutex
	sendClosed bool
}

// Enqueue puts a frame on the client's send channel. Frames to a client
// whose buffer is full are dropped rather than blocking the caller, and
// frames after the channel closed are discarded.
func (c *Client) Enqueue(message []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}

	select {
	case c.Send <- message:
	default:
		log.Printf("Dropping frame for user %s: send buffer full", c.UserID)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.Send)
}

// Manager tracks all active connections. Keyed by the client itself, not
// the uid: a second device must not displace the first.
type Manager struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's registration loop until the context ends.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client] = true
				m.mutex.Unlock()
				log.Printf("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				delete(m.clients, client)
				m.mutex.Unlock()
				client.closeSend()
				log.Printf("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// ReadPump reads frames from the connection and hands them to the
// client's handler until the connection dies.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		if c.OnClose != nil {
			c.OnClose()
		}
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Websocket read error for %s: %v", c.UserID, err)
			}
			break
		}

		if c.OnMessage != nil {
			c.OnMessage(message)
		}
	}
}

// WritePump drains the send channel onto the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Websocket write error for %s: %v", c.UserID, err)
			return
		}
	}
}
