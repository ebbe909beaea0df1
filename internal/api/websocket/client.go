package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Send channel buffer size
	sendBufferSize = 256

	// Upper bound for the serial round trip of a client command
	commandTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking for production
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

// clientCommand is the inbound command envelope sent by browser clients
type clientCommand struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Peripheral int    `json:"peripheral"`
	Command    int    `json:"command"`
	Data       []byte `json:"data"`
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientCommand
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.conn.RemoteAddr().String()))
			}
			break
		}

		if msg.Type == "command" {
			c.handleCommand(msg)
			continue
		}

		c.logger.Debug("Ignoring unknown client message",
			zap.String("remote_addr", c.conn.RemoteAddr().String()),
			zap.String("type", msg.Type))
	}
}

// handleCommand forwards a client command over the serial link and sends
// the decoded reply back to this client only
func (c *Client) handleCommand(msg clientCommand) {
	result := CommandResultData{
		RequestID:  msg.RequestID,
		Peripheral: msg.Peripheral,
		Command:    msg.Command,
	}

	sender := c.hub.sender
	if sender == nil {
		result.Error = "command interface not available"
		c.sendMessage(NewMessage(MessageTypeCommandError, result))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	record, err := sender.SendCommand(ctx,
		protocol.PeripheralID(msg.Peripheral),
		protocol.CommandCode(msg.Command),
		msg.Data)
	if err != nil {
		c.logger.Warn("WebSocket command failed",
			zap.Error(err),
			zap.Int("peripheral", msg.Peripheral),
			zap.Int("command", msg.Command))
		result.Error = err.Error()
		c.sendMessage(NewMessage(MessageTypeCommandError, result))
		return
	}

	result.Kind = record.TelemetryKind()
	result.Record = record
	c.sendMessage(NewMessage(MessageTypeCommandResult, result))
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal client message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow client, the hub will clean it up on the next broadcast
	}
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued messages into current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles WebSocket upgrade requests
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger, // <- Logger vom Hub übernehmen
	}

	client.hub.register <- client

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
