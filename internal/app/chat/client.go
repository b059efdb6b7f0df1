/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines the Client struct, representing an active WebSocket connection. It manages the client's
lifecycle and message communication loops (ReadPump and WritePump), and implements Conn for the core.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the outbound queue.
	sendBuffer = 256
)

var (
	errClientClosed  = errors.New("client connection closed")
	errSendQueueFull = errors.New("client send queue full")
)

// Client struct represents an active WebSocket connection and its associated identity.
type Client struct {
	// the chat core the client reports to.
	manager *Manager

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity verified at handshake.
	user model.User

	// a buffered channel used to queue frames waiting to be sent to the client. It is never
	// closed; done signals the end of the connection instead.
	send chan []byte

	// closed once by Close.
	done      chan struct{}
	closeOnce sync.Once

	// close frame written by WritePump after done is closed.
	closeFrame []byte

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(manager *Manager, wsConn *websocket.Conn, user model.User) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "client").
		Str("user_id", user.ID).
		Logger()

	return &Client{
		manager: manager,
		conn:    wsConn,
		user:    user,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  clientLogger,
	}
}

// Deliver queues an event frame without blocking.
func (c *Client) Deliver(event EventType, payload any) error {
	frame, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(event)).Msg("Error marshaling frame for client")
		return err
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return errSendQueueFull
	}
}

// Close asks WritePump to send a close frame with code and stop. Later calls are no-ops.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		if code == CloseSessionReplaced {
			c.logger.Warn().Int("close_code", code).Str("reason", reason).Msg("Closing connection.")
		}
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		close(c.done)
	})
}

// ReadPump reads frames until the connection fails, dispatching each to the router. On exit
// the client is unregistered before the socket is closed, so nothing is routed to it afterwards.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(ctx, frame)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.manager.Presence.Unregister(c.user, c)
	c.Close(websocket.CloseNormalClosure, "")
}

// processInboundMessage handles one raw frame. A panic while handling it is logged and the
// connection keeps reading.
func (c *Client) processInboundMessage(ctx context.Context, frame []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error().Interface("panic", rec).Msg("Recovered from panic while handling inbound message")
			c.SendError(errs.NewError(errs.ErrUnknown))
		}
	}()

	var inbound inboundEnvelope
	if err := json.Unmarshal(frame, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch inbound.Type {
	case EventPrivateMessage:
		var payload PrivateMessagePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid private message payload")
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		if _, err := c.manager.Router.RouteDirect(ctx, c.user, payload.RecipientID, payload.Content); err != nil {
			c.SendError(err)
		}

	case EventGroupMessage:
		var payload GroupMessagePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid group message payload")
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		if _, err := c.manager.Router.RouteGroup(ctx, c.user, payload.GroupID, payload.Content); err != nil {
			c.SendError(err)
		}

	default:
		c.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}
}

// WritePump writes queued frames and heartbeats to the WebSocket until the client is closed
// or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, c.closeFrame)
			return
		}
	}
}

// write sends one frame under the write deadline. Returns false if the WritePump loop should terminate.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}

// SendError reports err to this client only as an error event.
func (c *Client) SendError(err error) {
	customErr := errs.From(err)

	payload := ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}

	if deliverErr := c.Deliver(EventError, payload); deliverErr != nil {
		c.logger.Error().Err(fmt.Errorf("queue error event: %w", deliverErr)).Int("code", payload.Code).Msg("Failed to queue error message")
	}
}
