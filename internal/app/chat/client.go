/*
Package chat contains the core logic of the direct-messaging subsystem.

This file defines the Client struct, the WebSocket binding of a Session. It
manages the connection lifecycle (ReadPump, WritePump, event pump), decodes
inbound SEND/SELECT commands, and streams live events and acknowledgements
back to the user.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time the server waits for a Pong from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxFrameSize = 8192

	// timeout for store operations triggered by inbound frames.
	commandTimeout = 10 * time.Second

	// WsCloseCodeSessionReplaced is a custom WebSocket Close Code (4000-4999
	// range) signaling that a newer connection took over this user's feed.
	WsCloseCodeSessionReplaced = 4001
)

// outboundFrame is one wire write queued for the WritePump: the WebSocket
// message type plus its payload bytes.
type outboundFrame struct {
	messageType int
	data        []byte
}

// outbox is the closable queue of outbound frames feeding the WritePump.
// Closing it is what terminates the WritePump; enqueueing after close is a
// safe no-op, so the pumps never race a close against a send.
type outbox struct {
	mu     sync.Mutex
	ch     chan outboundFrame
	closed bool
}

func newOutbox(size int) *outbox {
	return &outbox{ch: make(chan outboundFrame, size)}
}

// enqueue queues one frame without blocking. It reports false when the outbox
// is closed or full; the frame is dropped in both cases.
func (o *outbox) enqueue(f outboundFrame) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	select {
	case o.ch <- f:
		return true
	default:
		return false
	}
}

// frames returns the channel the WritePump drains. The channel is closed when
// the outbox closes.
func (o *outbox) frames() <-chan outboundFrame {
	return o.ch
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// Client represents one active WebSocket connection bound to a Session.
type Client struct {
	conn    *websocket.Conn
	session *Session
	hub     *Hub

	// out queues outbound frames for the WritePump.
	out *outbox

	logger zerolog.Logger
}

// NewClient binds a WebSocket connection to a loaded session.
func NewClient(conn *websocket.Conn, session *Session, hub *Hub) *Client {
	return &Client{
		conn:    conn,
		session: session,
		hub:     hub,
		out:     newOutbox(256),
		logger: logx.Logger().With().
			Str("component", "Client").
			Str("user_id", session.User().ID).
			Logger(),
	}
}

// SendInit pushes the INIT_DATA frame carrying the freshly loaded
// conversation list. loadErr, when non-nil, additionally surfaces the
// degraded-load notice so the user knows the list may be incomplete.
func (c *Client) SendInit(loadErr error) {
	payload := InitPayload{
		CurrentUser:   c.session.User(),
		Conversations: c.session.Conversations(),
	}
	c.writeFrame(FrameInit, payload, "")

	if loadErr != nil {
		if errors.Is(loadErr, ErrPermissionDenied) {
			c.sendError(errs.NewError(errs.ErrPermissionDenied), "")
			return
		}
		c.sendError(errs.NewError(errs.ErrConversationsUnavailable), "")
	}
}

// ReadPump reads frames from the connection until it closes, dispatching
// SEND and SELECT commands. It owns connection cleanup.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.processInboundFrame(frameBytes)
	}
}

// cleanupOnDisconnect tears down the session subscription, the outbox, and
// the connection when the ReadPump terminates. Closing the outbox is what
// makes the WritePump exit promptly instead of idling until the next ping.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.session.Close()
	c.out.close()

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one raw frame and dispatches it.
func (c *Client) processInboundFrame(frameBytes []byte) {
	var frame Frame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON frame")
		return
	}

	switch frame.Type {
	case FrameSend:
		c.handleSend(frame.Payload, frame.TempID)

	case FrameSelect:
		c.handleSelect(frame.Payload)

	default:
		c.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Client sent unsupported frame type")
	}
}

// handleSend runs the send path for the open conversation and publishes the
// persisted message to the receiver's feed. The confirmation carries the
// authoritative message so the sender's view comes from the optimistic
// append, never from the feed.
func (c *Client) handleSend(payloadBytes json.RawMessage, tempID string) {
	var payload SendPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid SEND payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	msg, err := c.session.Send(ctx, payload.Text)
	if err != nil {
		c.sendError(sendErrorFor(err), tempID)
		return
	}

	c.hub.Publish(msg)

	c.writeFrame(FrameConfirm, ConfirmPayload{
		TempID:  tempID,
		Message: msg,
	}, "")
}

// handleSelect switches the open conversation.
func (c *Client) handleSelect(payloadBytes json.RawMessage) {
	var payload SelectPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid SELECT payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	conversation, err := c.session.SelectByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, ErrCounterpartyNotFound) {
			c.sendError(errs.NewError(errs.ErrUserNotFound), "")
			return
		}
		c.sendError(errs.NewError(errs.ErrUnknown), "")
		return
	}

	c.writeFrame(FrameSelected, conversation, "")
}

// sendErrorFor maps send-path errors onto client-facing error codes.
func sendErrorFor(err error) *errs.CustomError {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return errs.NewError(errs.ErrMessageEmpty)
	case errors.Is(err, ErrTextTooLong):
		return errs.NewError(errs.ErrMessageContentTooLong)
	case errors.Is(err, ErrNoSelection):
		return errs.NewError(errs.ErrInvalidParams)
	case errors.Is(err, ErrCounterpartyNotFound):
		return errs.NewError(errs.ErrRecipientNotFound)
	case errors.Is(err, ErrPermissionDenied):
		return errs.NewError(errs.ErrPermissionDenied)
	default:
		return errs.NewError(errs.ErrSendRejected)
	}
}

// EventPump consumes the session's live subscription, folds each event into
// the projection, and forwards applied events to the connection. It exits
// when the subscription channel closes: either the hub shut down or a newer
// connection for the same user replaced this one.
func (c *Client) EventPump() {
	sub := c.session.Subscription()
	if sub == nil {
		c.logger.Error().Msg("EventPump started without a subscription.")
		return
	}

	for m := range sub.Events() {
		outcome := c.session.ApplyEvent(m)
		if !outcome.Applied {
			// Redelivery of an already-merged event; the guard made it a no-op.
			continue
		}

		if outcome.NewConversation {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			c.session.ResolveCounterparty(ctx, m.SenderID)
			cancel()
		}

		c.writeFrame(FrameMessage, m, "")
	}

	c.kick("You were signed in on another device or the server is shutting down.")
}

// WritePump drains the send queue onto the connection and keeps the
// heartbeat alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case f, ok := <-c.out.frames():
			if !c.writeQueuedFrame(f, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one queued frame, returning false when the
// WritePump should terminate. A queued close frame is the last write.
func (c *Client) writeQueuedFrame(f outboundFrame, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return f.messageType != websocket.CloseMessage
}

// writePingMessage sends the periodic heartbeat ping.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// writeFrame marshals and queues one outbound frame; frames are dropped with
// a warning when the queue is full rather than blocking a pump.
func (c *Client) writeFrame(frameType FrameType, payload any, tempID string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", string(frameType)).Msg("Error marshaling frame payload")
		return
	}

	frame := Frame{
		Type:    frameType,
		Payload: payloadBytes,
		TempID:  tempID,
	}

	frameBytes, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", string(frameType)).Msg("Error marshaling frame")
		return
	}

	if !c.out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: frameBytes}) {
		c.logger.Warn().Str("frame_type", string(frameType)).Msg("Dropping outbound frame (queue full or connection closing)")
	}
}

// sendError queues an ERROR frame.
func (c *Client) sendError(customErr *errs.CustomError, tempID string) {
	c.writeFrame(FrameError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}, tempID)
}

// kick queues a close frame with the session-replaced close code. The frame
// goes through the outbox so it never races the WritePump's other writes; the
// WritePump terminates after writing it.
func (c *Client) kick(reason string) {
	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionReplaced, reason)

	if !c.out.enqueue(outboundFrame{messageType: websocket.CloseMessage, data: closeMessage}) {
		c.logger.Warn().Msg("Failed to queue session-replaced close message.")
	}
}
