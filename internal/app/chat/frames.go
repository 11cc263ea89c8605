/*
Package chat contains the core logic of the direct-messaging subsystem.

This file defines the WebSocket wire frames exchanged with the browser client.
Every frame is a JSON envelope with a type tag and a raw payload decoded per
type.
*/
package chat

import (
	"encoding/json"

	"mindease/internal/app/user"
)

// FrameType tags the kind of frame in the envelope.
type FrameType string

const (
	// FrameInit carries the current user and their full conversation list,
	// sent once right after the connection is established.
	FrameInit FrameType = "INIT_DATA"

	// FrameMessage carries one live inbound message.
	FrameMessage FrameType = "MESSAGE"

	// FrameConfirm acknowledges a SEND with the persisted message.
	FrameConfirm FrameType = "CONFIRM"

	// FrameError carries a client-facing error.
	FrameError FrameType = "ERROR"

	// FrameSelected carries the conversation opened by a SELECT.
	FrameSelected FrameType = "SELECTED"

	// FrameSend is the inbound command to send a message in the open
	// conversation.
	FrameSend FrameType = "SEND"

	// FrameSelect is the inbound command to open the conversation with a user.
	FrameSelect FrameType = "SELECT"
)

// Frame is the envelope for every WebSocket frame in both directions.
type Frame struct {
	// Type selects how Payload is interpreted.
	Type FrameType `json:"type"`

	// Payload holds the type-specific body, decoded lazily.
	Payload json.RawMessage `json:"payload,omitempty"`

	// TempID is a client-chosen correlation id echoed back on CONFIRM and
	// ERROR frames so the client can reconcile its pending message.
	TempID string `json:"tempId,omitempty"`
}

// InitPayload is the body of an INIT_DATA frame.
type InitPayload struct {
	CurrentUser   user.User      `json:"currentUser"`
	Conversations []Conversation `json:"conversations"`
}

// SendPayload is the body of an inbound SEND frame.
type SendPayload struct {
	Text string `json:"text"`
}

// SelectPayload is the body of an inbound SELECT frame.
type SelectPayload struct {
	UserID string `json:"userId"`
}

// ConfirmPayload is the body of a CONFIRM frame.
type ConfirmPayload struct {
	TempID  string  `json:"tempId"`
	Message Message `json:"message"`
}

// ErrorPayload is the body of an ERROR frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
