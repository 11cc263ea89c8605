/*
Package chat contains the core logic of the direct-messaging subsystem:
the immutable Message value, the derived Conversation aggregate, the
materializer that builds conversations from flat message sets, the per-user
session state that merges live insert events, and the receiver-scoped feed hub.
*/
package chat

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks read-receipt progression on a message. Transitions are owned
// by the backing store; this subsystem only carries the field.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// MaxTextBytes is the maximum allowed size of a message text.
const MaxTextBytes = 5000

// ValidateText applies the send-path text rules shared by every send surface:
// trim surrounding whitespace, reject text that is empty after trimming, and
// reject text over the size limit. The trimmed text is returned.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if len(trimmed) > MaxTextBytes {
		return "", ErrTextTooLong
	}
	return trimmed, nil
}

// Message is an immutable direct message between two users. Instances are
// created only by the store's send operation; they are never updated or
// deleted here.
type Message struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	// SenderID identifies who wrote the message.
	SenderID string `json:"senderId"`

	// ReceiverID identifies who the message is addressed to.
	ReceiverID string `json:"receiverId"`

	// Text is the message body.
	Text string `json:"text"`

	// Timestamp is the server-assigned creation instant.
	Timestamp time.Time `json:"timestamp"`

	// Status is the read-receipt state ("sent", "delivered", "read").
	Status Status `json:"status"`
}

// CounterpartyFor returns the endpoint of the message that is not the given
// user. For a message the user sent, that is the receiver; otherwise the sender.
func (m Message) CounterpartyFor(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// MessageFromRow maps a raw store row onto a typed Message, validating that
// the required fields are present. Malformed rows are rejected rather than
// propagated with zero values.
func MessageFromRow(id, senderID, receiverID, text string, timestamp time.Time, status string) (Message, error) {
	if id == "" {
		return Message{}, fmt.Errorf("message row missing id")
	}
	if senderID == "" || receiverID == "" {
		return Message{}, fmt.Errorf("message row %s missing sender or receiver", id)
	}
	if timestamp.IsZero() {
		return Message{}, fmt.Errorf("message row %s missing timestamp", id)
	}

	st := Status(status)
	switch st {
	case StatusSent, StatusDelivered, StatusRead:
	case "":
		st = StatusSent
	default:
		return Message{}, fmt.Errorf("message row %s has unknown status %q", id, status)
	}

	return Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  timestamp,
		Status:     st,
	}, nil
}
