package chat_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindease/internal/app/chat"
)

func TestMessageFromRow(t *testing.T) {
	req := require.New(t)

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	m, err := chat.MessageFromRow("m1", "u-a", "u-b", "hello", ts, "read")
	req.NoError(err)
	req.Equal(chat.StatusRead, m.Status)
	req.Equal(ts, m.Timestamp)

	// An absent status defaults to sent.
	m, err = chat.MessageFromRow("m2", "u-a", "u-b", "hello", ts, "")
	req.NoError(err)
	req.Equal(chat.StatusSent, m.Status)

	_, err = chat.MessageFromRow("", "u-a", "u-b", "hello", ts, "sent")
	req.Error(err)

	_, err = chat.MessageFromRow("m3", "", "u-b", "hello", ts, "sent")
	req.Error(err)

	_, err = chat.MessageFromRow("m4", "u-a", "u-b", "hello", time.Time{}, "sent")
	req.Error(err)

	_, err = chat.MessageFromRow("m5", "u-a", "u-b", "hello", ts, "archived")
	req.Error(err)
}

func TestValidateText(t *testing.T) {
	req := require.New(t)

	trimmed, err := chat.ValidateText("  hello  ")
	req.NoError(err)
	req.Equal("hello", trimmed)

	_, err = chat.ValidateText("   ")
	req.ErrorIs(err, chat.ErrEmptyMessage)

	_, err = chat.ValidateText(strings.Repeat("x", chat.MaxTextBytes+1))
	req.ErrorIs(err, chat.ErrTextTooLong)

	trimmed, err = chat.ValidateText(strings.Repeat("x", chat.MaxTextBytes))
	req.NoError(err)
	req.Len(trimmed, chat.MaxTextBytes)
}

func TestCounterpartyFor(t *testing.T) {
	req := require.New(t)

	m := chat.Message{SenderID: "u-a", ReceiverID: "u-b"}
	req.Equal("u-b", m.CounterpartyFor("u-a"))
	req.Equal("u-a", m.CounterpartyFor("u-b"))
}

func TestConversationID(t *testing.T) {
	req := require.New(t)

	req.Equal("u-a-u-b", chat.ConversationID("u-a", "u-b"))
	req.NotEqual(chat.ConversationID("u-a", "u-b"), chat.ConversationID("u-b", "u-a"))
}
