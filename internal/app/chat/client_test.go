package chat

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestOutboxDeliversFramesInOrder(t *testing.T) {
	req := require.New(t)

	out := newOutbox(4)
	req.True(out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: []byte("a")}))
	req.True(out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: []byte("b")}))

	first := <-out.frames()
	second := <-out.frames()
	req.Equal([]byte("a"), first.data)
	req.Equal([]byte("b"), second.data)
}

func TestOutboxCloseTerminatesConsumer(t *testing.T) {
	req := require.New(t)

	out := newOutbox(4)
	req.True(out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: []byte("a")}))
	out.close()

	// Queued frames drain, then the channel closes so the consumer exits its
	// range promptly instead of idling until a write fails.
	f, ok := <-out.frames()
	req.True(ok)
	req.Equal([]byte("a"), f.data)

	_, ok = <-out.frames()
	req.False(ok)
}

func TestOutboxEnqueueAfterCloseIsNoOp(t *testing.T) {
	req := require.New(t)

	out := newOutbox(4)
	out.close()

	// A pump tearing down while another queues a frame must never panic.
	req.False(out.enqueue(outboundFrame{messageType: websocket.CloseMessage}))
	out.close()
}

func TestOutboxFullQueueDropsFrame(t *testing.T) {
	req := require.New(t)

	out := newOutbox(1)
	req.True(out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: []byte("a")}))
	req.False(out.enqueue(outboundFrame{messageType: websocket.TextMessage, data: []byte("b")}))

	f := <-out.frames()
	req.Equal([]byte("a"), f.data)
}
