package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cityforall/internal/transport"
)

func receive(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case data := <-conn.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func TestHub_SendToUnconnectedChat(t *testing.T) {
	h := NewHub(zap.NewNop())

	_, err := h.SendPrompt(context.Background(), 5, transport.Prompt{Text: "x"})
	assert.Error(t, err)
	assert.Error(t, h.SendText(context.Background(), 5, "x"))
}

func TestHub_DeliversEnvelopes(t *testing.T) {
	ctx := context.Background()
	h := NewHub(zap.NewNop())

	conn := &Connection{ChatID: 5, Send: make(chan []byte, 16), Hub: h}
	h.Register(conn)
	require.Eventually(t, func() bool { return h.connected(5) }, 2*time.Second, 5*time.Millisecond)

	id, err := h.SendPrompt(ctx, 5, transport.Prompt{
		Text:     "Ваш возраст?",
		Keyboard: &transport.Keyboard{Buttons: []transport.Button{{Label: "18-34", Data: "single:1:0"}}},
	})
	require.NoError(t, err)

	msg := receive(t, conn)
	assert.Equal(t, MsgPrompt, msg.Type)
	var p promptPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, id, p.MessageID)
	assert.Equal(t, "Ваш возраст?", p.Text)
	require.NotNil(t, p.Keyboard)
	assert.Equal(t, "single:1:0", p.Keyboard.Buttons[0].Data)

	require.NoError(t, h.DeleteMessage(ctx, 5, id))
	msg = receive(t, conn)
	assert.Equal(t, MsgDeleteMessage, msg.Type)
}

func TestHub_MessageIDsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	h := NewHub(zap.NewNop())

	conn := &Connection{ChatID: 5, Send: make(chan []byte, 16), Hub: h}
	h.Register(conn)
	require.Eventually(t, func() bool { return h.connected(5) }, 2*time.Second, 5*time.Millisecond)

	a, err := h.SendPrompt(ctx, 5, transport.Prompt{Text: "a"})
	require.NoError(t, err)
	b, err := h.SendPrompt(ctx, 5, transport.Prompt{Text: "b"})
	require.NoError(t, err)
	assert.Greater(t, b, a)
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub(zap.NewNop())

	conn := &Connection{ChatID: 5, Send: make(chan []byte, 16), Hub: h}
	h.Register(conn)
	require.Eventually(t, func() bool { return h.connected(5) }, 2*time.Second, 5*time.Millisecond)

	h.Unregister(conn)
	require.Eventually(t, func() bool { return !h.connected(5) }, 2*time.Second, 5*time.Millisecond)

	_, err := h.SendPrompt(context.Background(), 5, transport.Prompt{Text: "x"})
	assert.Error(t, err)
}
