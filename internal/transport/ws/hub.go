// Package ws is the development chat adapter: a WebSocket connection
// per chat, JSON envelopes for prompts and keyboard edits. It stands in
// for a real messenger transport and implements transport.Sender.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cityforall/internal/transport"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Outbound message types
const (
	MsgPrompt        MessageType = "prompt"
	MsgText          MessageType = "text"
	MsgEditKeyboard  MessageType = "edit_keyboard"
	MsgDeleteMessage MessageType = "delete_message"
	MsgError         MessageType = "error"
)

// Inbound event types
const (
	EvStart    = "start"
	EvCallback = "callback"
	EvText     = "text"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is an inbound client event
type Event struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

type promptPayload struct {
	MessageID int64               `json:"messageId"`
	Text      string              `json:"text"`
	Image     string              `json:"image,omitempty"`
	Keyboard  *transport.Keyboard `json:"keyboard,omitempty"`
}

type editPayload struct {
	MessageID int64               `json:"messageId"`
	Keyboard  *transport.Keyboard `json:"keyboard,omitempty"`
}

type deletePayload struct {
	MessageID int64 `json:"messageId"`
}

var errNotConnected = errors.New("chat is not connected")

// Hub manages WebSocket connections, one per chat. A reconnect for an
// already connected chat replaces the old connection.
type Hub struct {
	conns map[int64]*Connection
	mu    sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	outbound   chan *outboundMessage

	nextMessageID atomic.Int64
	log           *zap.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	ChatID   int64
	UserID   int64
	Username string
	Send     chan []byte
	Hub      *Hub
}

type outboundMessage struct {
	ChatID  int64
	Message *Message
}

// NewHub creates the hub and starts its dispatch loop.
func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		conns:      make(map[int64]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		outbound:   make(chan *outboundMessage, 256),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if old, ok := h.conns[conn.ChatID]; ok {
				close(old.Send)
			}
			h.conns[conn.ChatID] = conn
			h.mu.Unlock()
			h.log.Info("chat connected", zap.Int64("chatId", conn.ChatID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.conns[conn.ChatID]; ok && existing == conn {
				delete(h.conns, conn.ChatID)
				close(conn.Send)
				h.log.Info("chat disconnected", zap.Int64("chatId", conn.ChatID))
			}
			h.mu.Unlock()

		case msg := <-h.outbound:
			h.mu.RLock()
			if conn, ok := h.conns[msg.ChatID]; ok {
				data, _ := json.Marshal(msg.Message)
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

func (h *Hub) connected(chatID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[chatID]
	return ok
}

func (h *Hub) send(chatID int64, msgType MessageType, payload any) error {
	if !h.connected(chatID) {
		return errNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.outbound <- &outboundMessage{
		ChatID:  chatID,
		Message: &Message{Type: msgType, Payload: data},
	}
	return nil
}

// SendPrompt delivers a question bubble (implements transport.Sender).
func (h *Hub) SendPrompt(_ context.Context, chatID int64, p transport.Prompt) (int64, error) {
	id := h.nextMessageID.Add(1)
	err := h.send(chatID, MsgPrompt, promptPayload{
		MessageID: id,
		Text:      p.Text,
		Image:     p.Image,
		Keyboard:  p.Keyboard,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EditKeyboard re-renders a sent prompt's keyboard (implements transport.Sender).
func (h *Hub) EditKeyboard(_ context.Context, chatID, messageID int64, kb *transport.Keyboard) error {
	return h.send(chatID, MsgEditKeyboard, editPayload{MessageID: messageID, Keyboard: kb})
}

// SendText delivers a plain message (implements transport.Sender).
func (h *Hub) SendText(_ context.Context, chatID int64, text string) error {
	id := h.nextMessageID.Add(1)
	return h.send(chatID, MsgText, promptPayload{MessageID: id, Text: text})
}

// DeleteMessage asks the client to drop a bubble (implements transport.Sender).
func (h *Hub) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	return h.send(chatID, MsgDeleteMessage, deletePayload{MessageID: messageID})
}
