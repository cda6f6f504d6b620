package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cityforall/internal/service"
	"cityforall/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades chat connections and feeds inbound events into the
// survey flow.
type Handler struct {
	hub  *Hub
	flow *service.FlowService
	log  *zap.Logger
}

func NewHandler(hub *Hub, flow *service.FlowService, log *zap.Logger) *Handler {
	return &Handler{hub: hub, flow: flow, log: log}
}

// ChatWS handles GET /v1/ws/chat?chat=<id>&user=<id>&username=<name>.
// On connect the current prompt is replayed so a reconnecting client
// sees where it left off.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat"), 10, 64)
	if err != nil || chatID == 0 {
		http.Error(w, "missing or invalid chat id", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || userID == 0 {
		userID = chatID
	}
	username := r.URL.Query().Get("username")

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		ChatID:   chatID,
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, 256),
		Hub:      h.hub,
	}
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)

	h.replayPrompt(r.Context(), conn)
}

// replayPrompt re-sends the prompt for the session's current position.
func (h *Handler) replayPrompt(ctx context.Context, conn *Connection) {
	prompt, err := h.flow.CurrentPrompt(ctx, conn.ChatID)
	if err != nil {
		h.log.Warn("prompt replay failed", zap.Int64("chatId", conn.ChatID), zap.Error(err))
		return
	}
	if _, err := h.hub.SendPrompt(ctx, conn.ChatID, prompt); err != nil {
		h.log.Debug("prompt replay send failed", zap.Int64("chatId", conn.ChatID), zap.Error(err))
	}
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.Int64("chatId", conn.ChatID), zap.Error(err))
			}
			break
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			h.sendError(conn.ChatID, "malformed event")
			continue
		}
		h.dispatch(context.Background(), conn, ev)
	}
}

// dispatch routes one client event into the flow. Flow errors are
// expected (validation, busy session) and already answered with a chat
// message; they are only logged here.
func (h *Handler) dispatch(ctx context.Context, conn *Connection, ev Event) {
	var err error
	switch ev.Type {
	case EvStart:
		err = h.flow.Start(ctx, conn.ChatID, conn.UserID, conn.Username)
	case EvText:
		err = h.flow.FreeText(ctx, conn.ChatID, ev.Text)
	case EvCallback:
		err = h.dispatchCallback(ctx, conn, ev.Data)
	default:
		h.sendError(conn.ChatID, "unknown event type")
		return
	}
	if err != nil {
		h.log.Debug("event handled with error",
			zap.Int64("chatId", conn.ChatID),
			zap.String("event", ev.Type),
			zap.Error(err),
		)
	}
}

func (h *Handler) dispatchCallback(ctx context.Context, conn *Connection, data string) error {
	cb, err := transport.ParseCallback(data)
	if err != nil {
		h.sendError(conn.ChatID, "malformed callback")
		return err
	}
	switch cb.Kind {
	case transport.CallbackStartSurvey:
		return h.flow.Start(ctx, conn.ChatID, conn.UserID, conn.Username)
	case transport.CallbackSingle:
		return h.flow.SingleChoice(ctx, conn.ChatID, cb.QuestionID, cb.OptionIndex)
	case transport.CallbackMulti:
		return h.flow.MultiToggle(ctx, conn.ChatID, cb.QuestionID, cb.OptionIndex)
	case transport.CallbackMultiSubmit:
		return h.flow.MultiSubmit(ctx, conn.ChatID)
	case transport.CallbackLevel:
		return h.flow.LevelChoice(ctx, conn.ChatID, cb.QuestionID, cb.LevelIndex, cb.OptionIndex)
	}
	return nil
}

func (h *Handler) sendError(chatID int64, text string) {
	if err := h.hub.send(chatID, MsgError, map[string]string{"error": text}); err != nil {
		h.log.Debug("error send failed", zap.Int64("chatId", chatID), zap.Error(err))
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
