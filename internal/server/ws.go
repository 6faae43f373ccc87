package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"negofactory/internal/envelope"
	"negofactory/internal/workflow"
)

const (
	turnWSWriteWait = 10 * time.Second
	turnWSPongWait  = 60 * time.Second
	turnWSPingEvery = (turnWSPongWait * 9) / 10
)

var turnWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type turnWSInbound struct {
	Type string          `json:"type"`
	Turn json.RawMessage `json:"turn,omitempty"`
}

type turnWSOutbound struct {
	Type     string             `json:"type"`
	ChatID   string             `json:"chatId,omitempty"`
	Envelope *envelope.Envelope `json:"envelope,omitempty"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// handleWS streams turns over one websocket per chat. The client sends
// {"type":"turn","turn":{...}} frames carrying the same payload as the
// HTTP endpoint and receives {"type":"envelope",...} responses.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	chatID := strings.TrimSpace(r.URL.Query().Get("chat_id"))
	if chatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	conn, err := turnWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(turnWSPongWait)); err != nil {
		h.logger.Printf("server: ws read deadline for chat %s: %v", chatID, err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(turnWSPongWait))
	})

	writeCh := make(chan turnWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(turnWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(turnWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(turnWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushTurnWS(writeCh, turnWSOutbound{Type: "subscribed", ChatID: chatID})

	for {
		var in turnWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushTurnWS(writeCh, turnWSOutbound{Type: "pong"})
		case "turn":
			req, err := workflow.Decode(in.Turn)
			if err != nil {
				pushTurnWS(writeCh, turnWSOutbound{
					Type:    "error",
					ChatID:  chatID,
					Code:    "invalid_argument",
					Message: "invalid turn payload",
				})
				continue
			}
			if req.ChatID == "" {
				req.ChatID = chatID
			}
			if req.ChatID != chatID {
				pushTurnWS(writeCh, turnWSOutbound{
					Type:    "error",
					ChatID:  chatID,
					Code:    "invalid_argument",
					Message: "chat_id mismatch",
				})
				continue
			}
			env := h.runTurn(ctx, req)
			pushTurnWS(writeCh, turnWSOutbound{
				Type:     "envelope",
				ChatID:   chatID,
				Envelope: env,
			})
		default:
			pushTurnWS(writeCh, turnWSOutbound{
				Type:    "error",
				ChatID:  chatID,
				Code:    "invalid_argument",
				Message: "unsupported type: " + in.Type,
			})
		}
	}
}

// pushTurnWS never blocks the turn loop: when the write buffer is full
// the oldest frame is dropped to make room.
func pushTurnWS(writeCh chan turnWSOutbound, out turnWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
