package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"carenote-server/internal/config"
	"carenote-server/internal/middleware"
	"carenote-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	tokens   middleware.TokenValidator
	upgrader ws.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, tokens middleware.TokenValidator, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		tokens:  tokens,
		upgrader: ws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates with ?token= or a bearer header, since
// browsers cannot set headers on the upgrade request.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			token = header[7:]
		}
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	principal, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Debug("websocket token rejected", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", principal.ID), zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), principal.ID, conn, h.manager)
	select {
	case h.manager.Register <- client:
	case <-h.manager.Done():
		conn.Close()
		return
	}

	h.logger.Info("websocket connected", zap.String("user_id", principal.ID), zap.String("client_id", client.ID))

	// The request context ends when this handler returns.
	ctx := context.WithoutCancel(r.Context())
	go client.WritePump()
	go client.ReadPump(ctx)
}

type WebSocketMessageHandler struct {
	manager    *websocket.Manager
	completion ReminderCompleter
	logger     *zap.Logger
}

func NewWebSocketMessageHandler(manager *websocket.Manager, completion ReminderCompleter, logger *zap.Logger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager:    manager,
		completion: completion,
		logger:     logger,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeCompleteReminder:
		return h.handleCompleteReminder(ctx, client, msg)

	case websocket.TypePing:
		return h.reply(client, msg.ID, websocket.TypePong, nil)

	default:
		h.logger.Debug("unknown websocket message type", zap.String("type", string(msg.Type)))
		return h.reply(client, msg.ID, websocket.TypeError, &websocket.ErrorPayload{
			Error: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

// handleCompleteReminder completes on behalf of the connected user; the
// payload cannot name another patient.
func (h *WebSocketMessageHandler) handleCompleteReminder(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.CompleteReminderPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return h.reply(client, msg.ID, websocket.TypeAck, &websocket.AckPayload{
			MessageID: msg.ID,
			Error:     "invalid payload",
		})
	}

	ack := &websocket.AckPayload{MessageID: msg.ID}
	result, err := h.completion.Complete(ctx, payload.ReminderID, client.UserID)
	switch {
	case err == nil:
		ack.Success = result.OK
		ack.AlreadyCompleted = result.AlreadyCompleted
	case statusFor(err) == http.StatusInternalServerError:
		h.logger.Error("websocket completion failed", zap.Int64("reminder_id", payload.ReminderID), zap.Error(err))
		ack.Error = "internal error"
	default:
		ack.Error = err.Error()
	}

	return h.reply(client, msg.ID, websocket.TypeAck, ack)
}

func (h *WebSocketMessageHandler) reply(client *websocket.Client, id string, msgType websocket.MessageType, payload interface{}) error {
	reply, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	reply.ID = id

	if !h.manager.SendToClient(client.ID, reply) {
		return fmt.Errorf("client %s is not connected", client.ID)
	}
	return nil
}
