package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"carenote-server/internal/domain"

	"go.uber.org/zap"
)

type Config struct {
	MaxConnPerUser int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

// MessageHandler handles inbound frames. It runs on the sending client's
// read goroutine.
type MessageHandler interface {
	HandleWebSocketMessage(ctx context.Context, client *Client, msg *Message) error
}

// Manager indexes live connections by user and fans out pushes to them.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	done           chan struct{}
	cfg            Config
	messageHandler MessageHandler
	logger         *zap.Logger
}

func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxConnPerUser <= 0 {
		cfg.MaxConnPerUser = 5
	}
	return &Manager{
		clients:    make(map[string]*Client),
		userIndex:  make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		cfg:        cfg,
		logger:     logger,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves registrations until ctx is canceled, then drops every client.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case <-ctx.Done():
			close(m.done)
			m.closeAll()
			return
		}
	}
}

// Done is closed once Run has returned and no longer serves Register or
// Unregister.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if len(m.userIndex[client.UserID]) >= m.cfg.MaxConnPerUser {
		m.logger.Warn("max connections reached", zap.String("user_id", client.UserID))
		close(client.Send)
		return
	}

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}
	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	m.logger.Debug("client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID))
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	m.removeLocked(client)
}

func (m *Manager) removeLocked(client *Client) {
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	delete(m.userIndex[client.UserID], client.ID)
	if len(m.userIndex[client.UserID]) == 0 {
		delete(m.userIndex, client.UserID)
	}
	close(client.Send)
	m.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	for _, client := range m.clients {
		m.removeLocked(client)
	}
}

func (m *Manager) dispatch(ctx context.Context, client *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.logger.Debug("malformed websocket frame", zap.String("client_id", client.ID), zap.Error(err))
		if reply, err := NewMessage(TypeError, &ErrorPayload{Error: "malformed message"}); err == nil {
			m.SendToClient(client.ID, reply)
		}
		return
	}

	if m.messageHandler == nil {
		return
	}
	if err := m.messageHandler.HandleWebSocketMessage(ctx, client, &msg); err != nil {
		m.logger.Warn("websocket message failed",
			zap.String("client_id", client.ID),
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
	}
}

// SendToUser queues message on every connection of userID and returns how
// many accepted it. Connections with a full buffer are dropped.
func (m *Manager) SendToUser(userID string, message *Message) int {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("failed to encode websocket message", zap.Error(err))
		return 0
	}

	var (
		delivered int
		slow      []*Client
	)

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		select {
		case client.Send <- messageBytes:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	if len(slow) > 0 {
		m.clientsMutex.Lock()
		for _, client := range slow {
			m.logger.Warn("send buffer full, dropping client", zap.String("client_id", client.ID))
			m.removeLocked(client)
		}
		m.clientsMutex.Unlock()
	}

	return delivered
}

func (m *Manager) SendToClient(clientID string, message *Message) bool {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("failed to encode websocket message", zap.Error(err))
		return false
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return false
	}

	select {
	case client.Send <- messageBytes:
		return true
	default:
		m.logger.Warn("send buffer full", zap.String("client_id", clientID))
		return false
	}
}

// NotifyReminderDue pushes a reminder_due frame to the reminder's patient.
func (m *Manager) NotifyReminderDue(r *domain.DueReminder) int {
	msg, err := NewMessage(TypeReminderDue, &ReminderDuePayload{
		ReminderID:   r.ReminderID,
		StepType:     r.StepType,
		Description:  r.Description,
		ScheduleTime: r.ScheduleTime,
	})
	if err != nil {
		m.logger.Error("failed to build reminder_due message", zap.Error(err))
		return 0
	}
	return m.SendToUser(r.PatientID, msg)
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.userIndex[userID])
}
