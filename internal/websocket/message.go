package websocket

import (
	"encoding/json"
	"time"

	"carenote-server/internal/domain"
)

type MessageType string

const (
	TypeReminderDue      MessageType = "reminder_due"
	TypeCompleteReminder MessageType = "complete_reminder"
	TypeAck              MessageType = "ack"
	TypeError            MessageType = "error"
	TypePing             MessageType = "ping"
	TypePong             MessageType = "pong"
)

// Message is the envelope for every frame in both directions. ID is set by
// the client and echoed back in the matching ack.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ReminderDuePayload struct {
	ReminderID   int64           `json:"reminder_id"`
	StepType     domain.StepType `json:"step_type"`
	Description  string          `json:"description"`
	ScheduleTime time.Time       `json:"schedule_time"`
}

type CompleteReminderPayload struct {
	ReminderID int64 `json:"reminder_id"`
}

type AckPayload struct {
	MessageID        string `json:"message_id,omitempty"`
	Success          bool   `json:"success"`
	AlreadyCompleted bool   `json:"already_completed"`
	Error            string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
