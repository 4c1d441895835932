// Package events contains the message contracts of the live view channel.
//
// A client sends a JSON-encoded criteria object per text message. Every
// inbound message is answered, in order, by exactly one outbound message of
// type "view" or "error". The first outbound message on a connection is of
// type "connect".
package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeConnect MessageType = "connect"
	MessageTypeView    MessageType = "view"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Connection trace ID
}

// Message is a complete outbound message. Seq counts the inbound messages
// of the connection and ties a reply to the message it answers.
type Message struct {
	BaseMessage
	Seq  int64       `json:"seq,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ConnectData is the payload of connect messages
type ConnectData struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id,omitempty"`
}

// NewMessage stamps a message with an ID and the current time.
func NewMessage(msgType MessageType, traceID string, data interface{}) Message {
	return Message{
		BaseMessage: BaseMessage{
			ID:        uuid.NewString(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}
