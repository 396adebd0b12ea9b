package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is a single frame on the realtime connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data into an envelope frame.
func Encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(&Envelope{Event: event, Data: raw})
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("decode %s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Event, err)
	}
	return nil
}

type ChatMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	SenderName     string     `json:"senderName,omitempty"`
	RecipientID    string     `json:"recipientId,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	Reactions      []Reaction `json:"reactions,omitempty"`
}

type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

type NewMessagePayload struct {
	ConversationID string      `json:"conversationId"`
	Message        ChatMessage `json:"message"`
}

type ReactionUpdatePayload struct {
	ConversationID string     `json:"conversationId"`
	MessageID      string     `json:"messageId"`
	Reactions      []Reaction `json:"reactions"`
}

// MessageAction tells an edit apart from a delete in a message-update.
type MessageAction string

const (
	MessageEdited  MessageAction = "edit"
	MessageDeleted MessageAction = "delete"
)

type MessageUpdatePayload struct {
	ConversationID string        `json:"conversationId"`
	MessageID      string        `json:"messageId"`
	Action         MessageAction `json:"action"`
	Content        string        `json:"content,omitempty"` // empty on delete
	UpdatedAt      time.Time     `json:"updatedAt"`
}

type ReadUpdatePayload struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	UserID         string    `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

type UserStatusPayload struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

type ParticipantPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
}

// Notification is an alert surfaced to the user. Server-originated
// notifications carry their own ID.
type Notification struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
	Read      bool           `json:"read"`
	Data      map[string]any `json:"data,omitempty"`
}

// outbound payloads

type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

type MessageReadRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type DirectMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}
