package chat

import (
	"github.com/goccy/go-json"
)

// Message is one chat line. FromAgent distinguishes support-agent replies
// from the shopper's own messages echoed back by the server.
type Message struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
	FromAgent  bool   `json:"is_from_agent"`
	CreatedAt  string `json:"created_at"`
}

// EventType classifies a frame received from the chat server.
type EventType string

const (
	EventMessage     EventType = "message"
	EventTyping      EventType = "typing"
	EventAgentJoined EventType = "agent_joined"
	EventError       EventType = "error"
)

// Event is a decoded inbound chat frame.
type Event struct {
	Type       EventType
	Message    *Message
	TypingUser string
	IsTyping   bool
	AgentName  string
	ErrorText  string
}

// inboundFrame covers every frame shape the server emits. Message payloads
// arrive under either "data" or "message" depending on the sender path, and
// is_from_agent shows up as bool, number, or string.
type inboundFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Message   json.RawMessage `json:"message"`
	User      string          `json:"user"`
	IsTyping  bool            `json:"is_typing"`
	AgentName string          `json:"agent_name"`
	ErrText   string          `json:"message_text"`
}

type rawMessage struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
	FromAgent  any    `json:"is_from_agent"`
	CreatedAt  string `json:"created_at"`
}

func decodeEvent(payload []byte) (Event, bool) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Event{}, false
	}

	switch frame.Type {
	case "message", "new_message":
		raw := frame.Data
		if len(raw) == 0 {
			raw = frame.Message
		}
		if len(raw) == 0 {
			return Event{}, false
		}
		var msg rawMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Event{}, false
		}
		return Event{
			Type: EventMessage,
			Message: &Message{
				ID:         msg.ID,
				Content:    msg.Content,
				SenderName: msg.SenderName,
				FromAgent:  truthy(msg.FromAgent),
				CreatedAt:  msg.CreatedAt,
			},
		}, true
	case "typing":
		return Event{Type: EventTyping, TypingUser: frame.User, IsTyping: frame.IsTyping}, true
	case "agent_joined":
		return Event{Type: EventAgentJoined, AgentName: frame.AgentName}, true
	case "error":
		text := frame.ErrText
		if text == "" {
			// The server nests the text under "message" for error frames.
			var fallback string
			_ = json.Unmarshal(frame.Message, &fallback)
			text = fallback
		}
		return Event{Type: EventError, ErrorText: text}, true
	}
	return Event{}, false
}

func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		return value == "true" || value == "1"
	case float64:
		return value != 0
	}
	return false
}
