// Package domain defines the canonical, platform-agnostic message model
// that every adapter converts to and from.
package domain

import (
	"strings"
	"time"
)

// MessageType discriminates the canonical message union.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageVideo       MessageType = "video"
	MessageAudio       MessageType = "audio"
	MessageFile        MessageType = "file"
	MessageLocation    MessageType = "location"
	MessageContact     MessageType = "contact"
	MessageInteractive MessageType = "interactive"
	MessageSystem      MessageType = "system"
)

// Media reports whether t is one of the media variants.
func (t MessageType) Media() bool {
	switch t {
	case MessageImage, MessageVideo, MessageAudio, MessageFile:
		return true
	}
	return false
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SystemEvent is the closed set of events a system message can carry.
type SystemEvent string

const (
	EventUserJoined          SystemEvent = "user_joined"
	EventUserLeft            SystemEvent = "user_left"
	EventConversationStarted SystemEvent = "conversation_started"
	EventConversationEnded   SystemEvent = "conversation_ended"
	EventTyping              SystemEvent = "typing"
	EventDeliveryReceipt     SystemEvent = "delivery_receipt"
	EventReadReceipt         SystemEvent = "read_receipt"
	// EventUnknown marks a platform notification we could not classify.
	EventUnknown SystemEvent = "unknown"
)

// Button is an interactive button definition.
type Button struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

// QuickReply is a one-tap reply option.
type QuickReply struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
}

// CarouselItem is one card in an interactive carousel.
type CarouselItem struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Message is the canonical message. Type selects the active variant; only
// that variant's fields may be set (ValidateMessage enforces this). Messages
// are constructed fresh per conversion and never mutated afterwards.
type Message struct {
	ID             string         `json:"id"`
	Platform       Platform       `json:"platform"`
	ConversationID string         `json:"conversationId"`
	UserID         string         `json:"userId"`
	Type           MessageType    `json:"type"`
	Role           Role           `json:"role"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// text
	Content string `json:"content,omitempty"`

	// media (image/video/audio/file)
	MediaURL string `json:"mediaUrl,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`

	// location
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Address   string  `json:"address,omitempty"`

	// contact
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	// interactive
	Buttons      []Button       `json:"buttons,omitempty"`
	QuickReplies []QuickReply   `json:"quickReplies,omitempty"`
	Carousel     []CarouselItem `json:"carousel,omitempty"`

	// system
	Event SystemEvent `json:"event,omitempty"`
}

// Meta returns the string metadata value for key, or "".
func (m *Message) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MediaTypeFromMime classifies a MIME type into a media message type.
func MediaTypeFromMime(mimeType string) MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MessageImage
	case strings.HasPrefix(mimeType, "video/"):
		return MessageVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MessageAudio
	default:
		return MessageFile
	}
}
