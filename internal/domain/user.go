package domain

import "time"

// User bridges a platform-native user ID to a canonical identity record.
// Lifecycle is read-through: fetched from the platform API on demand, never
// owned by this layer.
type User struct {
	ID             string         `json:"id"`
	Platform       Platform       `json:"platform"`
	PlatformUserID string         `json:"platformUserId"`
	Name           string         `json:"name,omitempty"`
	Username       string         `json:"username,omitempty"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	AvatarURL      string         `json:"avatarUrl,omitempty"`
	IsBot          bool           `json:"isBot,omitempty"`
	Language       string         `json:"language,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActiveAt   time.Time      `json:"lastActiveAt,omitempty"`
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationPaused   ConversationStatus = "paused"
	ConversationClosed   ConversationStatus = "closed"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation bridges a platform-native channel/chat ID to a canonical
// conversation record.
type Conversation struct {
	ID                     string             `json:"id"`
	Platform               Platform           `json:"platform"`
	PlatformConversationID string             `json:"platformConversationId"`
	UserID                 string             `json:"userId,omitempty"`
	Title                  string             `json:"title,omitempty"`
	Status                 ConversationStatus `json:"status"`
	IsGroup                bool               `json:"isGroup,omitempty"`
	Participants           []string           `json:"participants,omitempty"`
	Metadata               map[string]any     `json:"metadata,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
	LastMessageAt          time.Time          `json:"lastMessageAt,omitempty"`
}
