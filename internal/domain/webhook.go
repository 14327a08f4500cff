package domain

import "time"

// WebhookEventType classifies an inbound webhook delivery.
type WebhookEventType string

const (
	WebhookMessageReceived     WebhookEventType = "message_received"
	WebhookMessageDelivered    WebhookEventType = "message_delivered"
	WebhookMessageRead         WebhookEventType = "message_read"
	WebhookUserTyping          WebhookEventType = "user_typing"
	WebhookUserJoined          WebhookEventType = "user_joined"
	WebhookUserLeft            WebhookEventType = "user_left"
	WebhookConversationStarted WebhookEventType = "conversation_started"
	WebhookConversationEnded   WebhookEventType = "conversation_ended"
	WebhookVerified            WebhookEventType = "webhook_verified"
)

// WebhookEvent is the normalized form of one platform webhook delivery.
// Type selects which identifier fields are meaningful:
// message_received carries Message; the status and activity events carry
// MessageID/ConversationID/UserID; webhook_verified carries the handshake
// challenge and verify token.
type WebhookEvent struct {
	Type      WebhookEventType `json:"type"`
	Platform  Platform         `json:"platform"`
	Timestamp time.Time        `json:"timestamp"`

	Message        *Message `json:"message,omitempty"`
	MessageID      string   `json:"messageId,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	UserID         string   `json:"userId,omitempty"`

	Challenge   string `json:"challenge,omitempty"`
	VerifyToken string `json:"verifyToken,omitempty"`
}
