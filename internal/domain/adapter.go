package domain

import "context"

// Adapter is the minimal capability set every platform integration provides:
// identify itself, declare what it supports, and deliver a canonical message.
// Optional capabilities live on separate interfaces; callers check the
// adapter's Capabilities first, then type-assert.
type Adapter interface {
	Platform() Platform
	Capabilities() Capabilities
	// Send converts msg into the platform's native payload and delivers it,
	// returning the platform-assigned message ID.
	Send(ctx context.Context, msg Message) (string, error)
}

// Directory is the optional user/conversation lookup capability.
type Directory interface {
	GetUser(ctx context.Context, platformUserID string) (*User, error)
	GetConversation(ctx context.Context, platformConversationID string) (*Conversation, error)
}

// Receipter is the optional typing/read-receipt capability, gated by
// Capabilities.TypingIndicators and Capabilities.ReadReceipts.
type Receipter interface {
	SendTyping(ctx context.Context, conversationID string) error
	MarkRead(ctx context.Context, conversationID, messageID string) error
}
