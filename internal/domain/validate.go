package domain

import (
	"fmt"
	"net/mail"
	"net/url"
)

// ValidationError describes the first constraint a message violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

var validRoles = map[Role]bool{RoleUser: true, RoleAssistant: true, RoleSystem: true}

var validSystemEvents = map[SystemEvent]bool{
	EventUserJoined: true, EventUserLeft: true,
	EventConversationStarted: true, EventConversationEnded: true,
	EventTyping: true, EventDeliveryReceipt: true, EventReadReceipt: true,
	EventUnknown: true,
}

// ValidateMessage checks the discriminated-union shape of m: base fields
// present, the type discriminant known, the active variant well-formed, and
// no stray fields from other variants. It is used both to reject malformed
// inbound payloads early and to validate internally-built messages before
// send.
func ValidateMessage(m *Message) error {
	if m == nil {
		return invalid("message", "nil")
	}
	if m.ID == "" {
		return invalid("id", "required")
	}
	if !m.Platform.Valid() {
		return invalid("platform", fmt.Sprintf("unknown platform %q", m.Platform))
	}
	if m.ConversationID == "" {
		return invalid("conversationId", "required")
	}
	if m.UserID == "" {
		return invalid("userId", "required")
	}
	if !validRoles[m.Role] {
		return invalid("role", fmt.Sprintf("unknown role %q", m.Role))
	}
	if m.Timestamp.IsZero() {
		return invalid("timestamp", "required")
	}

	switch m.Type {
	case MessageText:
		return m.checkExclusive(MessageText)
	case MessageImage, MessageVideo, MessageAudio, MessageFile:
		if !wellFormedURL(m.MediaURL) {
			return invalid("mediaUrl", "must be an absolute URL")
		}
		if m.MimeType == "" {
			return invalid("mimeType", "required")
		}
		return m.checkExclusive(MessageImage)
	case MessageLocation:
		if m.Latitude < -90 || m.Latitude > 90 {
			return invalid("latitude", "must be within [-90, 90]")
		}
		if m.Longitude < -180 || m.Longitude > 180 {
			return invalid("longitude", "must be within [-180, 180]")
		}
		return m.checkExclusive(MessageLocation)
	case MessageContact:
		if m.Name == "" {
			return invalid("name", "required")
		}
		if m.Email != "" {
			if _, err := mail.ParseAddress(m.Email); err != nil {
				return invalid("email", "not a valid email address")
			}
		}
		return m.checkExclusive(MessageContact)
	case MessageInteractive:
		for i, b := range m.Buttons {
			if b.ID == "" || b.Text == "" {
				return invalid(fmt.Sprintf("buttons[%d]", i), "id and text required")
			}
			if b.URL != "" && !wellFormedURL(b.URL) {
				return invalid(fmt.Sprintf("buttons[%d].url", i), "must be an absolute URL")
			}
		}
		for i, q := range m.QuickReplies {
			if q.ID == "" {
				return invalid(fmt.Sprintf("quickReplies[%d]", i), "id required")
			}
		}
		for i, c := range m.Carousel {
			if c.Title == "" {
				return invalid(fmt.Sprintf("carousel[%d].title", i), "required")
			}
		}
		return m.checkExclusive(MessageInteractive)
	case MessageSystem:
		if !validSystemEvents[m.Event] {
			return invalid("event", fmt.Sprintf("unknown system event %q", m.Event))
		}
		return m.checkExclusive(MessageSystem)
	default:
		return invalid("type", fmt.Sprintf("unknown message type %q", m.Type))
	}
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// checkExclusive rejects fields that belong to a variant other than the one
// selected by the discriminant. The four media types share a variant and pass
// MessageImage as their representative; Content is shared by text and system.
func (m *Message) checkExclusive(variant MessageType) error {
	if variant != MessageText && variant != MessageSystem && m.Content != "" {
		return invalid("content", "not allowed for type "+string(m.Type))
	}
	if variant != MessageImage {
		if m.MediaURL != "" || m.MimeType != "" || m.Caption != "" || m.FileSize != 0 {
			return invalid("mediaUrl", "media fields not allowed for type "+string(m.Type))
		}
	}
	if variant != MessageLocation {
		if m.Latitude != 0 || m.Longitude != 0 || m.Address != "" {
			return invalid("latitude", "location fields not allowed for type "+string(m.Type))
		}
	}
	if variant != MessageContact {
		if m.Name != "" || m.Phone != "" || m.Email != "" {
			return invalid("name", "contact fields not allowed for type "+string(m.Type))
		}
	}
	if variant != MessageInteractive {
		if len(m.Buttons) > 0 || len(m.QuickReplies) > 0 || len(m.Carousel) > 0 {
			return invalid("buttons", "interactive fields not allowed for type "+string(m.Type))
		}
	}
	if variant != MessageSystem && m.Event != "" {
		return invalid("event", "not allowed for type "+string(m.Type))
	}
	return nil
}
