package domain

// Platform identifies a chat platform.
type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformTelegram  Platform = "telegram"
	PlatformDiscord   Platform = "discord"
	PlatformSlack     Platform = "slack"
	PlatformMessenger Platform = "messenger"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformWebchat   Platform = "webchat"
	PlatformSMS       Platform = "sms"
	PlatformEmail     Platform = "email"
)

// KnownPlatforms lists every platform identifier the canonical model accepts.
var KnownPlatforms = []Platform{
	PlatformWhatsApp, PlatformTelegram, PlatformDiscord, PlatformSlack,
	PlatformMessenger, PlatformInstagram, PlatformTwitter, PlatformWebchat,
	PlatformSMS, PlatformEmail,
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	for _, k := range KnownPlatforms {
		if p == k {
			return true
		}
	}
	return false
}

// PlatformConfig carries a platform's credentials and capability flags.
// Credentials keys are platform-specific (e.g. "botToken", "signingSecret"
// for Slack; "accessToken", "appSecret" for WhatsApp).
type PlatformConfig struct {
	Platform     Platform          `json:"platform"`
	Credentials  map[string]string `json:"credentials"`
	WebhookURL   string            `json:"webhookUrl,omitempty"`
	Capabilities *Capabilities     `json:"capabilities,omitempty"` // nil = adapter defaults
	Options      map[string]any    `json:"options,omitempty"`
}

// Credential returns the named credential or "".
func (c PlatformConfig) Credential(name string) string {
	return c.Credentials[name]
}

// Capabilities describes what a platform supports. Callers query these
// before attempting an operation; adapters return ErrUnsupported when a
// disabled capability is exercised anyway.
type Capabilities struct {
	Text             bool `json:"supportsText"`
	Images           bool `json:"supportsImages"`
	Videos           bool `json:"supportsVideos"`
	Files            bool `json:"supportsFiles"`
	Audio            bool `json:"supportsAudio"`
	Buttons          bool `json:"supportsButtons"`
	Carousels        bool `json:"supportsCarousels"`
	QuickReplies     bool `json:"supportsQuickReplies"`
	RichMedia        bool `json:"supportsRichMedia"`
	Webhooks         bool `json:"supportsWebhooks"`
	Realtime         bool `json:"supportsRealtime"`
	DeliveryReceipts bool `json:"supportsDeliveryReceipts"`
	ReadReceipts     bool `json:"supportsReadReceipts"`
	TypingIndicators bool `json:"supportsTypingIndicators"`
}
