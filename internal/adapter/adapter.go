// Package adapter implements the platform adapters: inbound event
// normalization into the canonical message model, outbound conversion back
// into platform payloads, and the thin REST calls that deliver them. Slack
// is the reference implementation; WhatsApp, Telegram, Discord, and webchat
// are thinner.
package adapter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"chatbridge/internal/domain"
)

// ErrUnsupported is returned when a send exercises a capability the
// platform's flags declare unavailable.
var ErrUnsupported = errors.New("operation not supported by platform")

// APIError carries the remote error string a platform API reported.
type APIError struct {
	Platform domain.Platform
	Op       string
	Remote   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, e.Remote)
}

// DefaultCapabilities returns the built-in capability flags for a platform.
// PlatformConfig.Capabilities overrides these when set.
func DefaultCapabilities(p domain.Platform) domain.Capabilities {
	switch p {
	case domain.PlatformSlack:
		return domain.Capabilities{
			Text: true, Images: true, Videos: true, Files: true, Audio: true,
			Buttons: true, QuickReplies: true, RichMedia: true,
			Webhooks: true, Realtime: true, TypingIndicators: false,
		}
	case domain.PlatformWhatsApp:
		return domain.Capabilities{
			Text: true, Images: true, Videos: true, Files: true, Audio: true,
			Buttons: true, QuickReplies: true, Webhooks: true,
			DeliveryReceipts: true, ReadReceipts: true,
		}
	case domain.PlatformTelegram:
		return domain.Capabilities{
			Text: true, Images: true, Videos: true, Files: true, Audio: true,
			Buttons: true, QuickReplies: true, Webhooks: true,
			TypingIndicators: true,
		}
	case domain.PlatformDiscord:
		return domain.Capabilities{
			Text: true, Images: true, Videos: true, Files: true, Audio: true,
			Buttons: true, Realtime: true, TypingIndicators: true,
		}
	case domain.PlatformWebchat:
		return domain.Capabilities{
			Text: true, Buttons: true, QuickReplies: true, Realtime: true,
			TypingIndicators: true,
		}
	default:
		return domain.Capabilities{Text: true}
	}
}

func resolveCapabilities(cfg domain.PlatformConfig) domain.Capabilities {
	if cfg.Capabilities != nil {
		return *cfg.Capabilities
	}
	return DefaultCapabilities(cfg.Platform)
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`__(.*?)__`)
	strikeRe = regexp.MustCompile(`~~(.*?)~~`)
)

// FormatText converts the common **bold** / __italic__ / ~~strike~~
// convention into the platform's native markup. Telegram and Discord accept
// the common form as-is.
func FormatText(text string, p domain.Platform) string {
	switch p {
	case domain.PlatformSlack, domain.PlatformWhatsApp:
		text = boldRe.ReplaceAllString(text, "*$1*")
		// ${1} not $1: a bare $1 followed by _ parses as group name "1_".
		text = italicRe.ReplaceAllString(text, "_${1}_")
		return strikeRe.ReplaceAllString(text, "~$1~")
	default:
		return text
	}
}

// ButtonLabelLimit returns the platform's interactive-label character limit.
func ButtonLabelLimit(p domain.Platform) int {
	switch p {
	case domain.PlatformWhatsApp:
		return 20
	case domain.PlatformTelegram:
		return 64
	case domain.PlatformDiscord:
		return 80
	case domain.PlatformSlack:
		return 75
	default:
		return 50
	}
}

// TruncateLabel clamps a label to the platform limit, marking the cut with
// an ellipsis. Counted in runes so the cut never splits a multi-byte
// character.
func TruncateLabel(text string, p domain.Platform) string {
	limit := ButtonLabelLimit(p)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}

// FormatButtons clamps every button label to the platform limit.
func FormatButtons(buttons []domain.Button, p domain.Platform) []domain.Button {
	out := make([]domain.Button, len(buttons))
	for i, b := range buttons {
		b.Text = TruncateLabel(b.Text, p)
		out[i] = b
	}
	return out
}

// splitMessage splits text into chunks of at most maxLen bytes, preferring
// newline boundaries in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
