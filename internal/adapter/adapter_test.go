package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"chatbridge/internal/domain"
)

func TestFormatText(t *testing.T) {
	tests := []struct {
		platform domain.Platform
		in       string
		want     string
	}{
		{domain.PlatformSlack, "**bold** __italic__ ~~gone~~", "*bold* _italic_ ~gone~"},
		{domain.PlatformWhatsApp, "**bold** text", "*bold* text"},
		{domain.PlatformWhatsApp, "__italic__ ~~struck~~", "_italic_ ~struck~"},
		{domain.PlatformTelegram, "**bold** text", "**bold** text"},
		{domain.PlatformDiscord, "__italic__", "__italic__"},
		{domain.PlatformSlack, "no markup", "no markup"},
	}
	for _, tt := range tests {
		if got := FormatText(tt.in, tt.platform); got != tt.want {
			t.Errorf("FormatText(%q, %s) = %q, want %q", tt.in, tt.platform, got, tt.want)
		}
	}
}

func TestButtonLabelLimit(t *testing.T) {
	tests := []struct {
		platform domain.Platform
		want     int
	}{
		{domain.PlatformWhatsApp, 20},
		{domain.PlatformTelegram, 64},
		{domain.PlatformDiscord, 80},
		{domain.PlatformSlack, 75},
		{domain.PlatformSMS, 50},
	}
	for _, tt := range tests {
		if got := ButtonLabelLimit(tt.platform); got != tt.want {
			t.Errorf("ButtonLabelLimit(%s) = %d, want %d", tt.platform, got, tt.want)
		}
	}
}

func TestTruncateLabel(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := TruncateLabel(long, domain.PlatformWhatsApp)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Errorf("TruncateLabel = %q (len %d)", got, len(got))
	}
	if got := TruncateLabel("short", domain.PlatformWhatsApp); got != "short" {
		t.Errorf("short label modified: %q", got)
	}

	emoji := strings.Repeat("👍", 30)
	got = TruncateLabel(emoji, domain.PlatformWhatsApp)
	if !utf8.ValidString(got) {
		t.Errorf("truncated label is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 20 {
		t.Errorf("truncated label runes = %d, want 20", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated label = %q, want ... suffix", got)
	}
}

func TestFormatButtonsDoesNotMutateInput(t *testing.T) {
	in := []domain.Button{{ID: "a", Text: strings.Repeat("y", 90)}}
	out := FormatButtons(in, domain.PlatformSlack)
	if len(out[0].Text) != 75 {
		t.Errorf("clamped label len = %d", len(out[0].Text))
	}
	if len(in[0].Text) != 90 {
		t.Error("input slice mutated")
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short split = %v", got)
	}

	long := strings.Repeat("a", 250)
	chunks := splitMessage(long, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d len = %d", i, len(c))
		}
	}
	if strings.Join(chunks, "") != long {
		t.Error("chunks do not reassemble the input")
	}

	text := strings.Repeat("b", 80) + "\n" + strings.Repeat("c", 80)
	chunks = splitMessage(text, 100)
	if len(chunks) != 2 || !strings.HasSuffix(chunks[0], "\n") {
		t.Errorf("newline split = %q", chunks)
	}
}

func TestDefaultCapabilities(t *testing.T) {
	slack := DefaultCapabilities(domain.PlatformSlack)
	if !slack.Text || !slack.Buttons || !slack.Webhooks {
		t.Errorf("slack capabilities = %+v", slack)
	}
	sms := DefaultCapabilities(domain.PlatformSMS)
	if !sms.Text || sms.Buttons {
		t.Errorf("sms capabilities = %+v", sms)
	}
}

func TestResolveCapabilitiesOverride(t *testing.T) {
	custom := &domain.Capabilities{Text: true}
	got := resolveCapabilities(domain.PlatformConfig{
		Platform:     domain.PlatformSlack,
		Capabilities: custom,
	})
	if got.Buttons {
		t.Error("explicit capabilities should win over defaults")
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Platform: domain.PlatformSlack, Op: "chat.postMessage", Remote: "channel_not_found"}
	msg := err.Error()
	if !strings.Contains(msg, "slack") || !strings.Contains(msg, "channel_not_found") {
		t.Errorf("Error() = %q", msg)
	}
}
