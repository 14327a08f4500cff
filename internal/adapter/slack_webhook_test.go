package adapter

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"chatbridge/internal/domain"
	"chatbridge/internal/signature"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedHeader(body string) http.Header {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", "v0="+signature.Sign("v0:"+ts+":"+body, testSigningSecret))
	return header
}

func TestSlackWebhookURLVerification(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	body := `{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`

	resp, err := h.Handle([]byte(body), signedHeader(body))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp["challenge"] != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("response = %v, want challenge echo", resp)
	}
}

func TestSlackWebhookBadSignature(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	called := false
	h.OnMessage(func(domain.Message) { called = true })

	body := `{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1","text":"hi","ts":"1690000000.000100"}}`
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	header.Set("X-Slack-Signature", "v0=deadbeef")

	if _, err := h.Handle([]byte(body), header); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if called {
		t.Error("handler called despite rejected signature")
	}
}

func TestSlackWebhookMissingHeaders(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	body := `{"type":"url_verification","challenge":"x"}`
	if _, err := h.Handle([]byte(body), http.Header{}); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature for missing headers", err)
	}
}

func TestSlackWebhookEventDispatch(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	var got domain.Message
	h.OnMessage(func(m domain.Message) { got = m })

	body := `{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1","text":"hello there","ts":"1690000000.000100"}}`
	resp, err := h.Handle([]byte(body), signedHeader(body))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("response = %v", resp)
	}
	if got.Content != "hello there" || got.ConversationID != "C1" {
		t.Errorf("dispatched message = %+v", got)
	}
}

func TestSlackWebhookFiltersBotEvents(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	called := false
	h.OnMessage(func(domain.Message) { called = true })

	body := `{"type":"event_callback","event":{"type":"message","bot_id":"B1","channel":"C1","text":"echo","ts":"1690000000.000100"}}`
	if _, err := h.Handle([]byte(body), signedHeader(body)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if called {
		t.Error("bot-originated event should not dispatch")
	}
}

func TestSlackWebhookAppMentionStripsPrefix(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	var got domain.Message
	h.OnMessage(func(m domain.Message) { got = m })

	body := `{"type":"event_callback","event":{"type":"app_mention","user":"U1","channel":"C1","text":"<@UBOT> status please","ts":"1690000000.000100"}}`
	if _, err := h.Handle([]byte(body), signedHeader(body)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got.Content != "status please" {
		t.Errorf("content = %q, want mention stripped", got.Content)
	}
}

func TestSlackWebhookInteractionForm(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	var got Interaction
	h.OnInteraction(func(i Interaction) { got = i })

	payload := `{"type":"block_actions","user":{"id":"U1","username":"bob"},"channel":{"id":"C1"},"actions":[{"type":"button","action_id":"approve","value":"yes"}],"trigger_id":"T1"}`
	body := "payload=" + url.QueryEscape(payload)

	resp, err := h.Handle([]byte(body), signedHeader(body))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("response = %v", resp)
	}
	if got.Type != "block_actions" || got.User.ID != "U1" {
		t.Errorf("interaction = %+v", got)
	}
	if len(got.Actions) != 1 || got.Actions[0].ActionID != "approve" || got.Actions[0].Value != "yes" {
		t.Errorf("actions = %+v", got.Actions)
	}
}

func TestSlackWebhookSlashCommand(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	var got SlashCommand
	h.OnCommand(func(c SlashCommand) { got = c })

	form := url.Values{}
	form.Set("command", "/status")
	form.Set("text", "prod")
	form.Set("user_id", "U1")
	form.Set("channel_id", "C1")
	form.Set("response_url", "https://hooks.slack.com/commands/123")
	body := form.Encode()

	if _, err := h.Handle([]byte(body), signedHeader(body)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got.Command != "/status" || got.Text != "prod" || got.ChannelID != "C1" {
		t.Errorf("command = %+v", got)
	}
}

func TestSlackWebhookCallbackIsolation(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	h.OnMessage(func(domain.Message) { panic("boom") })
	secondCalled := false
	h.OnMessage(func(domain.Message) { secondCalled = true })

	body := `{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1","text":"hi","ts":"1690000000.000100"}}`
	resp, err := h.Handle([]byte(body), signedHeader(body))
	if err != nil {
		t.Fatalf("Handle returned error after panic: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("response = %v, want ok despite callback panic", resp)
	}
	if !secondCalled {
		t.Error("second handler skipped after first panicked")
	}
}

func TestSlackWebhookIgnoresUnknownTypes(t *testing.T) {
	h := NewSlackWebhook(testSigningSecret, discardLogger())
	body := `{"type":"tokens_revoked"}`
	resp, err := h.Handle([]byte(body), signedHeader(body))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("response = %v", resp)
	}
}
