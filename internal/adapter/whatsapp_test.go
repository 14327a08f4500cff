package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatbridge/internal/domain"
	"chatbridge/internal/signature"
)

func newTestWhatsApp(t *testing.T) *WhatsApp {
	t.Helper()
	w, err := NewWhatsApp(domain.PlatformConfig{
		Platform: domain.PlatformWhatsApp,
		Credentials: map[string]string{
			"accessToken":   "token",
			"phoneNumberId": "12345",
			"verifyToken":   "verify-me",
			"appSecret":     "app-secret",
		},
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewWhatsApp: %v", err)
	}
	return w
}

func TestNewWhatsAppMissingCredentials(t *testing.T) {
	_, err := NewWhatsApp(domain.PlatformConfig{
		Platform:    domain.PlatformWhatsApp,
		Credentials: map[string]string{"accessToken": "token"},
	}, discardLogger())
	if err == nil {
		t.Fatal("expected error for missing phoneNumberId")
	}
}

func TestWhatsAppVerifyChallenge(t *testing.T) {
	w := newTestWhatsApp(t)

	challenge, err := w.VerifyChallenge("subscribe", "verify-me", "12345")
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if challenge != "12345" {
		t.Errorf("challenge = %q", challenge)
	}

	if _, err := w.VerifyChallenge("subscribe", "wrong", "12345"); err == nil {
		t.Error("expected rejection for wrong token")
	}
	if _, err := w.VerifyChallenge("unsubscribe", "verify-me", "12345"); err == nil {
		t.Error("expected rejection for wrong mode")
	}
	if _, err := w.VerifyChallenge("subscribe", "", "12345"); err == nil {
		t.Error("expected rejection for empty token")
	}
}

func TestWhatsAppVerifyBody(t *testing.T) {
	w := newTestWhatsApp(t)
	body := []byte(`{"object":"whatsapp_business_account"}`)
	good := "sha256=" + signature.Sign(string(body), "app-secret")

	if !w.VerifyBody(body, good) {
		t.Error("valid signature rejected")
	}
	if w.VerifyBody(body, "sha256=deadbeef") {
		t.Error("invalid signature accepted")
	}
	if w.VerifyBody(body, "") {
		t.Error("missing header accepted")
	}
}

func TestWhatsAppParsePayloadText(t *testing.T) {
	w := newTestWhatsApp(t)
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "E1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"contacts": [{"wa_id": "15551234567", "profile": {"name": "Ada"}}],
			"messages": [{"from": "15551234567", "id": "wamid.1", "timestamp": "1690000000", "type": "text", "text": {"body": "hello"}}]
		}}]}]
	}`
	events, err := w.ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != domain.WebhookMessageReceived {
		t.Errorf("type = %s", ev.Type)
	}
	msg := ev.Message
	if msg == nil {
		t.Fatal("message missing")
	}
	if msg.Type != domain.MessageText || msg.Content != "hello" {
		t.Errorf("message = %+v", msg)
	}
	if msg.ConversationID != "15551234567" || msg.UserID != "15551234567" {
		t.Errorf("identity = %s/%s", msg.ConversationID, msg.UserID)
	}
	if msg.Meta("senderName") != "Ada" {
		t.Errorf("senderName = %q", msg.Meta("senderName"))
	}
	if err := domain.ValidateMessage(msg); err != nil {
		t.Errorf("normalized message invalid: %v", err)
	}
}

func TestWhatsAppParsePayloadMediaAndLocation(t *testing.T) {
	w := newTestWhatsApp(t)
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "E1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"messages": [
				{"from": "1555", "id": "wamid.2", "timestamp": "1690000000", "type": "image",
				 "image": {"id": "MEDIA1", "mime_type": "image/jpeg", "caption": "sunset"}},
				{"from": "1555", "id": "wamid.3", "timestamp": "1690000001", "type": "location",
				 "location": {"latitude": 48.85, "longitude": 2.35, "address": "Paris"}}
			]
		}}]}]
	}`
	events, err := w.ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	img := events[0].Message
	if img.Type != domain.MessageImage || img.Caption != "sunset" {
		t.Errorf("image message = %+v", img)
	}
	if img.Meta("mediaId") != "MEDIA1" {
		t.Errorf("mediaId = %q", img.Meta("mediaId"))
	}

	loc := events[1].Message
	if loc.Type != domain.MessageLocation || loc.Latitude != 48.85 || loc.Address != "Paris" {
		t.Errorf("location message = %+v", loc)
	}
}

func TestWhatsAppParsePayloadStatuses(t *testing.T) {
	w := newTestWhatsApp(t)
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "E1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"statuses": [
				{"id": "wamid.9", "status": "delivered", "timestamp": "1690000000", "recipient_id": "1555"},
				{"id": "wamid.9", "status": "read", "timestamp": "1690000005", "recipient_id": "1555"},
				{"id": "wamid.9", "status": "failed", "timestamp": "1690000006", "recipient_id": "1555"}
			]
		}}]}]
	}`
	events, err := w.ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want delivered and read only", len(events))
	}
	if events[0].Type != domain.WebhookMessageDelivered || events[0].MessageID != "wamid.9" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != domain.WebhookMessageRead {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestWhatsAppParsePayloadUnknownType(t *testing.T) {
	w := newTestWhatsApp(t)
	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "E1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"messages": [{"from": "1555", "id": "wamid.4", "timestamp": "1690000000", "type": "sticker"}]
		}}]}]
	}`
	events, err := w.ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	msg := events[0].Message
	if msg.Type != domain.MessageSystem || msg.Event != domain.EventUnknown {
		t.Errorf("unknown type should normalize to system/unknown, got %s/%s", msg.Type, msg.Event)
	}
	if msg.Meta("rawType") != "sticker" {
		t.Errorf("rawType = %q", msg.Meta("rawType"))
	}
}

func TestWhatsAppSend(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("authorization = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/12345/messages") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(rw).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.out"}},
		})
	}))
	defer srv.Close()

	w := newTestWhatsApp(t)
	w.apiBase = srv.URL

	id, err := w.SendText(context.Background(), "15551234567", "hi there")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "wamid.out" {
		t.Errorf("id = %q", id)
	}
	if captured["type"] != "text" || captured["to"] != "15551234567" {
		t.Errorf("payload = %v", captured)
	}
}

func TestWhatsAppSendInteractiveClampsButtons(t *testing.T) {
	msg := domain.Message{
		ID:             "1",
		Platform:       domain.PlatformWhatsApp,
		ConversationID: "1555",
		UserID:         "bot",
		Type:           domain.MessageInteractive,
		Role:           domain.RoleAssistant,
		Buttons: []domain.Button{
			{ID: "a", Text: "A very long button label that exceeds limits"},
			{ID: "b", Text: "B"},
			{ID: "c", Text: "C"},
			{ID: "d", Text: "D"},
		},
	}
	payload, err := toWhatsAppPayload(msg)
	if err != nil {
		t.Fatalf("toWhatsAppPayload: %v", err)
	}
	interactive := payload["interactive"].(map[string]any)
	buttons := interactive["action"].(map[string]any)["buttons"].([]map[string]any)
	if len(buttons) != 3 {
		t.Fatalf("buttons = %d, want clamp to 3", len(buttons))
	}
	title := buttons[0]["reply"].(map[string]string)["title"]
	if len(title) > 20 {
		t.Errorf("title %q exceeds the 20 character limit", title)
	}
}

func TestWhatsAppSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := newTestWhatsApp(t)
	w.apiBase = srv.URL

	_, err := w.SendText(context.Background(), "1555", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Platform != domain.PlatformWhatsApp {
		t.Errorf("platform = %s", apiErr.Platform)
	}
}
