package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chatbridge/internal/domain"
	"chatbridge/internal/signature"
)

const (
	whatsappAPIBase    = "https://graph.facebook.com/v21.0"
	whatsappMaxButtons = 3
)

// WhatsApp implements the adapter for the WhatsApp Business Cloud API.
// Outbound goes over plain HTTPS to the Graph API; inbound arrives as
// webhook payloads parsed by ParsePayload.
type WhatsApp struct {
	cfg     domain.PlatformConfig
	caps    domain.Capabilities
	client  *http.Client
	logger  *slog.Logger
	apiBase string

	phoneNumberID string
	accessToken   string
	verifyToken   string
	appSecret     string
}

// NewWhatsApp builds a WhatsApp adapter. Required credentials: accessToken
// and phoneNumberId. verifyToken and appSecret guard the webhook and may be
// empty in closed test setups.
func NewWhatsApp(cfg domain.PlatformConfig, logger *slog.Logger) (*WhatsApp, error) {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformWhatsApp
	}
	if cfg.Platform != domain.PlatformWhatsApp {
		return nil, fmt.Errorf("whatsapp adapter: config is for platform %q", cfg.Platform)
	}
	token := cfg.Credential("accessToken")
	phoneID := cfg.Credential("phoneNumberId")
	if token == "" || phoneID == "" {
		return nil, fmt.Errorf("whatsapp adapter: accessToken and phoneNumberId credentials are required")
	}
	return &WhatsApp{
		cfg:           cfg,
		caps:          resolveCapabilities(cfg),
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		apiBase:       whatsappAPIBase,
		phoneNumberID: phoneID,
		accessToken:   token,
		verifyToken:   cfg.Credential("verifyToken"),
		appSecret:     cfg.Credential("appSecret"),
	}, nil
}

func (w *WhatsApp) Platform() domain.Platform         { return domain.PlatformWhatsApp }
func (w *WhatsApp) Capabilities() domain.Capabilities { return w.caps }

// Send converts msg to a Cloud API payload and posts it. Returns the
// platform message ID.
func (w *WhatsApp) Send(ctx context.Context, msg domain.Message) (string, error) {
	if err := domain.ValidateMessage(&msg); err != nil {
		return "", err
	}
	if msg.Platform != domain.PlatformWhatsApp {
		return "", fmt.Errorf("whatsapp adapter: message platform %q", msg.Platform)
	}

	payload, err := toWhatsAppPayload(msg)
	if err != nil {
		return "", err
	}
	return w.post(ctx, payload)
}

// SendText sends a plain text message.
func (w *WhatsApp) SendText(ctx context.Context, to, text string) (string, error) {
	if to == "" || text == "" {
		return "", fmt.Errorf("whatsapp send: recipient and text are required")
	}
	return w.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": FormatText(text, domain.PlatformWhatsApp)},
	})
}

// MarkRead acknowledges an inbound message so the sender sees read ticks.
func (w *WhatsApp) MarkRead(ctx context.Context, _, messageID string) error {
	_, err := w.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	})
	return err
}

// SendTyping is not supported by the Cloud API.
func (w *WhatsApp) SendTyping(context.Context, string) error { return ErrUnsupported }

func toWhatsAppPayload(msg domain.Message) (map[string]any, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.ConversationID,
	}

	switch {
	case msg.Type == domain.MessageText:
		payload["type"] = "text"
		payload["text"] = map[string]string{"body": FormatText(msg.Content, domain.PlatformWhatsApp)}

	case msg.Type.Media():
		kind := waMediaKind(msg.Type)
		payload["type"] = kind
		media := map[string]string{"link": msg.MediaURL}
		if msg.Caption != "" && msg.Type != domain.MessageAudio {
			media["caption"] = msg.Caption
		}
		payload[kind] = media

	case msg.Type == domain.MessageLocation:
		loc := map[string]any{
			"latitude":  msg.Latitude,
			"longitude": msg.Longitude,
		}
		if msg.Address != "" {
			loc["address"] = msg.Address
		}
		payload["type"] = "location"
		payload["location"] = loc

	case msg.Type == domain.MessageInteractive && len(msg.Buttons) > 0:
		buttons := FormatButtons(msg.Buttons, domain.PlatformWhatsApp)
		if len(buttons) > whatsappMaxButtons {
			buttons = buttons[:whatsappMaxButtons]
		}
		waButtons := make([]map[string]any, 0, len(buttons))
		for _, btn := range buttons {
			waButtons = append(waButtons, map[string]any{
				"type":  "reply",
				"reply": map[string]string{"id": btn.ID, "title": btn.Text},
			})
		}
		body := msg.Meta("text")
		if body == "" {
			body = "Please choose:"
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": waButtons},
		}

	default:
		payload["type"] = "text"
		payload["text"] = map[string]string{
			"body": fmt.Sprintf("Unsupported message type: %s", msg.Type),
		}
	}

	return payload, nil
}

func waMediaKind(t domain.MessageType) string {
	switch t {
	case domain.MessageImage:
		return "image"
	case domain.MessageVideo:
		return "video"
	case domain.MessageAudio:
		return "audio"
	default:
		return "document"
	}
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (w *WhatsApp) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &APIError{
			Platform: domain.PlatformWhatsApp,
			Op:       "messages",
			Remote:   fmt.Sprintf("%d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var decoded waSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || len(decoded.Messages) == 0 {
		return "", nil
	}
	w.logger.Info("whatsapp message sent", "to", payload["to"], "id", decoded.Messages[0].ID)
	return decoded.Messages[0].ID, nil
}

// VerifyChallenge implements the hub.challenge webhook handshake. It returns
// the challenge to echo back, or an error when the verify token mismatches.
func (w *WhatsApp) VerifyChallenge(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token == "" || token != w.verifyToken {
		return "", fmt.Errorf("whatsapp webhook: verification rejected")
	}
	w.logger.Info("whatsapp webhook verified")
	return challenge, nil
}

// VerifyBody checks the X-Hub-Signature-256 header against the raw body.
// An unset appSecret skips the check.
func (w *WhatsApp) VerifyBody(body []byte, header string) bool {
	if w.appSecret == "" {
		return true
	}
	return signature.VerifyWhatsApp(string(body), header, w.appSecret)
}

// --- Cloud API webhook payload types ---

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages,omitempty"`
	Statuses         []waStatus  `json:"statuses,omitempty"`
	Contacts         []waProfile `json:"contacts,omitempty"`
}

type waMessage struct {
	From        string         `json:"from"`
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Type        string         `json:"type"`
	Text        *waText        `json:"text,omitempty"`
	Image       *waMedia       `json:"image,omitempty"`
	Video       *waMedia       `json:"video,omitempty"`
	Audio       *waMedia       `json:"audio,omitempty"`
	Document    *waMedia       `json:"document,omitempty"`
	Location    *waLocation    `json:"location,omitempty"`
	Contacts    []waContact    `json:"contacts,omitempty"`
	Interactive *waInteractive `json:"interactive,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type waLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type waContact struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
	} `json:"name"`
	Phones []struct {
		Phone string `json:"phone"`
	} `json:"phones,omitempty"`
	Emails []struct {
		Email string `json:"email"`
	} `json:"emails,omitempty"`
}

type waInteractive struct {
	Type        string `json:"type"`
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"list_reply,omitempty"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

type waProfile struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// ParsePayload normalizes one webhook POST body into canonical events:
// message_received for inbound messages, message_delivered and message_read
// for delivery statuses. Unrecognized change fields are skipped.
func (w *WhatsApp) ParsePayload(body []byte) ([]domain.WebhookEvent, error) {
	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("whatsapp webhook: decode payload: %w", err)
	}

	var events []domain.WebhookEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, wm := range change.Value.Messages {
				msg := w.fromWaMessage(wm, change.Value.Contacts)
				events = append(events, domain.WebhookEvent{
					Type:      domain.WebhookMessageReceived,
					Platform:  domain.PlatformWhatsApp,
					Timestamp: msg.Timestamp,
					Message:   &msg,
				})
			}
			for _, st := range change.Value.Statuses {
				eventType := domain.WebhookMessageDelivered
				switch st.Status {
				case "read":
					eventType = domain.WebhookMessageRead
				case "delivered", "sent":
				default:
					continue
				}
				events = append(events, domain.WebhookEvent{
					Type:      eventType,
					Platform:  domain.PlatformWhatsApp,
					Timestamp: waTime(st.Timestamp),
					MessageID: st.ID,
					UserID:    st.RecipientID,
				})
			}
		}
	}
	return events, nil
}

func (w *WhatsApp) fromWaMessage(wm waMessage, profiles []waProfile) domain.Message {
	msg := domain.Message{
		ID:             wm.ID,
		Platform:       domain.PlatformWhatsApp,
		ConversationID: wm.From,
		UserID:         wm.From,
		Role:           domain.RoleUser,
		Timestamp:      waTime(wm.Timestamp),
		Metadata:       map[string]any{},
	}
	for _, p := range profiles {
		if p.WaID == wm.From && p.Profile.Name != "" {
			msg.Metadata["senderName"] = p.Profile.Name
		}
	}

	media := func(m *waMedia, fallback domain.MessageType) {
		msg.Type = fallback
		if m.MimeType != "" {
			msg.Type = domain.MediaTypeFromMime(m.MimeType)
		}
		msg.MimeType = m.MimeType
		msg.Caption = m.Caption
		// Cloud API media is fetched by ID through the Graph API, not a
		// public URL; carry the ID so a downloader can resolve it.
		msg.MediaURL = fmt.Sprintf("%s/%s", w.apiBase, m.ID)
		msg.Metadata["mediaId"] = m.ID
		if m.Filename != "" {
			msg.Metadata["filename"] = m.Filename
		}
	}

	switch {
	case wm.Text != nil:
		msg.Type = domain.MessageText
		msg.Content = wm.Text.Body
	case wm.Image != nil:
		media(wm.Image, domain.MessageImage)
	case wm.Video != nil:
		media(wm.Video, domain.MessageVideo)
	case wm.Audio != nil:
		media(wm.Audio, domain.MessageAudio)
	case wm.Document != nil:
		media(wm.Document, domain.MessageFile)
	case wm.Location != nil:
		msg.Type = domain.MessageLocation
		msg.Latitude = wm.Location.Latitude
		msg.Longitude = wm.Location.Longitude
		msg.Address = wm.Location.Address
		if wm.Location.Name != "" {
			msg.Metadata["locationName"] = wm.Location.Name
		}
	case len(wm.Contacts) > 0:
		c := wm.Contacts[0]
		msg.Type = domain.MessageContact
		msg.Name = c.Name.FormattedName
		if len(c.Phones) > 0 {
			msg.Phone = c.Phones[0].Phone
		}
		if len(c.Emails) > 0 {
			msg.Email = c.Emails[0].Email
		}
	case wm.Interactive != nil:
		// Button and list replies come back as user selections; normalize
		// them to text carrying the chosen payload.
		msg.Type = domain.MessageText
		switch {
		case wm.Interactive.ButtonReply != nil:
			msg.Content = wm.Interactive.ButtonReply.Title
			msg.Metadata["payload"] = wm.Interactive.ButtonReply.ID
		case wm.Interactive.ListReply != nil:
			msg.Content = wm.Interactive.ListReply.Title
			msg.Metadata["payload"] = wm.Interactive.ListReply.ID
		}
	default:
		msg.Type = domain.MessageSystem
		msg.Event = domain.EventUnknown
		msg.Content = wm.Type + " message"
		msg.Metadata["rawType"] = wm.Type
	}
	return msg
}

func waTime(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now()
	}
	return time.Unix(sec, 0).UTC()
}
