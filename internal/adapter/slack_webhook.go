package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"chatbridge/internal/domain"
	"chatbridge/internal/signature"
)

// ErrBadSignature is returned by Handle when the request signature does not
// verify. Callers must respond 403 and drop the payload.
var ErrBadSignature = errors.New("slack webhook: signature verification failed")

// Interaction is a parsed block_actions (or legacy interactive_message)
// payload.
type Interaction struct {
	Type        string              `json:"type"`
	User        InteractionUser     `json:"user"`
	Channel     InteractionChannel  `json:"channel"`
	Actions     []InteractionAction `json:"actions"`
	CallbackID  string              `json:"callback_id,omitempty"`
	TriggerID   string              `json:"trigger_id,omitempty"`
	ResponseURL string              `json:"response_url,omitempty"`
	ActionTS    string              `json:"action_ts,omitempty"`
}

type InteractionUser struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

type InteractionChannel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// InteractionAction is one user action inside an interaction payload.
type InteractionAction struct {
	Type           string             `json:"type"`
	ActionID       string             `json:"action_id"`
	BlockID        string             `json:"block_id,omitempty"`
	Value          string             `json:"value,omitempty"`
	SelectedOption *InteractionOption `json:"selected_option,omitempty"`
	ActionTS       string             `json:"action_ts,omitempty"`
}

type InteractionOption struct {
	Value string `json:"value"`
}

// SlashCommand is a parsed slash-command invocation.
type SlashCommand struct {
	Command     string
	Text        string
	UserID      string
	UserName    string
	ChannelID   string
	ChannelName string
	TeamID      string
	TeamDomain  string
	ResponseURL string
	TriggerID   string
}

// SlackWebhook verifies and dispatches incoming Slack webhook payloads.
// Register callbacks before serving; registration is not safe to mix with
// concurrent Handle calls.
type SlackWebhook struct {
	signingSecret string
	logger        *slog.Logger

	messageHandlers     []func(domain.Message)
	interactionHandlers []func(Interaction)
	commandHandlers     []func(SlashCommand)
}

// NewSlackWebhook builds a webhook router. The signing secret must match the
// app's configured secret; an empty secret rejects every request.
func NewSlackWebhook(signingSecret string, logger *slog.Logger) *SlackWebhook {
	return &SlackWebhook{signingSecret: signingSecret, logger: logger}
}

// OnMessage registers a callback for normalized inbound messages.
func (h *SlackWebhook) OnMessage(fn func(domain.Message)) {
	h.messageHandlers = append(h.messageHandlers, fn)
}

// OnInteraction registers a callback for block actions.
func (h *SlackWebhook) OnInteraction(fn func(Interaction)) {
	h.interactionHandlers = append(h.interactionHandlers, fn)
}

// OnCommand registers a callback for slash commands.
func (h *SlackWebhook) OnCommand(fn func(SlashCommand)) {
	h.commandHandlers = append(h.commandHandlers, fn)
}

type slackEnvelope struct {
	Type      string      `json:"type"`
	Challenge string      `json:"challenge,omitempty"`
	TeamID    string      `json:"team_id,omitempty"`
	Event     *SlackEvent `json:"event,omitempty"`
}

// Handle verifies the raw request body against its signature headers, then
// classifies and dispatches it. The returned map is the JSON body to respond
// with; callback errors never surface to Slack (the platform retries on
// non-200, which would double-deliver).
func (h *SlackWebhook) Handle(rawBody []byte, header http.Header) (map[string]any, error) {
	ok := signature.VerifySlack(
		string(rawBody),
		header.Get("X-Slack-Signature"),
		h.signingSecret,
		header.Get("X-Slack-Request-Timestamp"),
	)
	if !ok {
		return nil, ErrBadSignature
	}

	if bytes.HasPrefix(bytes.TrimSpace(rawBody), []byte("{")) {
		return h.handleJSON(rawBody)
	}
	return h.handleForm(rawBody)
}

func (h *SlackWebhook) handleJSON(rawBody []byte) (map[string]any, error) {
	var env slackEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("slack webhook: decode payload: %w", err)
	}

	switch env.Type {
	case "url_verification":
		h.logger.Info("slack url verification")
		return map[string]any{"challenge": env.Challenge}, nil

	case "event_callback":
		h.dispatchEvent(env.Event)
		return map[string]any{"ok": true}, nil

	case "block_actions", "interactive_message":
		var interaction Interaction
		if err := json.Unmarshal(rawBody, &interaction); err != nil {
			return nil, fmt.Errorf("slack webhook: decode interaction: %w", err)
		}
		h.dispatchInteraction(interaction)
		return map[string]any{"ok": true}, nil
	}

	h.logger.Info("slack webhook ignored", "type", env.Type)
	return map[string]any{"ok": true}, nil
}

func (h *SlackWebhook) handleForm(rawBody []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, fmt.Errorf("slack webhook: decode form payload: %w", err)
	}

	if payload := values.Get("payload"); payload != "" {
		var interaction Interaction
		if err := json.Unmarshal([]byte(payload), &interaction); err != nil {
			return nil, fmt.Errorf("slack webhook: decode interaction: %w", err)
		}
		h.dispatchInteraction(interaction)
		return map[string]any{"ok": true}, nil
	}

	if cmd := values.Get("command"); cmd != "" {
		h.dispatchCommand(SlashCommand{
			Command:     cmd,
			Text:        values.Get("text"),
			UserID:      values.Get("user_id"),
			UserName:    values.Get("user_name"),
			ChannelID:   values.Get("channel_id"),
			ChannelName: values.Get("channel_name"),
			TeamID:      values.Get("team_id"),
			TeamDomain:  values.Get("team_domain"),
			ResponseURL: values.Get("response_url"),
			TriggerID:   values.Get("trigger_id"),
		})
		return map[string]any{"ok": true}, nil
	}

	h.logger.Info("slack webhook ignored form payload")
	return map[string]any{"ok": true}, nil
}

func (h *SlackWebhook) dispatchEvent(ev *SlackEvent) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case "message", "app_mention":
	default:
		h.logger.Info("slack event ignored", "event_type", ev.Type)
		return
	}
	// Bot echoes would loop the gateway back into itself.
	if ev.BotID != "" {
		return
	}
	if ev.Type == "app_mention" {
		ev.Text = stripLeadingMention(ev.Text)
	}

	msg, err := FromSlackEvent(ev)
	if err != nil {
		h.logger.Error("slack event rejected", "error", err)
		return
	}
	h.logger.Info("slack message received",
		"channel", msg.ConversationID, "user", msg.UserID, "type", msg.Type)
	for i, fn := range h.messageHandlers {
		h.safeDispatch("message", i, func() { fn(msg) })
	}
}

func (h *SlackWebhook) dispatchInteraction(interaction Interaction) {
	h.logger.Info("slack interaction received",
		"interaction_type", interaction.Type,
		"user", interaction.User.ID,
		"actions", len(interaction.Actions))
	for i, fn := range h.interactionHandlers {
		h.safeDispatch("interaction", i, func() { fn(interaction) })
	}
}

func (h *SlackWebhook) dispatchCommand(cmd SlashCommand) {
	h.logger.Info("slack command received", "command", cmd.Command, "user", cmd.UserID)
	for i, fn := range h.commandHandlers {
		h.safeDispatch("command", i, func() { fn(cmd) })
	}
}

// safeDispatch isolates callbacks: a panicking handler must not take down
// the webhook endpoint or the handlers registered after it.
func (h *SlackWebhook) safeDispatch(kind string, index int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("slack webhook callback panicked",
				"kind", kind, "index", index, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func stripLeadingMention(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<@") {
		if end := strings.Index(text, ">"); end > 0 {
			return strings.TrimSpace(text[end+1:])
		}
	}
	return text
}
