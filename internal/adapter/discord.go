package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatbridge/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Discord implements the adapter over the Discord gateway/REST API. Discord
// pushes events over its own websocket session rather than webhooks, so the
// caller wires a MessageCreate handler through OnMessage.
type Discord struct {
	cfg     domain.PlatformConfig
	caps    domain.Capabilities
	session *discordgo.Session
	logger  *slog.Logger
}

// NewDiscord builds a Discord adapter from a "botToken" credential. The
// session is created but not opened; call Open before sending.
func NewDiscord(cfg domain.PlatformConfig, logger *slog.Logger) (*Discord, error) {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformDiscord
	}
	if cfg.Platform != domain.PlatformDiscord {
		return nil, fmt.Errorf("discord adapter: config is for platform %q", cfg.Platform)
	}
	token := cfg.Credential("botToken")
	if token == "" {
		return nil, fmt.Errorf("discord adapter: botToken credential is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord adapter: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return &Discord{cfg: cfg, caps: resolveCapabilities(cfg), session: session, logger: logger}, nil
}

func (d *Discord) Platform() domain.Platform         { return domain.PlatformDiscord }
func (d *Discord) Capabilities() domain.Capabilities { return d.caps }

// Open connects the gateway session.
func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord adapter: open session: %w", err)
	}
	d.logger.Info("discord session open", "user", d.session.State.User.Username)
	return nil
}

// Close shuts down the gateway session.
func (d *Discord) Close() error { return d.session.Close() }

// OnMessage registers a handler for inbound messages. Messages from the bot
// itself are filtered out before normalization.
func (d *Discord) OnMessage(fn func(domain.Message)) {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
			return
		}
		msg := FromDiscordMessage(m)
		d.logger.Info("discord message received",
			"channel", msg.ConversationID, "user", msg.UserID, "type", msg.Type)
		fn(msg)
	})
}

// Send converts msg to a Discord payload and posts it.
func (d *Discord) Send(ctx context.Context, msg domain.Message) (string, error) {
	if err := domain.ValidateMessage(&msg); err != nil {
		return "", err
	}
	if msg.Platform != domain.PlatformDiscord {
		return "", fmt.Errorf("discord adapter: message platform %q", msg.Platform)
	}

	send := toDiscordSend(msg)
	var sent *discordgo.Message
	err := Retry(ctx, sendAttempts, sendRetryDelay, func() error {
		var sendErr error
		sent, sendErr = d.session.ChannelMessageSendComplex(msg.ConversationID, send)
		return sendErr
	})
	if err != nil {
		return "", &APIError{Platform: domain.PlatformDiscord, Op: "channel message", Remote: err.Error()}
	}
	d.logger.Info("discord message sent", "channel", msg.ConversationID, "id", sent.ID)
	return sent.ID, nil
}

// SendTyping triggers the typing indicator.
func (d *Discord) SendTyping(_ context.Context, conversationID string) error {
	if err := d.session.ChannelTyping(conversationID); err != nil {
		return &APIError{Platform: domain.PlatformDiscord, Op: "typing", Remote: err.Error()}
	}
	return nil
}

// MarkRead is not exposed by the bot API.
func (d *Discord) MarkRead(context.Context, string, string) error { return ErrUnsupported }

// GetUser fetches a user profile.
func (d *Discord) GetUser(_ context.Context, platformUserID string) (*domain.User, error) {
	u, err := d.session.User(platformUserID)
	if err != nil {
		return nil, &APIError{Platform: domain.PlatformDiscord, Op: "user", Remote: err.Error()}
	}
	return &domain.User{
		ID:             u.ID,
		Platform:       domain.PlatformDiscord,
		PlatformUserID: u.ID,
		Name:           u.GlobalName,
		Username:       u.Username,
		AvatarURL:      u.AvatarURL(""),
		IsBot:          u.Bot,
		CreatedAt:      time.Now(),
	}, nil
}

// GetConversation fetches channel info.
func (d *Discord) GetConversation(_ context.Context, platformConversationID string) (*domain.Conversation, error) {
	ch, err := d.session.Channel(platformConversationID)
	if err != nil {
		return nil, &APIError{Platform: domain.PlatformDiscord, Op: "channel", Remote: err.Error()}
	}
	return &domain.Conversation{
		ID:                     ch.ID,
		Platform:               domain.PlatformDiscord,
		PlatformConversationID: ch.ID,
		Title:                  ch.Name,
		Status:                 domain.ConversationActive,
		IsGroup:                ch.Type != discordgo.ChannelTypeDM,
		Metadata:               map[string]any{"guildId": ch.GuildID},
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}, nil
}

func toDiscordSend(msg domain.Message) *discordgo.MessageSend {
	switch {
	case msg.Type == domain.MessageText:
		return &discordgo.MessageSend{Content: FormatText(msg.Content, domain.PlatformDiscord)}

	case msg.Type.Media():
		embed := &discordgo.MessageEmbed{Description: msg.Caption}
		if msg.Type == domain.MessageImage {
			embed.Image = &discordgo.MessageEmbedImage{URL: msg.MediaURL}
		} else {
			embed.URL = msg.MediaURL
			embed.Title = fmt.Sprintf("%s attachment", msg.Type)
		}
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}

	case msg.Type == domain.MessageLocation:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("Location: https://www.google.com/maps?q=%f,%f", msg.Latitude, msg.Longitude),
		}

	case msg.Type == domain.MessageInteractive:
		content := msg.Meta("text")
		if content == "" {
			content = "Please choose:"
		}
		return &discordgo.MessageSend{
			Content:    content,
			Components: discordComponents(msg),
		}
	}

	return &discordgo.MessageSend{Content: fmt.Sprintf("Unsupported message type: %s", msg.Type)}
}

// discordComponents renders buttons as action rows, five buttons per row up
// to the five-row component limit.
func discordComponents(msg domain.Message) []discordgo.MessageComponent {
	buttons := FormatButtons(msg.Buttons, domain.PlatformDiscord)
	for _, qr := range msg.QuickReplies {
		payload := qr.Payload
		if payload == "" {
			payload = qr.ID
		}
		buttons = append(buttons, domain.Button{
			ID:      qr.ID,
			Text:    TruncateLabel(qr.Text, domain.PlatformDiscord),
			Payload: payload,
		})
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons) && len(rows) < 5; start += 5 {
		end := start + 5
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, btn := range buttons[start:end] {
			if btn.URL != "" {
				row.Components = append(row.Components, discordgo.Button{
					Label: btn.Text,
					Style: discordgo.LinkButton,
					URL:   btn.URL,
				})
				continue
			}
			row.Components = append(row.Components, discordgo.Button{
				Label:    btn.Text,
				Style:    discordgo.PrimaryButton,
				CustomID: btn.ID,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// FromDiscordMessage normalizes a gateway MessageCreate event.
func FromDiscordMessage(m *discordgo.MessageCreate) domain.Message {
	msg := domain.Message{
		ID:             m.ID,
		Platform:       domain.PlatformDiscord,
		ConversationID: m.ChannelID,
		Role:           domain.RoleUser,
		Timestamp:      m.Timestamp.UTC(),
		Metadata:       map[string]any{},
	}
	if m.GuildID != "" {
		msg.Metadata["guildId"] = m.GuildID
	}
	if m.Author != nil {
		msg.UserID = m.Author.ID
		if m.Author.Username != "" {
			msg.Metadata["username"] = m.Author.Username
		}
		if m.Author.Bot {
			msg.Role = domain.RoleAssistant
		}
	}

	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		msg.Type = domain.MediaTypeFromMime(att.ContentType)
		msg.MediaURL = att.URL
		msg.MimeType = att.ContentType
		msg.Caption = m.Content
		msg.FileSize = int64(att.Size)
		if att.Filename != "" {
			msg.Metadata["filename"] = att.Filename
		}
		return msg
	}

	msg.Type = domain.MessageText
	msg.Content = m.Content
	return msg
}
