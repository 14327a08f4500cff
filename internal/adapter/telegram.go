package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"chatbridge/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram implements the adapter over the Bot API. Inbound updates arrive
// either by webhook (FromUpdate on decoded payloads) or long polling run by
// the caller.
type Telegram struct {
	cfg    domain.PlatformConfig
	caps   domain.Capabilities
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegram builds a Telegram adapter from a "botToken" credential. The
// token is validated against getMe on construction.
func NewTelegram(cfg domain.PlatformConfig, logger *slog.Logger) (*Telegram, error) {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformTelegram
	}
	if cfg.Platform != domain.PlatformTelegram {
		return nil, fmt.Errorf("telegram adapter: config is for platform %q", cfg.Platform)
	}
	token := cfg.Credential("botToken")
	if token == "" {
		return nil, fmt.Errorf("telegram adapter: botToken credential is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Telegram{cfg: cfg, caps: resolveCapabilities(cfg), api: api, logger: logger}, nil
}

func (t *Telegram) Platform() domain.Platform         { return domain.PlatformTelegram }
func (t *Telegram) Capabilities() domain.Capabilities { return t.caps }

// Send converts msg to a Bot API call and returns the platform message ID.
func (t *Telegram) Send(ctx context.Context, msg domain.Message) (string, error) {
	if err := domain.ValidateMessage(&msg); err != nil {
		return "", err
	}
	if msg.Platform != domain.PlatformTelegram {
		return "", fmt.Errorf("telegram adapter: message platform %q", msg.Platform)
	}
	chatID, err := strconv.ParseInt(msg.ConversationID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram adapter: conversation ID %q is not a chat ID", msg.ConversationID)
	}

	chattable, err := toTelegramChattable(chatID, msg)
	if err != nil {
		return "", err
	}

	var sent tgbotapi.Message
	err = Retry(ctx, sendAttempts, sendRetryDelay, func() error {
		var sendErr error
		sent, sendErr = t.api.Send(chattable)
		return sendErr
	})
	if err != nil {
		return "", &APIError{Platform: domain.PlatformTelegram, Op: "sendMessage", Remote: err.Error()}
	}
	t.logger.Info("telegram message sent", "chat", chatID, "message_id", sent.MessageID)
	return strconv.Itoa(sent.MessageID), nil
}

// SendTyping shows the "typing..." chat action.
func (t *Telegram) SendTyping(ctx context.Context, conversationID string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram adapter: conversation ID %q is not a chat ID", conversationID)
	}
	_, err = t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	if err != nil {
		return &APIError{Platform: domain.PlatformTelegram, Op: "sendChatAction", Remote: err.Error()}
	}
	return nil
}

// MarkRead has no Bot API equivalent.
func (t *Telegram) MarkRead(context.Context, string, string) error { return ErrUnsupported }

func toTelegramChattable(chatID int64, msg domain.Message) (tgbotapi.Chattable, error) {
	switch {
	case msg.Type == domain.MessageText:
		out := tgbotapi.NewMessage(chatID, msg.Content)
		out.ParseMode = tgbotapi.ModeMarkdown
		return out, nil

	case msg.Type == domain.MessageImage:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(msg.MediaURL))
		photo.Caption = msg.Caption
		return photo, nil

	case msg.Type == domain.MessageVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(msg.MediaURL))
		video.Caption = msg.Caption
		return video, nil

	case msg.Type == domain.MessageAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FileURL(msg.MediaURL))
		audio.Caption = msg.Caption
		return audio, nil

	case msg.Type == domain.MessageFile:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(msg.MediaURL))
		doc.Caption = msg.Caption
		return doc, nil

	case msg.Type == domain.MessageLocation:
		return tgbotapi.NewLocation(chatID, msg.Latitude, msg.Longitude), nil

	case msg.Type == domain.MessageContact:
		return tgbotapi.NewContact(chatID, msg.Phone, msg.Name), nil

	case msg.Type == domain.MessageInteractive:
		text := msg.Meta("text")
		if text == "" {
			text = "Please choose:"
		}
		out := tgbotapi.NewMessage(chatID, text)
		out.ReplyMarkup = telegramKeyboard(msg)
		return out, nil
	}

	return tgbotapi.NewMessage(chatID, fmt.Sprintf("Unsupported message type: %s", msg.Type)), nil
}

// telegramKeyboard renders buttons and quick replies as an inline keyboard,
// one row per button.
func telegramKeyboard(msg domain.Message) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, btn := range FormatButtons(msg.Buttons, domain.PlatformTelegram) {
		var kb tgbotapi.InlineKeyboardButton
		if btn.URL != "" {
			kb = tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL)
		} else {
			payload := btn.Payload
			if payload == "" {
				payload = btn.ID
			}
			kb = tgbotapi.NewInlineKeyboardButtonData(btn.Text, payload)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(kb))
	}
	for _, qr := range msg.QuickReplies {
		payload := qr.Payload
		if payload == "" {
			payload = qr.ID
		}
		text := TruncateLabel(qr.Text, domain.PlatformTelegram)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, payload)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// FromTelegramUpdate normalizes a Bot API update. Callback queries (inline
// button taps) normalize to text messages carrying the payload; service
// messages (joins, leaves) normalize to system events.
func FromTelegramUpdate(update tgbotapi.Update) (domain.Message, error) {
	if cb := update.CallbackQuery; cb != nil && cb.Message != nil {
		return domain.Message{
			ID:             cb.ID,
			Platform:       domain.PlatformTelegram,
			ConversationID: strconv.FormatInt(cb.Message.Chat.ID, 10),
			UserID:         strconv.FormatInt(cb.From.ID, 10),
			Type:           domain.MessageText,
			Role:           domain.RoleUser,
			Content:        cb.Data,
			Timestamp:      time.Now(),
			Metadata:       map[string]any{"callbackQuery": true, "payload": cb.Data},
		}, nil
	}

	tm := update.Message
	if tm == nil {
		return domain.Message{}, fmt.Errorf("telegram update: no message")
	}

	msg := domain.Message{
		ID:             strconv.Itoa(tm.MessageID),
		Platform:       domain.PlatformTelegram,
		ConversationID: strconv.FormatInt(tm.Chat.ID, 10),
		Role:           domain.RoleUser,
		Timestamp:      time.Unix(int64(tm.Date), 0).UTC(),
		Metadata:       map[string]any{},
	}
	if tm.From != nil {
		msg.UserID = strconv.FormatInt(tm.From.ID, 10)
		if tm.From.UserName != "" {
			msg.Metadata["username"] = tm.From.UserName
		}
		if tm.From.IsBot {
			msg.Role = domain.RoleAssistant
		}
	}

	switch {
	case len(tm.NewChatMembers) > 0:
		msg.Type = domain.MessageSystem
		msg.Event = domain.EventUserJoined
		msg.Content = "user joined"
	case tm.LeftChatMember != nil:
		msg.Type = domain.MessageSystem
		msg.Event = domain.EventUserLeft
		msg.Content = "user left"
	case len(tm.Photo) > 0:
		// Telegram sends multiple resolutions; the last is the largest.
		photo := tm.Photo[len(tm.Photo)-1]
		msg.Type = domain.MessageImage
		msg.MimeType = "image/jpeg"
		msg.MediaURL = telegramFileURL(photo.FileID)
		msg.Caption = tm.Caption
		msg.FileSize = int64(photo.FileSize)
		msg.Metadata["fileId"] = photo.FileID
	case tm.Video != nil:
		msg.Type = domain.MessageVideo
		msg.MimeType = tm.Video.MimeType
		msg.MediaURL = telegramFileURL(tm.Video.FileID)
		msg.Caption = tm.Caption
		msg.FileSize = int64(tm.Video.FileSize)
		msg.Metadata["fileId"] = tm.Video.FileID
	case tm.Voice != nil:
		msg.Type = domain.MessageAudio
		msg.MimeType = tm.Voice.MimeType
		msg.MediaURL = telegramFileURL(tm.Voice.FileID)
		msg.FileSize = int64(tm.Voice.FileSize)
		msg.Metadata["fileId"] = tm.Voice.FileID
	case tm.Audio != nil:
		msg.Type = domain.MessageAudio
		msg.MimeType = tm.Audio.MimeType
		msg.MediaURL = telegramFileURL(tm.Audio.FileID)
		msg.Caption = tm.Caption
		msg.FileSize = int64(tm.Audio.FileSize)
		msg.Metadata["fileId"] = tm.Audio.FileID
	case tm.Document != nil:
		msg.Type = domain.MessageFile
		msg.MimeType = tm.Document.MimeType
		msg.MediaURL = telegramFileURL(tm.Document.FileID)
		msg.Caption = tm.Caption
		msg.FileSize = int64(tm.Document.FileSize)
		msg.Metadata["fileId"] = tm.Document.FileID
		if tm.Document.FileName != "" {
			msg.Metadata["filename"] = tm.Document.FileName
		}
	case tm.Location != nil:
		msg.Type = domain.MessageLocation
		msg.Latitude = tm.Location.Latitude
		msg.Longitude = tm.Location.Longitude
	case tm.Contact != nil:
		msg.Type = domain.MessageContact
		msg.Name = tm.Contact.FirstName
		if tm.Contact.LastName != "" {
			msg.Name += " " + tm.Contact.LastName
		}
		msg.Phone = tm.Contact.PhoneNumber
	default:
		msg.Type = domain.MessageText
		msg.Content = tm.Text
	}

	return msg, nil
}

// telegramFileURL is a placeholder locator; resolving a file ID to a
// download URL requires a getFile round trip with the bot token.
func telegramFileURL(fileID string) string {
	return "https://api.telegram.org/file/" + fileID
}
