package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatbridge/internal/domain"

	"github.com/slack-go/slack"
)

const (
	slackMaxMsgLen = 4000
	sendAttempts   = 3
	sendRetryDelay = time.Second
)

// Slack is the reference adapter: full inbound normalization, Block Kit
// outbound rendering, and REST operations via the Slack Web API.
type Slack struct {
	cfg    domain.PlatformConfig
	caps   domain.Capabilities
	api    *slack.Client
	logger *slog.Logger
}

// NewSlack builds a Slack adapter from a platform config carrying a
// "botToken" credential (and "signingSecret" for webhook verification,
// consumed by the webhook router).
func NewSlack(cfg domain.PlatformConfig, logger *slog.Logger) (*Slack, error) {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformSlack
	}
	if cfg.Platform != domain.PlatformSlack {
		return nil, fmt.Errorf("slack adapter: config is for platform %q", cfg.Platform)
	}
	token := cfg.Credential("botToken")
	if token == "" {
		return nil, fmt.Errorf("slack adapter: botToken credential is required")
	}
	return &Slack{
		cfg:    cfg,
		caps:   resolveCapabilities(cfg),
		api:    slack.New(token),
		logger: logger,
	}, nil
}

func (s *Slack) Platform() domain.Platform         { return domain.PlatformSlack }
func (s *Slack) Capabilities() domain.Capabilities { return s.caps }

// Send validates msg, converts it to a Slack payload, and posts it.
// Returns the message timestamp Slack assigned.
func (s *Slack) Send(ctx context.Context, msg domain.Message) (string, error) {
	if err := domain.ValidateMessage(&msg); err != nil {
		return "", err
	}
	if msg.Platform != domain.PlatformSlack {
		return "", fmt.Errorf("slack adapter: message platform %q", msg.Platform)
	}
	if msg.Type == domain.MessageInteractive && !s.caps.Buttons {
		return "", ErrUnsupported
	}

	opts := ToSlackOptions(msg)
	return s.postMessage(ctx, msg.ConversationID, opts)
}

// SendText posts a plain text message.
func (s *Slack) SendText(ctx context.Context, conversationID, text string) (string, error) {
	if conversationID == "" || text == "" {
		return "", fmt.Errorf("slack send: conversation and text are required")
	}
	var lastTS string
	for _, chunk := range splitMessage(FormatText(text, domain.PlatformSlack), slackMaxMsgLen) {
		ts, err := s.postMessage(ctx, conversationID, []slack.MsgOption{slack.MsgOptionText(chunk, false)})
		if err != nil {
			return "", err
		}
		lastTS = ts
	}
	return lastTS, nil
}

// SendBlocks posts a rich payload with a plain-text fallback.
func (s *Slack) SendBlocks(ctx context.Context, conversationID, fallback string, blocks []slack.Block) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("slack send: conversation is required")
	}
	if fallback == "" {
		fallback = "Interactive message"
	}
	return s.postMessage(ctx, conversationID, []slack.MsgOption{
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	})
}

func (s *Slack) postMessage(ctx context.Context, channel string, opts []slack.MsgOption) (string, error) {
	var ts string
	err := Retry(ctx, sendAttempts, sendRetryDelay, func() error {
		var postErr error
		_, ts, postErr = s.api.PostMessageContext(ctx, channel, opts...)
		return postErr
	})
	if err != nil {
		return "", &APIError{Platform: domain.PlatformSlack, Op: "chat.postMessage", Remote: err.Error()}
	}
	s.logger.Info("slack message sent", "channel", channel, "ts", ts)
	return ts, nil
}

// GetUser fetches a user profile via users.info.
func (s *Slack) GetUser(ctx context.Context, platformUserID string) (*domain.User, error) {
	if platformUserID == "" {
		return nil, fmt.Errorf("slack get user: user ID is required")
	}
	u, err := s.api.GetUserInfoContext(ctx, platformUserID)
	if err != nil {
		return nil, &APIError{Platform: domain.PlatformSlack, Op: "users.info", Remote: err.Error()}
	}
	s.logger.Info("slack user fetched", "user", u.ID)
	return &domain.User{
		ID:             u.ID,
		Platform:       domain.PlatformSlack,
		PlatformUserID: u.ID,
		Name:           firstNonEmpty(u.RealName, u.Name),
		Username:       u.Name,
		Email:          u.Profile.Email,
		AvatarURL:      u.Profile.Image192,
		IsBot:          u.IsBot,
		Timezone:       u.TZ,
		Metadata:       map[string]any{"teamId": u.TeamID},
		CreatedAt:      time.Now(),
	}, nil
}

// GetConversation fetches channel info via conversations.info.
func (s *Slack) GetConversation(ctx context.Context, platformConversationID string) (*domain.Conversation, error) {
	if platformConversationID == "" {
		return nil, fmt.Errorf("slack get conversation: channel ID is required")
	}
	ch, err := s.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: platformConversationID,
	})
	if err != nil {
		return nil, &APIError{Platform: domain.PlatformSlack, Op: "conversations.info", Remote: err.Error()}
	}
	title := ch.Name
	if ch.IsIM {
		title = "Direct Message"
	}
	s.logger.Info("slack conversation fetched", "channel", ch.ID)
	return &domain.Conversation{
		ID:                     ch.ID,
		Platform:               domain.PlatformSlack,
		PlatformConversationID: ch.ID,
		Title:                  title,
		Status:                 domain.ConversationActive,
		IsGroup:                !ch.IsIM,
		Metadata: map[string]any{
			"isChannel": ch.IsChannel,
			"isPrivate": ch.IsPrivate,
			"topic":     ch.Topic.Value,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// AuthTest verifies the bot token and returns the bot's user ID.
func (s *Slack) AuthTest(ctx context.Context) (string, error) {
	resp, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return "", &APIError{Platform: domain.PlatformSlack, Op: "auth.test", Remote: err.Error()}
	}
	s.logger.Info("slack auth ok", "team", resp.Team, "user", resp.User, "user_id", resp.UserID)
	return resp.UserID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
