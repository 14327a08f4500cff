package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"chatbridge/internal/domain"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// SlackEvent is the inner event of an Events API callback. Only the fields
// the normalizer reads are declared; everything else in the payload is
// ignored on decode.
type SlackEvent struct {
	Type        string       `json:"type"`
	SubType     string       `json:"subtype,omitempty"`
	User        string       `json:"user,omitempty"`
	BotID       string       `json:"bot_id,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	ChannelType string       `json:"channel_type,omitempty"`
	Text        string       `json:"text,omitempty"`
	TS          string       `json:"ts,omitempty"`
	EventTS     string       `json:"event_ts,omitempty"`
	ThreadTS    string       `json:"thread_ts,omitempty"`
	Team        string       `json:"team,omitempty"`
	AppID       string       `json:"app_id,omitempty"`
	Files       []slack.File `json:"files,omitempty"`
	Blocks      slack.Blocks `json:"blocks,omitempty"`
}

// slackSystemEvents maps message subtypes to canonical system events.
// Subtypes outside this table normalize to EventUnknown rather than being
// dropped, so callers can still observe them.
var slackSystemEvents = map[string]domain.SystemEvent{
	"channel_join":    domain.EventUserJoined,
	"group_join":      domain.EventUserJoined,
	"channel_leave":   domain.EventUserLeft,
	"group_leave":     domain.EventUserLeft,
	"channel_topic":   domain.EventConversationStarted,
	"channel_purpose": domain.EventConversationStarted,
	"group_topic":     domain.EventConversationStarted,
	"group_purpose":   domain.EventConversationStarted,
	"channel_archive": domain.EventConversationEnded,
	"group_archive":   domain.EventConversationEnded,
}

var (
	slackUserMention    = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)
	slackChannelMention = regexp.MustCompile(`<#([A-Z0-9]+)(?:\|[^>]*)?>`)
)

// FromSlackEvent normalizes an Events API message event. Precedence for
// variant selection: subtype (system), file attachment (media), interactive
// blocks, then plain text.
func FromSlackEvent(ev *SlackEvent) (domain.Message, error) {
	if ev == nil {
		return domain.Message{}, fmt.Errorf("slack event: nil event")
	}
	if ev.Channel == "" {
		return domain.Message{}, fmt.Errorf("slack event: missing channel")
	}

	msg := domain.Message{
		ID:             ev.TS,
		Platform:       domain.PlatformSlack,
		ConversationID: ev.Channel,
		UserID:         ev.User,
		Role:           domain.RoleUser,
		Timestamp:      parseSlackTimestamp(ev.TS),
		Metadata:       map[string]any{},
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if ev.BotID != "" {
		msg.Role = domain.RoleAssistant
		msg.Metadata["botId"] = ev.BotID
		if msg.UserID == "" {
			msg.UserID = ev.BotID
		}
	}
	if ev.ThreadTS != "" {
		msg.Metadata["threadTs"] = ev.ThreadTS
	}
	if ev.Team != "" {
		msg.Metadata["teamId"] = ev.Team
	}
	if ev.ChannelType != "" {
		msg.Metadata["channelType"] = ev.ChannelType
	}
	if ev.AppID != "" {
		msg.Metadata["appId"] = ev.AppID
	}

	switch {
	case ev.SubType != "" && ev.SubType != "file_share" && ev.SubType != "thread_broadcast":
		msg.Type = domain.MessageSystem
		msg.Event = domain.EventUnknown
		if mapped, ok := slackSystemEvents[ev.SubType]; ok {
			msg.Event = mapped
		}
		msg.Content = ev.Text
		if msg.Content == "" {
			msg.Content = ev.SubType + " event"
		}
		msg.Metadata["subtype"] = ev.SubType

	case len(ev.Files) > 0:
		f := ev.Files[0]
		msg.Type = domain.MediaTypeFromMime(f.Mimetype)
		msg.MediaURL = f.URLPrivate
		msg.MimeType = f.Mimetype
		msg.Caption = ev.Text
		msg.FileSize = int64(f.Size)
		msg.Metadata["fileId"] = f.ID
		if f.Name != "" {
			msg.Metadata["filename"] = f.Name
		}
		if f.Permalink != "" {
			msg.Metadata["permalink"] = f.Permalink
		}

	case hasInteractiveBlocks(ev.Blocks):
		msg.Type = domain.MessageInteractive
		msg.Buttons = extractButtons(ev.Blocks)
		msg.QuickReplies = extractQuickReplies(ev.Blocks)
		if ev.Text != "" {
			msg.Metadata["fallbackText"] = ev.Text
		}

	default:
		msg.Type = domain.MessageText
		msg.Content = ev.Text
		if mentions := Mentions(ev.Text); len(mentions) > 0 {
			msg.Metadata["mentions"] = mentions
		}
		if channels := ChannelMentions(ev.Text); len(channels) > 0 {
			msg.Metadata["channelMentions"] = channels
		}
	}

	return msg, nil
}

// hasInteractiveBlocks reports whether the blocks carry anything beyond
// plain rich text, meaning the message should normalize as interactive.
func hasInteractiveBlocks(blocks slack.Blocks) bool {
	for _, b := range blocks.BlockSet {
		switch blk := b.(type) {
		case *slack.ActionBlock:
			return true
		case *slack.SectionBlock:
			if blk.Accessory != nil {
				return true
			}
		}
	}
	return false
}

func extractButtons(blocks slack.Blocks) []domain.Button {
	var buttons []domain.Button
	for _, b := range blocks.BlockSet {
		ab, ok := b.(*slack.ActionBlock)
		if !ok || ab.Elements == nil {
			continue
		}
		for _, el := range ab.Elements.ElementSet {
			btn, ok := el.(*slack.ButtonBlockElement)
			if !ok {
				continue
			}
			out := domain.Button{ID: btn.ActionID, Payload: btn.Value, URL: btn.URL}
			if btn.Text != nil {
				out.Text = btn.Text.Text
			}
			if out.Text == "" {
				out.Text = "Button"
			}
			buttons = append(buttons, out)
		}
	}
	return buttons
}

func extractQuickReplies(blocks slack.Blocks) []domain.QuickReply {
	var replies []domain.QuickReply
	for _, b := range blocks.BlockSet {
		sb, ok := b.(*slack.SectionBlock)
		if !ok || sb.Accessory == nil || sb.Accessory.SelectElement == nil {
			continue
		}
		sel := sb.Accessory.SelectElement
		if sel.Type != slack.OptTypeStatic {
			continue
		}
		for _, opt := range sel.Options {
			qr := domain.QuickReply{ID: opt.Value, Payload: opt.Value}
			if opt.Text != nil {
				qr.Text = opt.Text.Text
			}
			replies = append(replies, qr)
		}
	}
	return replies
}

// Mentions extracts user IDs referenced as <@U123> in Slack message text.
func Mentions(text string) []string {
	return mentionIDs(slackUserMention, text)
}

// ChannelMentions extracts channel IDs referenced as <#C123|name>.
func ChannelMentions(text string) []string {
	return mentionIDs(slackChannelMention, text)
}

func mentionIDs(re *regexp.Regexp, text string) []string {
	var ids []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// parseSlackTimestamp converts a Slack "seconds.fraction" timestamp to a
// time, falling back to the current time when it does not parse.
func parseSlackTimestamp(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || f <= 0 {
		return time.Now()
	}
	return time.UnixMilli(int64(f * 1000)).UTC()
}
