package adapter

import (
	"fmt"

	"chatbridge/internal/blockkit"
	"chatbridge/internal/domain"

	"github.com/slack-go/slack"
)

// ToSlackOptions converts a canonical message into chat.postMessage options.
// Types the Block Kit surface cannot express degrade to text rather than
// failing: media becomes a caption line, unknown types become a notice.
func ToSlackOptions(msg domain.Message) []slack.MsgOption {
	var opts []slack.MsgOption

	switch {
	case msg.Type == domain.MessageText:
		opts = append(opts, slack.MsgOptionText(FormatText(msg.Content, domain.PlatformSlack), false))
		if msg.Meta("unfurlLinks") == "false" {
			opts = append(opts, slack.MsgOptionDisableLinkUnfurl())
		}
		if msg.Meta("unfurlMedia") == "false" {
			opts = append(opts, slack.MsgOptionDisableMediaUnfurl())
		}

	case msg.Type == domain.MessageInteractive:
		fallback := msg.Meta("fallbackText")
		if fallback == "" {
			fallback = "Interactive message"
		}
		opts = append(opts,
			slack.MsgOptionText(fallback, false),
			slack.MsgOptionBlocks(InteractiveBlocks(msg)...),
		)

	case msg.Type.Media():
		opts = append(opts, slack.MsgOptionText(mediaFallbackText(msg), false))

	default:
		opts = append(opts, slack.MsgOptionText(
			fmt.Sprintf("Unsupported message type: %s", msg.Type), false))
	}

	if threadTS := msg.Meta("threadTs"); threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	return opts
}

// InteractiveBlocks renders the interactive variant's buttons, quick replies
// and carousel into Block Kit blocks, with all platform limits applied by
// the builder.
func InteractiveBlocks(msg domain.Message) []slack.Block {
	b := blockkit.New()

	if text := msg.Meta("text"); text != "" {
		b.Section(FormatText(text, domain.PlatformSlack), nil)
	}

	if len(msg.Buttons) > 0 {
		specs := make([]blockkit.ButtonSpec, 0, len(msg.Buttons))
		for _, btn := range msg.Buttons {
			specs = append(specs, blockkit.ButtonSpec{
				Text:     btn.Text,
				ActionID: btn.ID,
				Value:    btn.Payload,
				URL:      btn.URL,
			})
		}
		b.Buttons(specs...)
	}

	if len(msg.QuickReplies) > 0 {
		options := make([]blockkit.OptionSpec, 0, len(msg.QuickReplies))
		for _, qr := range msg.QuickReplies {
			value := qr.Payload
			if value == "" {
				value = qr.ID
			}
			options = append(options, blockkit.OptionSpec{Text: qr.Text, Value: value})
		}
		b.StaticSelect("Choose an option", "quick_reply_select", options)
	}

	for i, item := range msg.Carousel {
		if i > 0 {
			b.Divider()
		}
		text := "*" + item.Title + "*"
		if item.Subtitle != "" {
			text += "\n" + item.Subtitle
		}
		var accessory *slack.Accessory
		if item.ImageURL != "" {
			accessory = slack.NewAccessory(slack.NewImageBlockElement(item.ImageURL, item.Title))
		}
		b.Section(text, accessory)
		if len(item.Buttons) > 0 {
			specs := make([]blockkit.ButtonSpec, 0, len(item.Buttons))
			for _, btn := range item.Buttons {
				specs = append(specs, blockkit.ButtonSpec{
					Text:     btn.Text,
					ActionID: btn.ID,
					Value:    btn.Payload,
					URL:      btn.URL,
				})
			}
			b.Buttons(specs...)
		}
	}

	return b.Build()
}

// mediaFallbackText renders a media message as the caption plus the URL.
// Uploading the file on the sender's behalf is out of scope here; the link
// unfurls client-side.
func mediaFallbackText(msg domain.Message) string {
	label := msg.Caption
	if label == "" {
		label = fmt.Sprintf("%s file", msg.Type)
	}
	if msg.MediaURL != "" {
		return fmt.Sprintf("%s\n%s", label, msg.MediaURL)
	}
	return label
}
