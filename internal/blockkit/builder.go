// Package blockkit builds Slack Block Kit payloads through a fluent builder,
// clamping every element count and text length to the platform's documented
// limits so callers can never produce a payload the API rejects.
package blockkit

import (
	"github.com/slack-go/slack"
)

// Platform limits enforced by the builders.
const (
	MaxActionElements  = 5   // interactive elements per actions block
	MaxGroupOptions    = 10  // options in radio/checkbox groups
	MaxSelectOptions   = 100 // options in select menus
	MaxViewBlocks      = 100 // blocks per modal/home view
	MaxContextElements = 10  // elements per context block
	MaxSectionFields   = 10  // fields per section block
	HeaderTextLimit    = 150
	TitleTextLimit     = 24 // modal title/submit/close
	LabelTextLimit     = 75 // button and option labels
)

// Truncate clamps s to max runes, replacing the tail with "..." when it
// has to cut. Rune-counted so a clamp never splits a multi-byte character
// into invalid UTF-8.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// ButtonSpec describes one button for Buttons.
type ButtonSpec struct {
	Text     string
	ActionID string
	Value    string
	Style    slack.Style // optional: slack.StylePrimary / slack.StyleDanger
	URL      string
}

// OptionSpec describes one option for the select/radio/checkbox helpers.
type OptionSpec struct {
	Text        string
	Value       string
	Description string
}

// FieldSpec describes one title/value pair for Fields.
type FieldSpec struct {
	Title string
	Value string
}

// Builder accumulates an ordered block sequence. Every method returns the
// builder for chaining. Build is one-shot: it returns the accumulated blocks
// and resets internal state.
type Builder struct {
	blocks []slack.Block
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

// Section appends a mrkdwn section; accessory may be nil.
func (b *Builder) Section(text string, accessory *slack.Accessory) *Builder {
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, accessory))
	return b
}

// PlainTextSection appends a plain-text section; accessory may be nil.
func (b *Builder) PlainTextSection(text string, accessory *slack.Accessory) *Builder {
	b.blocks = append(b.blocks, slack.NewSectionBlock(plainText(text), nil, accessory))
	return b
}

// Divider appends a divider block.
func (b *Builder) Divider() *Builder {
	b.blocks = append(b.blocks, slack.NewDividerBlock())
	return b
}

// Header appends a header block, clamped to 150 characters.
func (b *Builder) Header(text string) *Builder {
	b.blocks = append(b.blocks, slack.NewHeaderBlock(plainText(Truncate(text, HeaderTextLimit))))
	return b
}

// Image appends an image block; title may be "".
func (b *Builder) Image(imageURL, altText, title string) *Builder {
	var titleObj *slack.TextBlockObject
	if title != "" {
		titleObj = plainText(title)
	}
	b.blocks = append(b.blocks, slack.NewImageBlock(imageURL, altText, "", titleObj))
	return b
}

// Actions appends an actions block with at most 5 elements.
func (b *Builder) Actions(elements ...slack.BlockElement) *Builder {
	if len(elements) > MaxActionElements {
		elements = elements[:MaxActionElements]
	}
	b.blocks = append(b.blocks, slack.NewActionBlock("", elements...))
	return b
}

// Buttons appends an actions block of buttons, clamped to 5 buttons with
// 75-character labels.
func (b *Builder) Buttons(buttons ...ButtonSpec) *Builder {
	if len(buttons) > MaxActionElements {
		buttons = buttons[:MaxActionElements]
	}
	elements := make([]slack.BlockElement, 0, len(buttons))
	for _, spec := range buttons {
		btn := slack.NewButtonBlockElement(spec.ActionID, spec.Value, plainText(Truncate(spec.Text, LabelTextLimit)))
		if spec.Style != "" {
			btn.Style = spec.Style
		}
		if spec.URL != "" {
			btn.URL = spec.URL
		}
		elements = append(elements, btn)
	}
	b.blocks = append(b.blocks, slack.NewActionBlock("", elements...))
	return b
}

func blockOptions(options []OptionSpec, max int) []*slack.OptionBlockObject {
	if len(options) > max {
		options = options[:max]
	}
	out := make([]*slack.OptionBlockObject, 0, len(options))
	for _, opt := range options {
		var desc *slack.TextBlockObject
		if opt.Description != "" {
			desc = plainText(Truncate(opt.Description, LabelTextLimit))
		}
		out = append(out, slack.NewOptionBlockObject(opt.Value, plainText(Truncate(opt.Text, LabelTextLimit)), desc))
	}
	return out
}

// StaticSelect appends a section whose accessory is a static select menu,
// clamped to 100 options.
func (b *Builder) StaticSelect(placeholder, actionID string, options []OptionSpec) *Builder {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plainText(placeholder), actionID,
		blockOptions(options, MaxSelectOptions)...)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(" "), nil, slack.NewAccessory(sel)))
	return b
}

// MultiStaticSelect appends a section with a multi static select accessory,
// clamped to 100 options.
func (b *Builder) MultiStaticSelect(text, placeholder, actionID string, options []OptionSpec) *Builder {
	sel := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic, plainText(placeholder), actionID,
		blockOptions(options, MaxSelectOptions)...)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(sel)))
	return b
}

// UserSelect appends a section with a users select accessory.
func (b *Builder) UserSelect(text, placeholder, actionID string) *Builder {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plainText(placeholder), actionID)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(sel)))
	return b
}

// ChannelSelect appends a section with a channels select accessory.
func (b *Builder) ChannelSelect(text, placeholder, actionID string) *Builder {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeChannels, plainText(placeholder), actionID)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(sel)))
	return b
}

// ConversationSelect appends a section with a conversations select accessory.
func (b *Builder) ConversationSelect(text, placeholder, actionID string) *Builder {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeConversations, plainText(placeholder), actionID)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(sel)))
	return b
}

// DatePicker appends a section with a datepicker accessory; initialDate is
// "YYYY-MM-DD" or "".
func (b *Builder) DatePicker(text, placeholder, actionID, initialDate string) *Builder {
	picker := slack.NewDatePickerBlockElement(actionID)
	picker.Placeholder = plainText(placeholder)
	if initialDate != "" {
		picker.InitialDate = initialDate
	}
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(picker)))
	return b
}

// PlainTextInput appends an input block with a plain-text element.
func (b *Builder) PlainTextInput(label, actionID, blockID, placeholder string, multiline bool) *Builder {
	var ph *slack.TextBlockObject
	if placeholder != "" {
		ph = plainText(placeholder)
	}
	input := slack.NewPlainTextInputBlockElement(ph, actionID)
	input.Multiline = multiline
	b.blocks = append(b.blocks, slack.NewInputBlock(blockID, plainText(label), nil, input))
	return b
}

// RadioButtons appends a section with a radio-button accessory, clamped to
// 10 options.
func (b *Builder) RadioButtons(text, actionID string, options []OptionSpec) *Builder {
	radio := slack.NewRadioButtonsBlockElement(actionID, blockOptions(options, MaxGroupOptions)...)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(radio)))
	return b
}

// Checkboxes appends a section with a checkbox-group accessory, clamped to
// 10 options.
func (b *Builder) Checkboxes(text, actionID string, options []OptionSpec) *Builder {
	boxes := slack.NewCheckboxGroupsBlockElement(actionID, blockOptions(options, MaxGroupOptions)...)
	b.blocks = append(b.blocks, slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(boxes)))
	return b
}

// Context appends a context block, clamped to 10 elements.
func (b *Builder) Context(elements ...slack.MixedElement) *Builder {
	if len(elements) > MaxContextElements {
		elements = elements[:MaxContextElements]
	}
	b.blocks = append(b.blocks, slack.NewContextBlock("", elements...))
	return b
}

// Fields appends a section of title/value field pairs, clamped to 10.
func (b *Builder) Fields(fields ...FieldSpec) *Builder {
	if len(fields) > MaxSectionFields {
		fields = fields[:MaxSectionFields]
	}
	objs := make([]*slack.TextBlockObject, 0, len(fields))
	for _, f := range fields {
		objs = append(objs, mrkdwn("*"+f.Title+"*\n"+f.Value))
	}
	b.blocks = append(b.blocks, slack.NewSectionBlock(nil, objs, nil))
	return b
}

// Add appends pre-built blocks unchanged.
func (b *Builder) Add(blocks ...slack.Block) *Builder {
	b.blocks = append(b.blocks, blocks...)
	return b
}

// Build returns the accumulated blocks and resets the builder. A second
// Build without intervening additions returns an empty sequence.
func (b *Builder) Build() []slack.Block {
	out := b.blocks
	b.blocks = nil
	return out
}

// Clear drops all accumulated blocks.
func (b *Builder) Clear() *Builder {
	b.blocks = nil
	return b
}

// Blocks returns a copy of the accumulated blocks without resetting.
func (b *Builder) Blocks() []slack.Block {
	out := make([]slack.Block, len(b.blocks))
	copy(out, b.blocks)
	return out
}

// Len returns the number of accumulated blocks.
func (b *Builder) Len() int { return len(b.blocks) }
