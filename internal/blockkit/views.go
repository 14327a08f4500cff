package blockkit

import "github.com/slack-go/slack"

// ModalBuilder assembles a modal view request. Title, submit, and close
// labels are clamped to 24 characters; the view holds at most 100 blocks.
type ModalBuilder struct {
	view slack.ModalViewRequest
}

// NewModal returns an empty modal builder.
func NewModal() *ModalBuilder {
	return &ModalBuilder{view: slack.ModalViewRequest{Type: slack.VTModal}}
}

func (m *ModalBuilder) Title(text string) *ModalBuilder {
	m.view.Title = plainText(Truncate(text, TitleTextLimit))
	return m
}

func (m *ModalBuilder) Submit(text string) *ModalBuilder {
	m.view.Submit = plainText(Truncate(text, TitleTextLimit))
	return m
}

func (m *ModalBuilder) Close(text string) *ModalBuilder {
	m.view.Close = plainText(Truncate(text, TitleTextLimit))
	return m
}

func (m *ModalBuilder) CallbackID(id string) *ModalBuilder {
	m.view.CallbackID = id
	return m
}

func (m *ModalBuilder) PrivateMetadata(data string) *ModalBuilder {
	m.view.PrivateMetadata = data
	return m
}

func (m *ModalBuilder) ClearOnClose(clear bool) *ModalBuilder {
	m.view.ClearOnClose = clear
	return m
}

func (m *ModalBuilder) NotifyOnClose(notify bool) *ModalBuilder {
	m.view.NotifyOnClose = notify
	return m
}

// Blocks replaces the view's blocks, clamped to 100.
func (m *ModalBuilder) Blocks(blocks ...slack.Block) *ModalBuilder {
	if len(blocks) > MaxViewBlocks {
		blocks = blocks[:MaxViewBlocks]
	}
	m.view.Blocks = slack.Blocks{BlockSet: blocks}
	return m
}

// AddBlocks appends blocks, keeping the view within the 100-block cap.
func (m *ModalBuilder) AddBlocks(blocks ...slack.Block) *ModalBuilder {
	combined := append(m.view.Blocks.BlockSet, blocks...)
	if len(combined) > MaxViewBlocks {
		combined = combined[:MaxViewBlocks]
	}
	m.view.Blocks = slack.Blocks{BlockSet: combined}
	return m
}

// Build returns the view request.
func (m *ModalBuilder) Build() slack.ModalViewRequest {
	return m.view
}

// HomeBuilder assembles an App Home view, capped at 100 blocks.
type HomeBuilder struct {
	view slack.HomeTabViewRequest
}

// NewHome returns an empty home-tab builder.
func NewHome() *HomeBuilder {
	return &HomeBuilder{view: slack.HomeTabViewRequest{Type: slack.VTHomeTab}}
}

func (h *HomeBuilder) CallbackID(id string) *HomeBuilder {
	h.view.CallbackID = id
	return h
}

func (h *HomeBuilder) ExternalID(id string) *HomeBuilder {
	h.view.ExternalID = id
	return h
}

func (h *HomeBuilder) PrivateMetadata(data string) *HomeBuilder {
	h.view.PrivateMetadata = data
	return h
}

// Blocks replaces the view's blocks, clamped to 100.
func (h *HomeBuilder) Blocks(blocks ...slack.Block) *HomeBuilder {
	if len(blocks) > MaxViewBlocks {
		blocks = blocks[:MaxViewBlocks]
	}
	h.view.Blocks = slack.Blocks{BlockSet: blocks}
	return h
}

// AddBlocks appends blocks, keeping the view within the 100-block cap.
func (h *HomeBuilder) AddBlocks(blocks ...slack.Block) *HomeBuilder {
	combined := append(h.view.Blocks.BlockSet, blocks...)
	if len(combined) > MaxViewBlocks {
		combined = combined[:MaxViewBlocks]
	}
	h.view.Blocks = slack.Blocks{BlockSet: combined}
	return h
}

// Build returns the view request.
func (h *HomeBuilder) Build() slack.HomeTabViewRequest {
	return h.view
}
