package blockkit

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", 30)
	if got := Truncate(short, 75); got != short {
		t.Errorf("short label should be unmodified, got %q", got)
	}

	long := strings.Repeat("a", 100)
	got := Truncate(long, 75)
	if len(got) != 75 {
		t.Errorf("expected 75 chars, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-3:])
	}

	emoji := strings.Repeat("🎉", 40)
	got = Truncate(emoji, 24)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 24 {
		t.Errorf("expected 24 runes, got %d", n)
	}
}

func TestBuilder_ButtonsClamp(t *testing.T) {
	specs := make([]ButtonSpec, 8)
	for i := range specs {
		specs[i] = ButtonSpec{Text: "Go", ActionID: "a", Value: "v"}
	}

	blocks := New().Buttons(specs...).Build()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	actions, ok := blocks[0].(*slack.ActionBlock)
	if !ok {
		t.Fatalf("expected actions block, got %T", blocks[0])
	}
	if len(actions.Elements.ElementSet) != 5 {
		t.Errorf("expected 5 elements after clamp, got %d", len(actions.Elements.ElementSet))
	}
}

func TestBuilder_ButtonLabelTruncation(t *testing.T) {
	blocks := New().Buttons(ButtonSpec{Text: strings.Repeat("x", 100), ActionID: "a"}).Build()
	actions := blocks[0].(*slack.ActionBlock)
	btn := actions.Elements.ElementSet[0].(*slack.ButtonBlockElement)
	if len(btn.Text.Text) != 75 {
		t.Errorf("expected 75-char label, got %d", len(btn.Text.Text))
	}
	if !strings.HasSuffix(btn.Text.Text, "...") {
		t.Error("expected ellipsis marker at end of truncated label")
	}
}

func TestBuilder_BuildResets(t *testing.T) {
	b := New().Section("hello", nil).Divider()

	first := b.Build()
	if len(first) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(first))
	}
	if got := b.Blocks(); len(got) != 0 {
		t.Errorf("expected empty after build, got %d", len(got))
	}
	if second := b.Build(); len(second) != 0 {
		t.Errorf("second build should return empty, got %d", len(second))
	}
}

func TestBuilder_Clear(t *testing.T) {
	b := New().Header("title").Section("body", nil)
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("expected 0 after clear, got %d", b.Len())
	}
}

func TestBuilder_HeaderClamp(t *testing.T) {
	blocks := New().Header(strings.Repeat("h", 200)).Build()
	header := blocks[0].(*slack.HeaderBlock)
	if len(header.Text.Text) != HeaderTextLimit {
		t.Errorf("expected %d chars, got %d", HeaderTextLimit, len(header.Text.Text))
	}
}

func TestBuilder_StaticSelectOptionClamp(t *testing.T) {
	options := make([]OptionSpec, 120)
	for i := range options {
		options[i] = OptionSpec{Text: "opt", Value: "v"}
	}
	blocks := New().StaticSelect("Pick one", "select_1", options).Build()
	section := blocks[0].(*slack.SectionBlock)
	sel := section.Accessory.SelectElement
	if sel == nil {
		t.Fatal("expected select accessory")
	}
	if len(sel.Options) != MaxSelectOptions {
		t.Errorf("expected %d options, got %d", MaxSelectOptions, len(sel.Options))
	}
}

func TestBuilder_RadioClamp(t *testing.T) {
	options := make([]OptionSpec, 15)
	for i := range options {
		options[i] = OptionSpec{Text: "opt", Value: "v"}
	}
	blocks := New().RadioButtons("choose", "radio_1", options).Build()
	section := blocks[0].(*slack.SectionBlock)
	radio := section.Accessory.RadioButtonsElement
	if radio == nil {
		t.Fatal("expected radio accessory")
	}
	if len(radio.Options) != MaxGroupOptions {
		t.Errorf("expected %d options, got %d", MaxGroupOptions, len(radio.Options))
	}
}

func TestBuilder_FieldsClamp(t *testing.T) {
	fields := make([]FieldSpec, 12)
	for i := range fields {
		fields[i] = FieldSpec{Title: "t", Value: "v"}
	}
	blocks := New().Fields(fields...).Build()
	section := blocks[0].(*slack.SectionBlock)
	if len(section.Fields) != MaxSectionFields {
		t.Errorf("expected %d fields, got %d", MaxSectionFields, len(section.Fields))
	}
}

func TestModalBuilder_TitleClamp(t *testing.T) {
	view := NewModal().
		Title(strings.Repeat("t", 40)).
		Submit("OK").
		Close("Cancel").
		Blocks(New().Section("body", nil).Build()...).
		Build()

	if len(view.Title.Text) != TitleTextLimit {
		t.Errorf("expected %d-char title, got %d", TitleTextLimit, len(view.Title.Text))
	}
	if view.Type != slack.VTModal {
		t.Errorf("expected modal type, got %s", view.Type)
	}
	if len(view.Blocks.BlockSet) != 1 {
		t.Errorf("expected 1 block, got %d", len(view.Blocks.BlockSet))
	}
}

func TestModalBuilder_BlockCap(t *testing.T) {
	b := New()
	for i := 0; i < 120; i++ {
		b.Divider()
	}
	view := NewModal().Title("t").Blocks(b.Build()...).Build()
	if len(view.Blocks.BlockSet) != MaxViewBlocks {
		t.Errorf("expected %d blocks, got %d", MaxViewBlocks, len(view.Blocks.BlockSet))
	}
}

func TestHomeBuilder_AddBlocksCap(t *testing.T) {
	h := NewHome()
	b := New()
	for i := 0; i < 60; i++ {
		b.Divider()
	}
	h.AddBlocks(b.Build()...)
	b2 := New()
	for i := 0; i < 60; i++ {
		b2.Divider()
	}
	h.AddBlocks(b2.Build()...)

	view := h.Build()
	if len(view.Blocks.BlockSet) != MaxViewBlocks {
		t.Errorf("expected %d blocks, got %d", MaxViewBlocks, len(view.Blocks.BlockSet))
	}
	if view.Type != slack.VTHomeTab {
		t.Errorf("expected home type, got %s", view.Type)
	}
}
