package adapter

import (
	"testing"
	"time"

	"chatbridge/internal/domain"

	"github.com/bwmarrin/discordgo"
)

func TestFromDiscordMessageText(t *testing.T) {
	msg := FromDiscordMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "M1",
		ChannelID: "CH1",
		GuildID:   "G1",
		Content:   "hello",
		Timestamp: time.Unix(1690000000, 0),
		Author:    &discordgo.User{ID: "U1", Username: "ada"},
	}})
	if msg.Type != domain.MessageText || msg.Content != "hello" {
		t.Errorf("message = %+v", msg)
	}
	if msg.ConversationID != "CH1" || msg.UserID != "U1" {
		t.Errorf("identity = %s/%s", msg.ConversationID, msg.UserID)
	}
	if msg.Meta("guildId") != "G1" || msg.Meta("username") != "ada" {
		t.Errorf("metadata = %v", msg.Metadata)
	}
	if err := domain.ValidateMessage(&msg); err != nil {
		t.Errorf("normalized message invalid: %v", err)
	}
}

func TestFromDiscordMessageBotAuthor(t *testing.T) {
	msg := FromDiscordMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "M2",
		ChannelID: "CH1",
		Content:   "beep",
		Timestamp: time.Unix(1690000000, 0),
		Author:    &discordgo.User{ID: "B1", Bot: true},
	}})
	if msg.Role != domain.RoleAssistant {
		t.Errorf("role = %s, want assistant for bot author", msg.Role)
	}
}

func TestFromDiscordMessageAttachment(t *testing.T) {
	msg := FromDiscordMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "M3",
		ChannelID: "CH1",
		Content:   "see attached",
		Timestamp: time.Unix(1690000000, 0),
		Author:    &discordgo.User{ID: "U1"},
		Attachments: []*discordgo.MessageAttachment{{
			URL:         "https://cdn.example.com/clip.mp4",
			ContentType: "video/mp4",
			Filename:    "clip.mp4",
			Size:        4096,
		}},
	}})
	if msg.Type != domain.MessageVideo {
		t.Errorf("type = %s, want video", msg.Type)
	}
	if msg.MediaURL != "https://cdn.example.com/clip.mp4" || msg.Caption != "see attached" {
		t.Errorf("media = %q caption = %q", msg.MediaURL, msg.Caption)
	}
	if msg.FileSize != 4096 || msg.Meta("filename") != "clip.mp4" {
		t.Errorf("size/filename = %d/%q", msg.FileSize, msg.Meta("filename"))
	}
}

func TestToDiscordSendText(t *testing.T) {
	send := toDiscordSend(domain.Message{Type: domain.MessageText, Content: "plain"})
	if send.Content != "plain" || len(send.Components) != 0 {
		t.Errorf("send = %+v", send)
	}
}

func TestToDiscordSendMedia(t *testing.T) {
	send := toDiscordSend(domain.Message{
		Type:     domain.MessageImage,
		MediaURL: "https://example.com/a.png",
		Caption:  "a chart",
	})
	if len(send.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(send.Embeds))
	}
	embed := send.Embeds[0]
	if embed.Image == nil || embed.Image.URL != "https://example.com/a.png" {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Description != "a chart" {
		t.Errorf("description = %q", embed.Description)
	}
}

func TestToDiscordSendUnknownType(t *testing.T) {
	send := toDiscordSend(domain.Message{Type: "hologram"})
	if send.Content == "" {
		t.Error("unknown type should degrade to a text notice")
	}
}

func TestDiscordComponents(t *testing.T) {
	buttons := make([]domain.Button, 12)
	for i := range buttons {
		buttons[i] = domain.Button{ID: string(rune('a' + i)), Text: "Button"}
	}
	buttons[0].URL = "https://example.com"

	rows := discordComponents(domain.Message{Type: domain.MessageInteractive, Buttons: buttons})
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 12 buttons in rows of 5", len(rows))
	}
	first := rows[0].(discordgo.ActionsRow)
	if len(first.Components) != 5 {
		t.Errorf("first row = %d components", len(first.Components))
	}
	link := first.Components[0].(discordgo.Button)
	if link.Style != discordgo.LinkButton || link.URL != "https://example.com" {
		t.Errorf("link button = %+v", link)
	}
	data := first.Components[1].(discordgo.Button)
	if data.Style != discordgo.PrimaryButton || data.CustomID == "" {
		t.Errorf("data button = %+v", data)
	}
}
