package bus

import (
	"testing"
	"time"

	"chatbridge/internal/domain"
)

func inboundMsg(platform domain.Platform, content string) domain.Message {
	return domain.Message{
		ID:             "m1",
		Platform:       platform,
		ConversationID: "c1",
		UserID:         "u1",
		Type:           domain.MessageText,
		Role:           domain.RoleUser,
		Content:        content,
		Timestamp:      time.Now(),
	}
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	b.Publish(inboundMsg(domain.PlatformSlack, "hello"))

	select {
	case got := <-b.Subscribe():
		if got.Content != "hello" || got.Platform != domain.PlatformSlack {
			t.Errorf("received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryBus_OutboundRouting(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	var slackGot, telegramGot string
	b.OnOutbound(domain.PlatformSlack, func(m domain.Message) { slackGot = m.Content })
	b.OnOutbound(domain.PlatformTelegram, func(m domain.Message) { telegramGot = m.Content })

	b.SendOutbound(inboundMsg(domain.PlatformSlack, "for slack"))

	if slackGot != "for slack" {
		t.Errorf("slack handler got %q", slackGot)
	}
	if telegramGot != "" {
		t.Errorf("telegram handler got %q, want untouched", telegramGot)
	}
}

func TestInMemoryBus_OutboundWithoutHandler(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	// Must not panic or block.
	b.SendOutbound(inboundMsg(domain.PlatformDiscord, "nobody home"))
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(10, testEBLogger())
	b.Close()

	// Must not panic on a closed channel.
	b.Publish(inboundMsg(domain.PlatformSlack, "late"))
}

func TestInMemoryBus_DefaultBuffer(t *testing.T) {
	b := New(0, testEBLogger())
	defer b.Close()
	if cap(b.inbound) != 100 {
		t.Errorf("default buffer = %d, want 100", cap(b.inbound))
	}
}
