package telegram

import (
	"testing"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/config"

	"github.com/mymmrac/telego"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil, nil); err == nil {
		t.Fatal("expected error for empty token")
	}

	adapter, err := NewAdapter(config.TelegramConfig{Token: "123:abc"}, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}
	if adapter.Name() != "telegram" {
		t.Fatalf("Name = %q, want telegram", adapter.Name())
	}
}

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if _, ok := allowed["456"]; !ok {
		t.Fatal("allowFromSet missing 456")
	}
}

func TestSenderAllowed(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}}
	if !adapter.senderAllowed("1") {
		t.Fatal("expected sender 1 to be allowed")
	}
	if adapter.senderAllowed("2") {
		t.Fatal("expected sender 2 to be denied")
	}

	adapter.allowFrom = nil
	if !adapter.senderAllowed("any") {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestInboundFromTextMessage(t *testing.T) {
	message := &telego.Message{
		MessageID: 7,
		From:      &telego.User{ID: 99},
		Chat:      telego.Chat{ID: 42},
		Text:      "  Vaccines cause autism ",
	}

	inbound, ok := inboundFromMessage(message, 1001)
	if !ok {
		t.Fatal("expected text message to be accepted")
	}
	if inbound.Channel != "telegram" || inbound.ChatID != "42" || inbound.SenderID != "99" || inbound.MessageID != "7" {
		t.Fatalf("inbound identity = %+v", inbound)
	}
	if inbound.Content != "Vaccines cause autism" {
		t.Fatalf("content = %q", inbound.Content)
	}
	if inbound.HasMedia {
		t.Fatal("expected no media")
	}
	if inbound.Metadata["update_id"] != "1001" {
		t.Fatalf("update_id = %q", inbound.Metadata["update_id"])
	}
}

func TestInboundFromMediaMessage(t *testing.T) {
	message := &telego.Message{
		From:    &telego.User{ID: 99},
		Chat:    telego.Chat{ID: 42},
		Photo:   []telego.PhotoSize{{FileID: "photo"}},
		Caption: "look at this",
	}

	inbound, ok := inboundFromMessage(message, 1)
	if !ok {
		t.Fatal("expected media message to be accepted")
	}
	if !inbound.HasMedia || inbound.Content != "look at this" {
		t.Fatalf("inbound = %+v", inbound)
	}

	message.Caption = ""
	if inbound, ok = inboundFromMessage(message, 1); !ok || inbound.Content != "" {
		t.Fatalf("expected captionless media to be accepted, got %+v/%v", inbound, ok)
	}
}

func TestInboundSkipsEmptyMessage(t *testing.T) {
	message := &telego.Message{From: &telego.User{ID: 1}, Chat: telego.Chat{ID: 1}, Text: "   "}
	if _, ok := inboundFromMessage(message, 1); ok {
		t.Fatal("expected empty message to be skipped")
	}
}

func TestReplyText(t *testing.T) {
	if got := replyText(bus.OutboundMessage{Content: " hi ", Error: "boom"}); got != "hi" {
		t.Fatalf("replyText content = %q", got)
	}
	if got := replyText(bus.OutboundMessage{Error: "boom"}); got != "boom" {
		t.Fatalf("replyText error = %q", got)
	}
	if got := replyText(bus.OutboundMessage{}); got != "" {
		t.Fatalf("replyText empty = %q", got)
	}
}
