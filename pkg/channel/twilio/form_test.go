package twilio

import (
	"net/url"
	"testing"
)

func TestParseWebhookForm(t *testing.T) {
	t.Parallel()

	values := url.Values{
		"MessageSid":        {"SM1"},
		"AccountSid":        {"AC1"},
		"From":              {"whatsapp:+15550001"},
		"To":                {"whatsapp:+14155238886"},
		"Body":              {"  Vaccines cause autism  "},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/1"},
		"MediaContentType0": {"image/jpeg"},
		"ProfileName":       {"Ada"},
		"WaId":              {"15550001"},
	}

	form, err := ParseWebhookForm(values)
	if err != nil {
		t.Fatalf("ParseWebhookForm error: %v", err)
	}

	if got := form.SenderNumber(); got != "+15550001" {
		t.Fatalf("SenderNumber = %q, want +15550001", got)
	}
	if !form.HasMedia() {
		t.Fatal("expected HasMedia")
	}

	inbound := form.ToInbound()
	if inbound.Channel != ChannelName || inbound.MessageID != "SM1" {
		t.Fatalf("inbound identity = %q/%q", inbound.Channel, inbound.MessageID)
	}
	if inbound.SenderID != "+15550001" || inbound.ChatID != "whatsapp:+15550001" {
		t.Fatalf("inbound addressing = %q/%q", inbound.SenderID, inbound.ChatID)
	}
	if inbound.Content != "  Vaccines cause autism  " {
		t.Fatalf("inbound content = %q, want body unchanged", inbound.Content)
	}
	if !inbound.HasMedia || len(inbound.Media) != 1 {
		t.Fatalf("inbound media = %v/%v", inbound.HasMedia, inbound.Media)
	}
	if inbound.Metadata[MetaProfileNameKey] != "Ada" || inbound.Metadata[MetaMediaContentTypeKey] != "image/jpeg" {
		t.Fatalf("inbound metadata = %#v", inbound.Metadata)
	}
}

func TestParseWebhookFormRequiresFrom(t *testing.T) {
	t.Parallel()

	if _, err := ParseWebhookForm(url.Values{"Body": {"hi"}}); err == nil {
		t.Fatal("expected error without From")
	}
}

func TestHasMedia(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":    false,
		"0":   false,
		"1":   true,
		"3":   true,
		"-1":  false,
		"two": false,
	}

	for numMedia, want := range tests {
		if got := (WebhookForm{NumMedia: numMedia}).HasMedia(); got != want {
			t.Fatalf("HasMedia(%q) = %v, want %v", numMedia, got, want)
		}
	}
}

func TestSenderNumberWithoutPrefix(t *testing.T) {
	t.Parallel()

	if got := (WebhookForm{From: "+15550001"}).SenderNumber(); got != "+15550001" {
		t.Fatalf("SenderNumber = %q", got)
	}
}

func TestWithPrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"+15550001":          "whatsapp:+15550001",
		" +15550001 ":        "whatsapp:+15550001",
		"whatsapp:+15550001": "whatsapp:+15550001",
		"":                   "",
	}

	for in, want := range tests {
		if got := WithPrefix(in); got != want {
			t.Fatalf("WithPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
