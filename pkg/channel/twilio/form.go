package twilio

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"mythbuster/pkg/bus"
)

// ChannelName identifies WhatsApp traffic in bus messages, events and logs.
const ChannelName = "whatsapp"

// AddressPrefix is the Twilio address scheme for WhatsApp numbers.
const AddressPrefix = "whatsapp:"

// Metadata keys copied from the webhook form onto inbound messages.
const (
	MetaAccountSIDKey       = "account_sid"
	MetaToKey               = "to"
	MetaProfileNameKey      = "profile_name"
	MetaWaIDKey             = "wa_id"
	MetaMediaContentTypeKey = "media_content_type"
)

// WebhookForm is the subset of Twilio's inbound message webhook the bot reads.
type WebhookForm struct {
	MessageSID        string
	AccountSID        string
	From              string
	To                string
	Body              string
	NumMedia          string
	MediaURL0         string
	MediaContentType0 string
	ProfileName       string
	WaID              string
}

// ParseWebhookForm reads a decoded form body. From is required because the
// reply is addressed to it; every other field may be empty.
func ParseWebhookForm(values url.Values) (WebhookForm, error) {
	form := WebhookForm{
		MessageSID:        strings.TrimSpace(values.Get("MessageSid")),
		AccountSID:        strings.TrimSpace(values.Get("AccountSid")),
		From:              strings.TrimSpace(values.Get("From")),
		To:                strings.TrimSpace(values.Get("To")),
		Body:              values.Get("Body"),
		NumMedia:          strings.TrimSpace(values.Get("NumMedia")),
		MediaURL0:         strings.TrimSpace(values.Get("MediaUrl0")),
		MediaContentType0: strings.TrimSpace(values.Get("MediaContentType0")),
		ProfileName:       strings.TrimSpace(values.Get("ProfileName")),
		WaID:              strings.TrimSpace(values.Get("WaId")),
	}

	if form.From == "" {
		return WebhookForm{}, errors.New("webhook form is missing From")
	}

	return form, nil
}

// SenderNumber is From without the whatsapp: prefix.
func (f WebhookForm) SenderNumber() string {
	return strings.TrimPrefix(f.From, AddressPrefix)
}

// HasMedia reports whether NumMedia parses to a count above zero. Missing or
// unparseable counts mean no media.
func (f WebhookForm) HasMedia() bool {
	count, err := strconv.Atoi(f.NumMedia)
	if err != nil {
		return false
	}

	return count > 0
}

// ToInbound converts the form into the pipeline's inbound record. ChatID keeps
// the prefixed address so replies go back on the same channel.
func (f WebhookForm) ToInbound() bus.InboundMessage {
	inbound := bus.InboundMessage{
		Channel:   ChannelName,
		MessageID: f.MessageSID,
		SenderID:  f.SenderNumber(),
		ChatID:    f.From,
		Content:   f.Body,
		HasMedia:  f.HasMedia(),
	}

	if f.MediaURL0 != "" {
		inbound.Media = []string{f.MediaURL0}
	}

	metadata := map[string]string{}
	setIfPresent(metadata, MetaAccountSIDKey, f.AccountSID)
	setIfPresent(metadata, MetaToKey, f.To)
	setIfPresent(metadata, MetaProfileNameKey, f.ProfileName)
	setIfPresent(metadata, MetaWaIDKey, f.WaID)
	setIfPresent(metadata, MetaMediaContentTypeKey, f.MediaContentType0)
	if len(metadata) > 0 {
		inbound.Metadata = metadata
	}

	return inbound
}

// WithPrefix adds the whatsapp: scheme to a number that lacks it.
func WithPrefix(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, AddressPrefix) {
		return number
	}

	return AddressPrefix + number
}

func setIfPresent(metadata map[string]string, key string, value string) {
	if value != "" {
		metadata[key] = value
	}
}
