package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/channel"
	"mythbuster/pkg/compose"

	"github.com/gorilla/mux"
)

const (
	WebhookPath = "/webhook/whatsapp"
	StatusPath  = "/webhook/status"

	defaultSendTimeout = 15 * time.Second
	maxFormBytes       = 64 << 10
)

// Webhook receives Twilio WhatsApp webhooks and replies through a Sender.
type Webhook struct {
	sender      channel.Sender
	events      bus.Publisher
	log         *slog.Logger
	sendTimeout time.Duration
}

// NewWebhook builds the WhatsApp webhook channel. The publisher is optional.
func NewWebhook(sender channel.Sender, events bus.Publisher, log *slog.Logger) (*Webhook, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Webhook{
		sender:      sender,
		events:      events,
		log:         log.With("component", "channel.twilio"),
		sendTimeout: defaultSendTimeout,
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (w *Webhook) Name() string {
	return ChannelName
}

// RegisterRoutes mounts the webhook and its status endpoints.
func (w *Webhook) RegisterRoutes(router *mux.Router, handler channel.Handler) {
	router.HandleFunc(WebhookPath, w.inboundHandler(handler)).Methods(http.MethodPost)
	router.HandleFunc(WebhookPath, w.handleVerify).Methods(http.MethodGet)
	router.HandleFunc(StatusPath, w.handleStatus).Methods(http.MethodGet)
}

// inboundHandler acknowledges every well-formed webhook with an empty 200 so
// Twilio never retries, whatever happens to the reply.
func (w *Webhook) inboundHandler(handler channel.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(rw, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			w.log.Warn("Rejected malformed webhook", "error", err)
			http.Error(rw, "malformed form body", http.StatusBadRequest)
			return
		}

		form, err := ParseWebhookForm(r.PostForm)
		if err != nil {
			w.log.Warn("Rejected webhook", "error", err)
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithoutCancel(r.Context())
		w.process(ctx, handler, form)

		rw.WriteHeader(http.StatusOK)
	}
}

// process runs the pipeline and delivers its reply. A panic anywhere here
// triggers a best-effort apology whose own failure is swallowed.
func (w *Webhook) process(ctx context.Context, handler channel.Handler, form WebhookForm) {
	inbound := form.ToInbound()
	log := w.log.With("message_sid", form.MessageSID, "from", form.From)

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("Webhook processing failed", "panic", fmt.Sprint(recovered))
			reply := bus.OutboundMessage{
				Channel: ChannelName,
				ChatID:  form.From,
				Content: compose.Apology(),
				Kind:    bus.MessageKindText,
				ReplyTo: form.MessageSID,
			}
			w.deliver(ctx, reply)
		}
	}()

	log.Info("Received webhook", "has_media", inbound.HasMedia, "content", inbound.Content)

	reply, err := handler(ctx, inbound)
	if err != nil {
		log.Error("Pipeline returned an error", "error", err)
	}
	if strings.TrimSpace(reply.Content) == "" {
		reply.Content = compose.Apology()
	}
	if reply.ChatID == "" {
		reply.ChatID = form.From
	}
	if reply.Channel == "" {
		reply.Channel = ChannelName
	}

	w.deliver(ctx, reply)
}

// deliver sends one reply and records the result. Delivery failures are
// logged, published and never retried.
func (w *Webhook) deliver(ctx context.Context, reply bus.OutboundMessage) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("sender panic: %v", recovered)
			}
		}()
		return w.sender.Send(sendCtx, reply.ChatID, reply.Content)
	}()

	if err != nil {
		w.log.Error("Failed to send response", "to", reply.ChatID, "error", err)
	} else {
		w.log.Info("Successfully sent response", "to", reply.ChatID)
	}

	channel.PublishDelivery(ctx, w.events, reply, err)
}

func (w *Webhook) handleVerify(rw http.ResponseWriter, _ *http.Request) {
	w.writeJSON(rw, map[string]string{"message": "WhatsApp webhook endpoint is active"})
}

func (w *Webhook) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	w.writeJSON(rw, map[string]any{
		"status":  "active",
		"service": "whatsapp-webhook",
		"endpoints": map[string]string{
			"webhook": WebhookPath,
			"status":  StatusPath,
		},
	})
}

func (w *Webhook) writeJSON(rw http.ResponseWriter, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(rw).Encode(payload); err != nil {
		w.log.Error("Failed to write response", "error", err)
	}
}
