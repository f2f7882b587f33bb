package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

const inboundTimeout = 10 * time.Second

type turnPublisher interface {
	EnqueueTurn(ctx context.Context, jobID string, req conversation.TurnRequest, opts ...conversation.PublishOption) error
}

// Adapter is the WhatsApp channel adapter. It turns inbound webhook
// messages into queued turns and delivers turn results back through
// the Cloud API.
type Adapter struct {
	client    *Client
	webhook   *WebhookHandler
	publisher turnPublisher
	logger    *logging.Logger
}

// NewAdapter creates a WhatsApp adapter. publisher enqueues inbound
// turns; replies come back through SendReply via the worker.
func NewAdapter(accessToken, phoneNumberID, appSecret, verifyToken string, publisher turnPublisher, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{
		client:    NewClient(accessToken, phoneNumberID),
		publisher: publisher,
		logger:    logger,
	}
	a.webhook = NewWebhookHandler(verifyToken, appSecret, a.onInbound)
	return a
}

// Client exposes the underlying Cloud API client for test overrides.
func (a *Adapter) Client() *Client {
	return a.client
}

// SessionID builds the session key for a customer phone number.
func SessionID(phone string) string {
	return "whatsapp:" + phone
}

// HandleVerification handles GET /webhooks/whatsapp (Meta challenge).
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/whatsapp (inbound messages).
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

func (a *Adapter) onInbound(msg ParsedInboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	if msg.MessageID != "" {
		if err := a.client.MarkRead(ctx, msg.MessageID); err != nil {
			a.logger.Warn("whatsapp: failed to mark message read",
				"message_id", msg.MessageID,
				"error", err,
			)
		}
	}

	if msg.Text == "" {
		return
	}

	req := conversation.TurnRequest{
		SessionID: SessionID(msg.From),
		Channel:   conversation.ChannelWhatsApp,
		UserID:    msg.From,
		Message:   msg.Text,
	}
	if a.publisher == nil {
		a.logger.Warn("whatsapp: inbound message dropped, no publisher configured",
			"session_id", req.SessionID,
		)
		return
	}
	if err := a.publisher.EnqueueTurn(ctx, "", req, conversation.WithoutJobTracking()); err != nil {
		a.logger.Error("whatsapp: failed to enqueue inbound turn",
			"session_id", req.SessionID,
			"error", err,
		)
		return
	}

	a.logger.Info("whatsapp: inbound message enqueued",
		"session_id", req.SessionID,
		"is_interactive", msg.IsInteractive,
	)
}

// SendReply delivers one turn result to the customer: each bubble as a
// text message, then each product card as an image with caption.
func (a *Adapter) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	for _, bubble := range reply.Bubbles {
		if bubble == "" {
			continue
		}
		if _, err := a.client.SendTextMessage(ctx, reply.Recipient, bubble); err != nil {
			return fmt.Errorf("whatsapp: deliver bubble: %w", err)
		}
	}

	for _, card := range reply.Products {
		caption := fmt.Sprintf("%s - %s", card.Name, card.PriceLabel)
		if card.ImageURL == "" {
			if _, err := a.client.SendTextMessage(ctx, reply.Recipient, caption); err != nil {
				return fmt.Errorf("whatsapp: deliver product card: %w", err)
			}
			continue
		}
		if _, err := a.client.SendImageMessage(ctx, reply.Recipient, card.ImageURL, caption); err != nil {
			return fmt.Errorf("whatsapp: deliver product card: %w", err)
		}
	}

	return nil
}

var _ conversation.ReplyMessenger = (*Adapter)(nil)
