package instagram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

const inboundTimeout = 10 * time.Second

// Postback payloads attached to product card buttons.
const (
	postbackViewPrefix = "VER_PRODUCTO_"
	postbackBuyPrefix  = "COMPRAR_"
)

type turnPublisher interface {
	EnqueueTurn(ctx context.Context, jobID string, req conversation.TurnRequest, opts ...conversation.PublishOption) error
}

// Adapter is the Instagram DM channel adapter. Inbound DMs become
// queued turns; turn results are delivered back over the Graph API.
type Adapter struct {
	client    *Client
	webhook   *WebhookHandler
	publisher turnPublisher
	logger    *logging.Logger
}

// NewAdapter creates a new Instagram DM adapter.
func NewAdapter(pageAccessToken, appSecret, verifyToken string, publisher turnPublisher, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{
		client:    NewClient(pageAccessToken),
		publisher: publisher,
		logger:    logger,
	}
	a.webhook = NewWebhookHandler(verifyToken, appSecret, a.onInbound)
	return a
}

// Client exposes the underlying Graph API client for test overrides.
func (a *Adapter) Client() *Client {
	return a.client
}

// SessionID builds the session key for an Instagram-scoped user id.
func SessionID(psid string) string {
	return "instagram:" + psid
}

// HandleVerification handles GET /webhooks/instagram (Meta challenge).
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/instagram (inbound messages).
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

func (a *Adapter) onInbound(msg ParsedInboundMessage) {
	text := msg.Text
	if msg.IsPostback {
		text = postbackMessage(msg.PostbackPayload, msg.Text)
	}
	if text == "" {
		return
	}

	req := conversation.TurnRequest{
		SessionID: SessionID(msg.SenderID),
		Channel:   conversation.ChannelInstagram,
		UserID:    msg.SenderID,
		Message:   text,
	}
	if a.publisher == nil {
		a.logger.Warn("instagram: inbound message dropped, no publisher configured",
			"session_id", req.SessionID,
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	if err := a.publisher.EnqueueTurn(ctx, "", req, conversation.WithoutJobTracking()); err != nil {
		a.logger.Error("instagram: failed to enqueue inbound turn",
			"session_id", req.SessionID,
			"error", err,
		)
		return
	}

	a.logger.Info("instagram: inbound message enqueued",
		"session_id", req.SessionID,
		"is_postback", msg.IsPostback,
	)
}

// postbackMessage converts a product button tap into the message a
// customer would have typed.
func postbackMessage(payload, title string) string {
	switch {
	case strings.HasPrefix(payload, postbackViewPrefix):
		id := strings.TrimPrefix(payload, postbackViewPrefix)
		return fmt.Sprintf("Quiero ver el producto %s", id)
	case strings.HasPrefix(payload, postbackBuyPrefix):
		id := strings.TrimPrefix(payload, postbackBuyPrefix)
		return fmt.Sprintf("Quiero comprar el producto %s", id)
	default:
		return title
	}
}

// SendReply delivers one turn result: each bubble as a text DM, then
// each product card as an image followed by a button template.
func (a *Adapter) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	for _, bubble := range reply.Bubbles {
		if bubble == "" {
			continue
		}
		if _, err := a.client.SendTextMessage(ctx, reply.Recipient, bubble); err != nil {
			return fmt.Errorf("instagram: deliver bubble: %w", err)
		}
	}

	for _, card := range reply.Products {
		if card.ImageURL != "" {
			if _, err := a.client.SendImageMessage(ctx, reply.Recipient, card.ImageURL); err != nil {
				return fmt.Errorf("instagram: deliver product image: %w", err)
			}
		}
		text := fmt.Sprintf("%s - %s", card.Name, card.PriceLabel)
		buttons := []Button{
			{Type: "postback", Title: "Lo quiero", Payload: postbackBuyPrefix + card.ProductID},
			{Type: "postback", Title: "Ver detalles", Payload: postbackViewPrefix + card.ProductID},
		}
		if _, err := a.client.SendButtonMessage(ctx, reply.Recipient, text, buttons); err != nil {
			return fmt.Errorf("instagram: deliver product card: %w", err)
		}
	}

	return nil
}

var _ conversation.ReplyMessenger = (*Adapter)(nil)
