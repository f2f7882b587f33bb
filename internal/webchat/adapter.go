package webchat

import (
	"context"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// ReplyMessenger implements conversation.ReplyMessenger for the web
// widget. It pushes turn results through the visitor's WebSocket.
type ReplyMessenger struct {
	handler *Handler
	logger  *logging.Logger
}

// NewReplyMessenger creates a widget reply messenger.
func NewReplyMessenger(handler *Handler, logger *logging.Logger) *ReplyMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReplyMessenger{handler: handler, logger: logger}
}

// SendReply pushes each bubble, the product cards and the cart state
// to the visitor's WebSocket. A closed socket is not an error; the
// visitor picks the history up on reconnect.
func (m *ReplyMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for _, bubble := range reply.Bubbles {
		if bubble == "" {
			continue
		}
		m.handler.SendToSession(reply.SessionID, OutboundMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      bubble,
			Timestamp: now,
		})
	}

	if len(reply.Products) > 0 {
		m.handler.SendToSession(reply.SessionID, OutboundMessage{
			Type:     "products",
			Products: reply.Products,
		})
	}

	cart := reply.Cart
	m.handler.SendToSession(reply.SessionID, OutboundMessage{
		Type: "cart",
		Cart: &cart,
	})

	m.logger.Info("webchat: reply sent",
		"session_id", reply.SessionID,
		"bubbles", len(reply.Bubbles),
		"products", len(reply.Products),
	)
	return nil
}

var _ conversation.ReplyMessenger = (*ReplyMessenger)(nil)
