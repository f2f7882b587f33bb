package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Service emails the sales team when the assistant produces an order.
type Service struct {
	email      EmailSender
	salesEmail string
	logger     *logging.Logger
}

// NewService creates a notification service. salesEmail is the inbox
// the store staff watches for new orders.
func NewService(email EmailSender, salesEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		salesEmail: salesEmail,
		logger:     logger,
	}
}

// OrderCreated notifies the sales team about a fresh draft order.
func (s *Service) OrderCreated(ctx context.Context, order *orders.Order) error {
	if s.email == nil || s.salesEmail == "" {
		s.logger.Debug("notify: email not configured, skipping order notification")
		return nil
	}
	if order == nil {
		return fmt.Errorf("notify: order is nil")
	}

	subject := fmt.Sprintf("Nuevo pedido %s - S/%.2f (%s)", order.Code, order.Total, order.Channel)

	var body strings.Builder
	fmt.Fprintf(&body, "Se genero un link de pago desde el canal %s.\n\n", order.Channel)
	fmt.Fprintf(&body, "Codigo: %s\nSesion: %s\n\nProductos:\n", order.Code, order.SessionID)
	for _, item := range order.Items {
		fmt.Fprintf(&body, "- %s x%d: S/%.2f\n", item.ProductName, item.Quantity, item.Subtotal)
	}
	fmt.Fprintf(&body, "\nSubtotal: S/%.2f\nDelivery: S/%.2f\nTotal: S/%.2f\n",
		order.Subtotal, order.Fee, order.Total)

	err := s.email.Send(ctx, EmailMessage{
		To:      s.salesEmail,
		ToName:  "Equipo de ventas Rosatel",
		Subject: subject,
		Body:    body.String(),
		HTML:    orderHTML(order),
	})
	if err != nil {
		return fmt.Errorf("notify: order created email: %w", err)
	}

	s.logger.Info("order notification sent", "code", order.Code, "to", s.salesEmail)
	return nil
}

func orderHTML(order *orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Nuevo pedido %s</h2>", html.EscapeString(order.Code))
	fmt.Fprintf(&b, "<p>Canal: %s<br/>Sesion: %s</p>",
		html.EscapeString(order.Channel), html.EscapeString(order.SessionID))
	b.WriteString("<table border=\"0\" cellpadding=\"4\"><tr><th align=\"left\">Producto</th><th>Cant.</th><th align=\"right\">Subtotal</th></tr>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td align=\"center\">%d</td><td align=\"right\">S/%.2f</td></tr>",
			html.EscapeString(item.ProductName), item.Quantity, item.Subtotal)
	}
	fmt.Fprintf(&b, "<tr><td colspan=\"2\">Delivery</td><td align=\"right\">S/%.2f</td></tr>", order.Fee)
	fmt.Fprintf(&b, "<tr><td colspan=\"2\"><strong>Total</strong></td><td align=\"right\"><strong>S/%.2f</strong></td></tr>", order.Total)
	b.WriteString("</table>")
	return b.String()
}

var _ orders.Notifier = (*Service)(nil)
