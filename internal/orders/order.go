package orders

import (
	"fmt"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
)

// DeliveryFee is the flat Lima delivery charge in soles.
const DeliveryFee = 15.00

// Status is the lifecycle of an order.
type Status string

const (
	// StatusDraft is an order minted from a checkout link that has not
	// been paid yet.
	StatusDraft     Status = "draft"
	StatusPaid      Status = "paid"
	StatusPreparing Status = "preparing"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Delivery holds the recipient details collected at payment time.
type Delivery struct {
	RecipientName string `json:"recipient_name"`
	Address       string `json:"address"`
	District      string `json:"district"`
	Date          string `json:"date"`
	CardMessage   string `json:"card_message"`
}

// Order is one checkout, keyed by its payment code.
type Order struct {
	Code      string                  `json:"code"`
	SessionID string                  `json:"session_id"`
	Channel   string                  `json:"channel"`
	Status    Status                  `json:"status"`
	Items     []conversation.CartItem `json:"items"`
	Subtotal  float64                 `json:"subtotal"`
	Fee       float64                 `json:"delivery_fee"`
	Total     float64                 `json:"total"`
	Delivery  Delivery                `json:"delivery"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// FromSnapshot builds a draft order from a cart snapshot.
func FromSnapshot(sessionID, channel, code string, cart conversation.CartSnapshot) *Order {
	now := time.Now().UTC()
	return &Order{
		Code:      code,
		SessionID: sessionID,
		Channel:   channel,
		Status:    StatusDraft,
		Items:     cart.Items,
		Subtotal:  cart.Total,
		Fee:       DeliveryFee,
		Total:     cart.Total + DeliveryFee,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary renders a short human-readable description of the order.
func (o *Order) Summary() string {
	out := fmt.Sprintf("Pedido %s (%s)\n", o.Code, o.Status)
	for _, item := range o.Items {
		out += fmt.Sprintf("- %s x%d: S/%.2f\n", item.ProductName, item.Quantity, item.Subtotal)
	}
	out += fmt.Sprintf("Subtotal: S/%.2f\nDelivery: S/%.2f\nTotal: S/%.2f", o.Subtotal, o.Fee, o.Total)
	return out
}
