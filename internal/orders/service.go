package orders

import (
	"context"
	"fmt"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Notifier is told about new orders. Implemented by internal/notify.
type Notifier interface {
	OrderCreated(ctx context.Context, order *Order) error
}

// Store is the persistence seam of the service.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, code string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
	UpdateStatus(ctx context.Context, code string, status Status) error
	UpdateDelivery(ctx context.Context, code string, d Delivery) error
}

// Service turns checkout effects into persisted draft orders.
type Service struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
}

func NewService(store Store, notifier Notifier, logger *logging.Logger) *Service {
	if store == nil {
		panic("orders: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// RecordCheckout persists a draft order for a checkout link the
// assistant handed out. Notification failures do not fail the order.
func (s *Service) RecordCheckout(ctx context.Context, sessionID, channel, code string, cart conversation.CartSnapshot) error {
	if code == "" {
		return fmt.Errorf("orders: checkout code is required")
	}
	if len(cart.Items) == 0 {
		return fmt.Errorf("orders: checkout %s has an empty cart", code)
	}

	order := FromSnapshot(sessionID, channel, code, cart)
	if err := s.store.Create(ctx, order); err != nil {
		return err
	}

	s.logger.Info("order created",
		"code", order.Code,
		"session_id", sessionID,
		"channel", channel,
		"total", order.Total,
	)

	if s.notifier != nil {
		if err := s.notifier.OrderCreated(ctx, order); err != nil {
			s.logger.Warn("order notification failed", "code", order.Code, "error", err)
		}
	}
	return nil
}

// Get returns one order by checkout code.
func (s *Service) Get(ctx context.Context, code string) (*Order, error) {
	return s.store.Get(ctx, code)
}

// ListBySession returns the orders of one session, newest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	return s.store.ListBySession(ctx, sessionID)
}

// MarkPaid moves a draft order to paid and stores the delivery details.
func (s *Service) MarkPaid(ctx context.Context, code string, d Delivery) error {
	if err := s.store.UpdateDelivery(ctx, code, d); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, code, StatusPaid)
}

var _ conversation.CheckoutRecorder = (*Service)(nil)
