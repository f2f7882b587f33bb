package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

type stubStore struct {
	created   []*Order
	createErr error
	statuses  map[string]Status
	delivery  map[string]Delivery
}

func newStubStore() *stubStore {
	return &stubStore{
		statuses: make(map[string]Status),
		delivery: make(map[string]Delivery),
	}
}

func (s *stubStore) Create(_ context.Context, o *Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, o)
	return nil
}

func (s *stubStore) Get(_ context.Context, code string) (*Order, error) {
	for _, o := range s.created {
		if o.Code == code {
			return o, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListBySession(_ context.Context, sessionID string) ([]Order, error) {
	var out []Order
	for _, o := range s.created {
		if o.SessionID == sessionID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, code string, status Status) error {
	s.statuses[code] = status
	return nil
}

func (s *stubStore) UpdateDelivery(_ context.Context, code string, d Delivery) error {
	s.delivery[code] = d
	return nil
}

type stubNotifier struct {
	orders []*Order
	err    error
}

func (s *stubNotifier) OrderCreated(_ context.Context, order *Order) error {
	s.orders = append(s.orders, order)
	return s.err
}

func TestServiceRecordCheckout(t *testing.T) {
	store := newStubStore()
	notifier := &stubNotifier{}
	svc := NewService(store, notifier, logging.New("error"))

	err := svc.RecordCheckout(context.Background(), "widget:abc", "widget", "RSTA1B2C3D4", testSnapshot())
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	order := store.created[0]
	assert.Equal(t, "RSTA1B2C3D4", order.Code)
	assert.Equal(t, StatusDraft, order.Status)
	assert.InDelta(t, 209.70, order.Subtotal, 0.001)
	assert.InDelta(t, 224.70, order.Total, 0.001)

	require.Len(t, notifier.orders, 1)
	assert.Same(t, order, notifier.orders[0])
}

func TestServiceRecordCheckoutRejectsEmptyCart(t *testing.T) {
	svc := NewService(newStubStore(), nil, logging.New("error"))

	err := svc.RecordCheckout(context.Background(), "widget:abc", "widget", "RSTA1B2C3D4", conversation.CartSnapshot{})
	assert.Error(t, err)

	err = svc.RecordCheckout(context.Background(), "widget:abc", "widget", "", testSnapshot())
	assert.Error(t, err)
}

func TestServiceRecordCheckoutToleratesNotifierFailure(t *testing.T) {
	store := newStubStore()
	notifier := &stubNotifier{err: errors.New("smtp down")}
	svc := NewService(store, notifier, logging.New("error"))

	err := svc.RecordCheckout(context.Background(), "widget:abc", "widget", "RSTA1B2C3D4", testSnapshot())
	assert.NoError(t, err)
	assert.Len(t, store.created, 1)
}

func TestServiceMarkPaid(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, logging.New("error"))

	d := Delivery{RecipientName: "Maria", Address: "Av. Primavera 120", District: "Surco"}
	require.NoError(t, svc.MarkPaid(context.Background(), "RSTA1B2C3D4", d))

	assert.Equal(t, StatusPaid, store.statuses["RSTA1B2C3D4"])
	assert.Equal(t, d, store.delivery["RSTA1B2C3D4"])
}

func TestOrderSummary(t *testing.T) {
	order := FromSnapshot("widget:abc", "widget", "RSTA1B2C3D4", testSnapshot())
	summary := order.Summary()

	assert.Contains(t, summary, "Pedido RSTA1B2C3D4")
	assert.Contains(t, summary, "Ramo de 12 Rosas Rojas x1")
	assert.Contains(t, summary, "Delivery: S/15.00")
	assert.Contains(t, summary, "Total: S/224.70")
}
