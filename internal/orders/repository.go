package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
)

// Repository persists orders in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("orders: db cannot be nil")
	}
	return &Repository{db: db}
}

const orderColumns = `code, session_id, channel, status, items, subtotal, delivery_fee, total,
	recipient_name, address, district, delivery_date, card_message, created_at, updated_at`

// Create inserts a draft order. Re-creating an existing code refreshes
// the cart contents; the model may regenerate a checkout link for the
// same session.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("orders: encode items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (code, session_id, channel, status, items, subtotal, delivery_fee, total,
		    recipient_name, address, district, delivery_date, card_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		ON CONFLICT (code) DO UPDATE SET
		    items=EXCLUDED.items, subtotal=EXCLUDED.subtotal,
		    delivery_fee=EXCLUDED.delivery_fee, total=EXCLUDED.total, updated_at=$14`,
		o.Code, o.SessionID, o.Channel, string(o.Status), items, o.Subtotal, o.Fee, o.Total,
		o.Delivery.RecipientName, o.Delivery.Address, o.Delivery.District,
		o.Delivery.Date, o.Delivery.CardMessage, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("orders: create order %s: %w", o.Code, err)
	}
	return nil
}

// Get fetches one order by code. Returns nil when absent.
func (r *Repository) Get(ctx context.Context, code string) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE code = $1`, orderColumns), code)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get order %s: %w", code, err)
	}
	return o, nil
}

// ListBySession returns a session's orders, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE session_id = $1 ORDER BY created_at DESC`, orderColumns),
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("orders: list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, code string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE code = $1`,
		code, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("orders: update status %s: %w", code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("orders: order %s not found", code)
	}
	return nil
}

// UpdateDelivery records the recipient details collected at payment.
func (r *Repository) UpdateDelivery(ctx context.Context, code string, d Delivery) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET recipient_name=$2, address=$3, district=$4,
		    delivery_date=$5, card_message=$6, updated_at=$7
		WHERE code = $1`,
		code, d.RecipientName, d.Address, d.District, d.Date, d.CardMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("orders: update delivery %s: %w", code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("orders: order %s not found", code)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o        Order
		status   string
		rawItems []byte
	)
	if err := row.Scan(
		&o.Code, &o.SessionID, &o.Channel, &status, &rawItems,
		&o.Subtotal, &o.Fee, &o.Total,
		&o.Delivery.RecipientName, &o.Delivery.Address, &o.Delivery.District,
		&o.Delivery.Date, &o.Delivery.CardMessage,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if len(rawItems) > 0 {
		if err := json.Unmarshal(rawItems, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	if o.Items == nil {
		o.Items = []conversation.CartItem{}
	}
	return &o, nil
}
