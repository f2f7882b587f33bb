package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue abstracts the turn queue so the worker runs identically
// over SQS in production and an in-memory channel in development.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// turnPayload is the wire format of one enqueued turn.
type turnPayload struct {
	ID          string      `json:"id"`
	Request     TurnRequest `json:"request"`
	TrackStatus bool        `json:"track_status"`
}

// PublishOption tweaks how a turn is enqueued.
type PublishOption func(*turnPayload)

// WithoutJobTracking disables job status persistence for fire-and-forget
// work, such as webhook turns whose reply goes straight to the channel.
func WithoutJobTracking() PublishOption {
	return func(p *turnPayload) {
		p.TrackStatus = false
	}
}

func encodeTurnPayload(payload turnPayload) (turnPayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return turnPayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}

func decodeTurnPayload(body string) (turnPayload, error) {
	var payload turnPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return turnPayload{}, fmt.Errorf("conversation: failed to decode payload: %w", err)
	}
	return payload, nil
}
