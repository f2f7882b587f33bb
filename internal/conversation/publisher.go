package conversation

import (
	"context"
	"fmt"

	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Publisher enqueues customer turns for asynchronous processing.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueTurn publishes one turn. jobID may be empty for untracked
// work; the payload then gets a fresh id for tracing only.
func (p *Publisher) EnqueueTurn(ctx context.Context, jobID string, req TurnRequest, opts ...PublishOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := req.Validate(); err != nil {
		return err
	}

	payload := turnPayload{ID: jobID, Request: req, TrackStatus: true}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, body, err := encodeTurnPayload(payload)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue turn: %w", err)
	}

	p.logger.Debug("turn enqueued",
		"job_id", payload.ID,
		"session_id", req.SessionID,
		"channel", req.Channel,
	)
	return nil
}
