package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/observability/metrics"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// TurnProcessor is the engine-facing seam of the worker; tests plug in
// scripted processors.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}

// CheckoutRecorder turns a checkout effect into a persisted order.
// Implemented by internal/orders.
type CheckoutRecorder interface {
	RecordCheckout(ctx context.Context, sessionID string, channel string, code string, cart CartSnapshot) error
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeoutSecs   = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	checkouts        CheckoutRecorder
	metrics          *metrics.ConversationMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithCheckoutRecorder persists orders when a turn produced a checkout.
func WithCheckoutRecorder(recorder CheckoutRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.checkouts = recorder
	}
}

// WithWorkerMetrics wires delivery metrics.
func WithWorkerMetrics(m *metrics.ConversationMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// Worker consumes enqueued turns, runs them through the processor and
// delivers the result on the originating channel.
type Worker struct {
	processor  TurnProcessor
	queue      Queue
	jobs       JobUpdater
	messengers map[Channel]ReplyMessenger
	checkouts  CheckoutRecorder
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer. messengers maps each channel
// to its delivery client; channels without a messenger rely on the job
// store for result pickup.
func NewWorker(processor TurnProcessor, queue Queue, jobs JobUpdater, messengers map[Channel]ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if jobs == nil {
		panic("conversation: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor:  processor,
		queue:      queue,
		jobs:       jobs,
		messengers: messengers,
		checkouts:  cfg.checkouts,
		metrics:    cfg.metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("turn worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("turn worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive turns", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	payload, err := decodeTurnPayload(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode turn payload", "error", err)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	result, err := w.processor.ProcessTurn(ctx, payload.Request)
	if err != nil {
		w.logger.Error("turn processing failed",
			"job_id", payload.ID,
			"session_id", payload.Request.SessionID,
			"error", err,
		)
		if payload.TrackStatus {
			if markErr := w.jobs.MarkFailed(ctx, payload.ID, err.Error()); markErr != nil {
				w.logger.Error("failed to mark job failed", "job_id", payload.ID, "error", markErr)
			}
		}
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if payload.TrackStatus {
		if markErr := w.jobs.MarkCompleted(ctx, payload.ID, result); markErr != nil {
			w.logger.Error("failed to mark job completed", "job_id", payload.ID, "error", markErr)
		}
	}

	w.recordCheckouts(ctx, payload.Request, result)
	w.deliver(ctx, payload.Request, result)
	w.deleteMessage(msg.ReceiptHandle)
}

// recordCheckouts persists an order draft for every checkout the turn
// produced. Failures are logged; the customer already has the link.
func (w *Worker) recordCheckouts(ctx context.Context, req TurnRequest, result *TurnResult) {
	if w.checkouts == nil || result == nil {
		return
	}
	for _, eff := range result.Effects {
		if eff.Type != EffectCheckout || eff.Cart == nil {
			continue
		}
		err := w.checkouts.RecordCheckout(ctx, req.SessionID, string(req.Channel), eff.Code, *eff.Cart)
		if err != nil {
			w.logger.Error("failed to record checkout",
				"session_id", req.SessionID,
				"code", eff.Code,
				"error", err,
			)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, req TurnRequest, result *TurnResult) {
	messenger, ok := w.messengers[req.Channel]
	if !ok || messenger == nil || result == nil {
		return
	}
	reply := OutboundReply{
		SessionID: req.SessionID,
		Channel:   req.Channel,
		Recipient: req.UserID,
		Bubbles:   result.Bubbles,
		Products:  result.Products,
		Cart:      result.Cart,
	}
	if err := messenger.SendReply(ctx, reply); err != nil {
		w.metrics.ObserveOutbound(string(req.Channel), "failed")
		w.logger.Error("failed to deliver reply",
			"session_id", req.SessionID,
			"channel", req.Channel,
			"error", err,
		)
		return
	}
	w.metrics.ObserveOutbound(string(req.Channel), "sent")
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSecs*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Warn("failed to delete queue message", "error", err)
	}
}
