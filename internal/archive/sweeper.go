package archive

import (
	"context"
	"strings"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

const defaultIdleThreshold = 24 * time.Hour

// OrderLister reports the orders generated by a session. Satisfied by
// orders.Service and orders.Repository.
type OrderLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]orders.Order, error)
}

// Sweeper archives idle sessions to S3 and optionally purges them from
// the session store afterwards.
type Sweeper struct {
	sessions   conversation.SessionStore
	store      *Store
	classifier *Classifier
	orders     OrderLister
	logger     *logging.Logger

	idleThreshold time.Duration
	purge         bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithIdleThreshold sets how long a session must be untouched before it
// is archived. Non-positive values keep the default of 24 hours.
func WithIdleThreshold(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.idleThreshold = d
		}
	}
}

// WithPurge deletes sessions from the store after a successful archive.
func WithPurge() SweeperOption {
	return func(s *Sweeper) { s.purge = true }
}

// WithOrderLister wires order lookup so archived records carry checkout codes.
func WithOrderLister(ol OrderLister) SweeperOption {
	return func(s *Sweeper) { s.orders = ol }
}

// WithClassifier enables LLM auto-labeling of archived conversations.
func WithClassifier(c *Classifier) SweeperOption {
	return func(s *Sweeper) { s.classifier = c }
}

// NewSweeper creates a Sweeper. Returns nil when the archive store is not
// enabled, so callers can skip scheduling entirely.
func NewSweeper(sessions conversation.SessionStore, store *Store, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if sessions == nil || store == nil || !store.Enabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{
		sessions:      sessions,
		store:         store,
		logger:        logger,
		idleThreshold: defaultIdleThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep archives every session idle for longer than the threshold.
// Returns the number of sessions archived. Individual session failures
// are logged and skipped so one bad session cannot stall the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}

	ids, err := s.sessions.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.idleThreshold)
	archived := 0
	for _, id := range ids {
		conv, err := s.sessions.Load(ctx, id)
		if err != nil {
			s.logger.Warn("sweep: load session failed", "session_id", id, "error", err)
			continue
		}
		if len(conv.Messages) == 0 || conv.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.ArchiveSession(ctx, conv); err != nil {
			s.logger.Warn("sweep: archive failed", "session_id", id, "error", err)
			continue
		}
		archived++
		if s.purge {
			if err := s.sessions.Delete(ctx, id); err != nil {
				s.logger.Warn("sweep: purge failed", "session_id", id, "error", err)
			}
		}
	}

	s.logger.Info("archive sweep finished", "candidates", len(ids), "archived", archived)
	return archived, nil
}

// ArchiveSession scrubs, classifies and stores a single conversation.
func (s *Sweeper) ArchiveSession(ctx context.Context, conv *conversation.Conversation) error {
	msgs := make([]Message, len(conv.Messages))
	for i, m := range conv.Messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	ScrubMessages(msgs)

	sctx := SessionContext{
		Occasion:  conv.Context.Occasion,
		CartItems: conv.Cart.Units(),
		CartTotal: conv.Cart.Total(),
	}

	outcome := OutcomeBrowsing
	if len(conv.Cart.Items) > 0 {
		outcome = OutcomeAbandoned
	}
	if s.orders != nil {
		sessionOrders, err := s.orders.ListBySession(ctx, conv.SessionID)
		if err != nil {
			s.logger.Warn("sweep: order lookup failed", "session_id", conv.SessionID, "error", err)
		} else if len(sessionOrders) > 0 {
			outcome = OutcomeCheckout
			sctx.CheckoutGenerated = true
			sctx.CheckoutCode = sessionOrders[0].Code
		}
	}

	contact := contactID(conv.SessionID, conv.UserID)
	var labels *Labels
	if s.classifier != nil {
		var err error
		labels, err = s.classifier.Classify(ctx, contact, msgs)
		if err != nil {
			s.logger.Warn("sweep: classification failed, using defaults",
				"error", err, "session_id", conv.SessionID)
			labels = defaultLabels()
		}
	} else {
		labels = defaultLabels()
	}

	var durationSec int
	if len(msgs) >= 2 {
		durationSec = int(msgs[len(msgs)-1].Timestamp.Sub(msgs[0].Timestamp).Seconds())
	}

	record := &ConversationRecord{
		Version:         "1.0",
		SessionID:       conv.SessionID,
		Channel:         string(conv.Channel),
		ContactHash:     HashContact(contact),
		ArchivedAt:      time.Now().UTC(),
		DurationSeconds: durationSec,
		MessageCount:    len(msgs),
		Outcome:         outcome,
		Labels:          *labels,
		Context:         sctx,
		Messages:        msgs,
	}

	return s.store.ArchiveConversation(ctx, record)
}

// contactID extracts the channel user id from a session when the
// conversation has no explicit user id.
func contactID(sessionID, userID string) string {
	if userID != "" {
		return userID
	}
	if _, rest, ok := strings.Cut(sessionID, ":"); ok {
		return rest
	}
	return sessionID
}
