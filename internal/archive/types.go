package archive

import "time"

// Session outcomes recorded on archived conversations.
const (
	OutcomeCheckout  = "checkout_generated"
	OutcomeAbandoned = "cart_abandoned"
	OutcomeBrowsing  = "browsing"
)

// ConversationRecord is the top-level structure archived to S3.
type ConversationRecord struct {
	Version         string         `json:"version"` // "1.0"
	SessionID       string         `json:"session_id"`
	Channel         string         `json:"channel"`
	ContactHash     string         `json:"contact_hash"` // sha256 of the channel user id
	ArchivedAt      time.Time      `json:"archived_at"`
	DurationSeconds int            `json:"duration_seconds"`
	MessageCount    int            `json:"message_count"`
	Outcome         string         `json:"outcome"`
	Labels          Labels         `json:"labels"`
	Context         SessionContext `json:"context"`
	Messages        []Message      `json:"messages"`
}

// Labels holds auto-classification results for training data curation.
type Labels struct {
	ConversationCategory string `json:"conversation_category"` // purchase|quote_request|browsing|abandoned_cart|complaint|test_internal
	Sentiment            string `json:"sentiment"`             // positive|neutral|negative|hostile
	UpsellAccepted       bool   `json:"upsell_accepted"`
	OccasionDetected     string `json:"occasion_detected,omitempty"`
	AutoLabeled          bool   `json:"auto_labeled"`
	LabelModel           string `json:"label_model"`
	HumanReviewed        bool   `json:"human_reviewed"`
}

// SessionContext captures cart and order context for training.
type SessionContext struct {
	Occasion          string  `json:"occasion,omitempty"`
	CheckoutCode      string  `json:"checkout_code,omitempty"`
	CheckoutGenerated bool    `json:"checkout_generated"`
	CartItems         int     `json:"cart_items"`
	CartTotal         float64 `json:"cart_total"`
}

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	SessionID    string `json:"session_id"`
	S3Key        string `json:"s3_key"`
	Channel      string `json:"channel"`
	Category     string `json:"category"`
	ArchivedAt   string `json:"archived_at"`
	MessageCount int    `json:"message_count"`
	Outcome      string `json:"outcome"`
}
