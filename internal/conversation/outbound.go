package conversation

import "context"

// ReplyMessenger pushes a finished turn back to the customer on their
// channel. Implementations live in internal/channels and internal/webchat.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries everything a channel needs to render a turn:
// ordered text bubbles plus optional product cards.
type OutboundReply struct {
	SessionID string
	Channel   Channel
	Recipient string
	Bubbles   []string
	Products  []ProductCard
	Cart      CartSnapshot
}
