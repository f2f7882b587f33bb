package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/orders"
)

type stubOrderLister struct {
	bySession map[string][]orders.Order
}

func (s *stubOrderLister) ListBySession(_ context.Context, sessionID string) ([]orders.Order, error) {
	return s.bySession[sessionID], nil
}

func idleConversation(sessionID string, channel conversation.Channel, userID string) *conversation.Conversation {
	conv := conversation.NewConversation(sessionID, channel, userID)
	conv.Append("user", "Quiero rosas rojas")
	conv.Append("assistant", "Tenemos estas opciones")
	conv.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	return conv
}

func TestSweeper_ArchivesIdleSessions(t *testing.T) {
	ctx := context.Background()
	sessions := conversation.NewMemorySessionStore(0)
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	require.NoError(t, sessions.Save(ctx, idleConversation("whatsapp:51987654321", conversation.ChannelWhatsApp, "51987654321")))

	// A fresh session must survive the sweep untouched.
	fresh := conversation.NewConversation("widget:aa11", conversation.ChannelWidget, "")
	fresh.Append("user", "hola")
	require.NoError(t, sessions.Save(ctx, fresh))

	sweeper := NewSweeper(sessions, store, nil, WithPurge())
	require.NotNil(t, sweeper)

	archived, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	// Record + manifest for the idle session only.
	require.Len(t, mock.putCalls, 2)
	var record ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &record))
	assert.Equal(t, "whatsapp:51987654321", record.SessionID)
	assert.Equal(t, OutcomeBrowsing, record.Outcome)
	assert.Equal(t, HashContact("51987654321"), record.ContactHash)
	assert.Len(t, record.Messages, 2)

	// Purged after archive; the fresh one remains.
	_, err = sessions.Load(ctx, "whatsapp:51987654321")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
	_, err = sessions.Load(ctx, "widget:aa11")
	assert.NoError(t, err)
}

func TestSweeper_CheckoutOutcomeFromOrders(t *testing.T) {
	ctx := context.Background()
	sessions := conversation.NewMemorySessionStore(0)
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	conv := idleConversation("instagram:991122", conversation.ChannelInstagram, "991122")
	conv.Cart.Add("ROSA-001", "Ramo de 12 rosas rojas", 89.90, 1)
	require.NoError(t, sessions.Save(ctx, conv))

	lister := &stubOrderLister{bySession: map[string][]orders.Order{
		"instagram:991122": {{Code: "RSTA1B2C3D4", SessionID: "instagram:991122"}},
	}}
	sweeper := NewSweeper(sessions, store, nil, WithOrderLister(lister))
	require.NotNil(t, sweeper)

	archived, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	var record ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &record))
	assert.Equal(t, OutcomeCheckout, record.Outcome)
	assert.Equal(t, "RSTA1B2C3D4", record.Context.CheckoutCode)
	assert.True(t, record.Context.CheckoutGenerated)
	assert.Equal(t, 1, record.Context.CartItems)
	assert.InDelta(t, 89.90, record.Context.CartTotal, 0.001)

	// No purge option: the session stays.
	_, err = sessions.Load(ctx, "instagram:991122")
	assert.NoError(t, err)
}

func TestSweeper_AbandonedCartOutcome(t *testing.T) {
	ctx := context.Background()
	sessions := conversation.NewMemorySessionStore(0)
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	conv := idleConversation("whatsapp:51911111111", conversation.ChannelWhatsApp, "51911111111")
	conv.Cart.Add("CHOC-001", "Bombones surtidos", 59.90, 2)
	require.NoError(t, sessions.Save(ctx, conv))

	sweeper := NewSweeper(sessions, store, nil)
	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	var record ConversationRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &record))
	assert.Equal(t, OutcomeAbandoned, record.Outcome)
}

func TestSweeper_NilWhenDisabled(t *testing.T) {
	sessions := conversation.NewMemorySessionStore(0)
	disabled := NewStore(nil, "", nil)
	assert.Nil(t, NewSweeper(sessions, disabled, nil))
	assert.Nil(t, NewSweeper(nil, nil, nil))

	// A nil sweeper is safe to call.
	var s *Sweeper
	n, err := s.Sweep(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}
