package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, time.Hour, nil), mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	conv := NewConversation("whatsapp:51999", ChannelWhatsApp, "51999")
	conv.Append(ChatRoleUser, "hola")
	conv.Cart.Add("ROSA-001", "Ramo de 12 rosas", 89.90, 1)
	conv.Context.Occasion = "Aniversario"

	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Load(ctx, "whatsapp:51999")
	require.NoError(t, err)
	assert.Equal(t, ChannelWhatsApp, loaded.Channel)
	assert.Len(t, loaded.Messages, 1)
	assert.Equal(t, "Aniversario", loaded.Context.Occasion)
	require.Len(t, loaded.Cart.Items, 1)
	assert.Equal(t, 89.90, loaded.Cart.Items[0].UnitPrice)
}

func TestRedisSessionStoreKeyAndTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewConversation("widget:abc123", ChannelWidget, "")))

	key := "rosatel:session:widget:abc123"
	require.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "widget:abc123")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreGetOrCreate(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	conv, err := store.GetOrCreate(ctx, "instagram:777", ChannelInstagram, "777")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, ChannelInstagram, conv.Channel)

	conv.Append(ChatRoleUser, "busco rosas")
	require.NoError(t, store.Save(ctx, conv))

	again, err := store.GetOrCreate(ctx, "instagram:777", ChannelInstagram, "777")
	require.NoError(t, err)
	assert.Len(t, again.Messages, 1)
}

func TestRedisSessionStoreListIDs(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewConversation("whatsapp:1", ChannelWhatsApp, "1")))
	require.NoError(t, store.Save(ctx, NewConversation("widget:2", ChannelWidget, "")))

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"whatsapp:1", "widget:2"}, ids)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	conv := NewConversation("widget:x", ChannelWidget, "")
	conv.Cart.Add("CHOC-001", "Bombones", 35, 2)
	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Load(ctx, "widget:x")
	require.NoError(t, err)
	assert.Equal(t, 70.0, loaded.Cart.Total())

	// Stored documents are isolated copies.
	loaded.Cart.Clear()
	reloaded, err := store.Load(ctx, "widget:x")
	require.NoError(t, err)
	assert.Len(t, reloaded.Cart.Items, 1)

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"widget:x"}, ids)

	require.NoError(t, store.Delete(ctx, "widget:x"))
	_, err = store.Load(ctx, "widget:x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
