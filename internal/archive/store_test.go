package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

func TestStore_ArchiveConversation(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	now := time.Date(2026, 8, 14, 15, 0, 0, 0, time.UTC)
	record := &ConversationRecord{
		Version:      "1.0",
		SessionID:    "whatsapp:51987654321",
		Channel:      "whatsapp",
		ContactHash:  HashContact("51987654321"),
		ArchivedAt:   now,
		MessageCount: 2,
		Outcome:      OutcomeCheckout,
		Labels: Labels{
			ConversationCategory: "purchase",
			Sentiment:            "positive",
		},
		Context: SessionContext{
			CheckoutGenerated: true,
			CheckoutCode:      "RSTA1B2C3D4",
			CartItems:         2,
			CartTotal:         209.70,
		},
		Messages: []Message{
			{Role: "user", Content: "Quiero rosas rojas", Timestamp: now},
			{Role: "assistant", Content: "Tenemos estas opciones", Timestamp: now},
		},
	}

	err := store.ArchiveConversation(context.Background(), record)
	require.NoError(t, err)

	// Two PutObject calls: conversation + manifest.
	assert.Len(t, mock.putCalls, 2)

	// Colons in the session id are replaced in the object key.
	assert.Contains(t, mock.putCalls[0].key, "conversations/v1/by-date/2026/08/14/whatsapp_51987654321.json")

	var decoded ConversationRecord
	err = json.Unmarshal(mock.putCalls[0].body, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:51987654321", decoded.SessionID)
	assert.Equal(t, "RSTA1B2C3D4", decoded.Context.CheckoutCode)

	assert.Contains(t, mock.putCalls[1].key, "conversations/v1/manifests/")
	var entry ManifestEntry
	err = json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry)
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:51987654321", entry.SessionID)
	assert.Equal(t, OutcomeCheckout, entry.Outcome)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	err := store.ArchiveConversation(context.Background(), &ConversationRecord{})
	assert.NoError(t, err) // no-op
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	entry1 := ManifestEntry{SessionID: "widget:aa11", Category: "browsing"}
	entry2 := ManifestEntry{SessionID: "instagram:9912", Category: "abandoned_cart"}

	require.NoError(t, store.AppendManifest(context.Background(), entry1))
	require.NoError(t, store.AppendManifest(context.Background(), entry2))

	// The second append carries both entries.
	lastPut := mock.putCalls[len(mock.putCalls)-1]
	lines := bytes.Split(bytes.TrimSpace(lastPut.body), []byte("\n"))
	assert.Len(t, lines, 2)
}
