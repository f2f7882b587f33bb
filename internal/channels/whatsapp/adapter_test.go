package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

type capturePublisher struct {
	mu       sync.Mutex
	requests []conversation.TurnRequest
}

func (c *capturePublisher) EnqueueTurn(_ context.Context, _ string, req conversation.TurnRequest, _ ...conversation.PublishOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return nil
}

func (c *capturePublisher) seen() []conversation.TurnRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conversation.TurnRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

func TestAdapterEnqueuesInboundTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{Messages: []MessageResult{{ID: "wamid.ok"}}})
	}))
	defer server.Close()

	publisher := &capturePublisher{}
	adapter := NewAdapter("token", "555001", "secret", "verify", publisher, logging.Default())
	adapter.Client().SetGraphAPIBase(server.URL)

	adapter.onInbound(ParsedInboundMessage{
		From:      "51987654321",
		MessageID: "wamid.inbound",
		Text:      "quiero un ramo de rosas",
	})

	seen := publisher.seen()
	if len(seen) != 1 {
		t.Fatalf("expected 1 enqueued turn, got %d", len(seen))
	}
	if seen[0].SessionID != "whatsapp:51987654321" {
		t.Errorf("session = %s, want whatsapp:51987654321", seen[0].SessionID)
	}
	if seen[0].Channel != conversation.ChannelWhatsApp {
		t.Errorf("channel = %s", seen[0].Channel)
	}
	if seen[0].Message != "quiero un ramo de rosas" {
		t.Errorf("message = %s", seen[0].Message)
	}
}

func TestAdapterIgnoresEmptyInbound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{})
	}))
	defer server.Close()

	publisher := &capturePublisher{}
	adapter := NewAdapter("token", "555001", "secret", "verify", publisher, logging.Default())
	adapter.Client().SetGraphAPIBase(server.URL)

	adapter.onInbound(ParsedInboundMessage{From: "51987654321", MessageID: "wamid.x"})

	if len(publisher.seen()) != 0 {
		t.Fatal("expected no enqueued turns for empty message")
	}
}

func TestAdapterSendReply(t *testing.T) {
	var mu sync.Mutex
	var sent []SendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		sent = append(sent, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{Messages: []MessageResult{{ID: "wamid.ok"}}})
	}))
	defer server.Close()

	adapter := NewAdapter("token", "555001", "secret", "verify", &capturePublisher{}, logging.Default())
	adapter.Client().SetGraphAPIBase(server.URL)

	err := adapter.SendReply(context.Background(), conversation.OutboundReply{
		SessionID: "whatsapp:51987654321",
		Channel:   conversation.ChannelWhatsApp,
		Recipient: "51987654321",
		Bubbles:   []string{"¡Hola!", "Tenemos rosas hermosas"},
		Products: []conversation.ProductCard{
			{ProductID: "ROSA-001", Name: "Ramo de 12 Rosas Rojas", PriceLabel: "S/89.90", ImageURL: "https://cdn.rosatel.pe/rosas.jpg"},
			{ProductID: "CHOC-001", Name: "Caja de Chocolates Deluxe", PriceLabel: "S/59.90"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 4 {
		t.Fatalf("expected 4 sends, got %d", len(sent))
	}
	if sent[0].Type != "text" || sent[0].Text.Body != "¡Hola!" {
		t.Errorf("first send = %+v", sent[0])
	}
	if sent[2].Type != "image" || sent[2].Image.Caption != "Ramo de 12 Rosas Rojas - S/89.90" {
		t.Errorf("image send = %+v", sent[2])
	}
	if sent[3].Type != "text" || sent[3].Text.Body != "Caja de Chocolates Deluxe - S/59.90" {
		t.Errorf("cardless-image send = %+v", sent[3])
	}
}
