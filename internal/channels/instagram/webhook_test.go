package instagram

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test_app_secret"
	body := []byte(`{"object":"instagram","entry":[]}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	validSig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid signature", secret, body, validSig, true},
		{"wrong signature", secret, body, "sha256=0000000000000000000000000000000000000000000000000000000000000000", false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, validSig, false},
		{"missing prefix", secret, body, "abcdef", false},
		{"tampered body", secret, []byte(`tampered`), validSig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.secret, tt.body, tt.signature)
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleVerification(t *testing.T) {
	h := NewWebhookHandler("my_verify_token", "secret", nil)

	t.Run("valid challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/instagram?hub.mode=subscribe&hub.verify_token=my_verify_token&hub.challenge=CHALLENGE_123",
			nil)
		w := httptest.NewRecorder()
		h.HandleVerification(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != "CHALLENGE_123" {
			t.Fatalf("expected CHALLENGE_123, got %s", w.Body.String())
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=X",
			nil)
		w := httptest.NewRecorder()
		h.HandleVerification(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		event := WebhookEvent{
			Object: "instagram",
			Entry: []Entry{{
				ID:   "page_123",
				Time: 1700000000000,
				Messaging: []Messaging{{
					Sender:    Sender{ID: "psid_456"},
					Recipient: Recipient{ID: "page_123"},
					Timestamp: 1700000000000,
					Message:   &Message{MID: "mid_001", Text: "quiero flores para mi mama"},
				}},
			}},
		}

		msgs := ParseWebhookEvent(event)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}
		if msgs[0].SenderID != "psid_456" {
			t.Errorf("sender = %s, want psid_456", msgs[0].SenderID)
		}
		if msgs[0].Text != "quiero flores para mi mama" {
			t.Errorf("text = %s", msgs[0].Text)
		}
		if msgs[0].IsPostback {
			t.Error("expected IsPostback=false")
		}
	})

	t.Run("postback", func(t *testing.T) {
		event := WebhookEvent{
			Object: "instagram",
			Entry: []Entry{{
				Messaging: []Messaging{{
					Sender:    Sender{ID: "psid_789"},
					Timestamp: 1700000001000,
					Postback:  &Postback{Title: "Lo quiero", Payload: "COMPRAR_ROSA-001"},
				}},
			}},
		}

		msgs := ParseWebhookEvent(event)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}
		if !msgs[0].IsPostback {
			t.Error("expected IsPostback=true")
		}
		if msgs[0].PostbackPayload != "COMPRAR_ROSA-001" {
			t.Errorf("payload = %s", msgs[0].PostbackPayload)
		}
	})

	t.Run("empty messaging", func(t *testing.T) {
		event := WebhookEvent{
			Object: "instagram",
			Entry: []Entry{
				{Messaging: []Messaging{{Sender: Sender{ID: "x"}, Timestamp: 0}}},
			},
		}
		if msgs := ParseWebhookEvent(event); len(msgs) != 0 {
			t.Fatalf("expected 0 messages, got %d", len(msgs))
		}
	})
}

func TestHandleInbound(t *testing.T) {
	appSecret := "test_secret"
	var received []ParsedInboundMessage

	h := NewWebhookHandler("token", appSecret, func(msg ParsedInboundMessage) {
		received = append(received, msg)
	})

	event := WebhookEvent{
		Object: "instagram",
		Entry: []Entry{{
			Messaging: []Messaging{{
				Sender:    Sender{ID: "psid_1"},
				Timestamp: 1700000000000,
				Message:   &Message{MID: "m1", Text: "hola"},
			}},
		}},
	}

	body, _ := json.Marshal(event)
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sig)
	w := httptest.NewRecorder()

	h.HandleInbound(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 received message, got %d", len(received))
	}
	if received[0].Text != "hola" {
		t.Errorf("text = %s, want hola", received[0].Text)
	}
}

func TestHandleInboundBadSignature(t *testing.T) {
	h := NewWebhookHandler("token", "secret", nil)

	body := []byte(`{"object":"instagram","entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=bad")
	w := httptest.NewRecorder()

	h.HandleInbound(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
