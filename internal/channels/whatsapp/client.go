package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second

	maxListRows       = 10
	maxRowTitleLen    = 24
	maxRowDescLen     = 72
	maxReplyButtons   = 3
	maxButtonTitleLen = 20
)

// Client sends messages via the WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// NewClient creates a Cloud API client bound to one business phone number.
func NewClient(accessToken, phoneNumberID string) *Client {
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

// SendTextMessage sends a plain text message to the given phone number.
func (c *Client) SendTextMessage(ctx context.Context, to, text string) (*SendResponse, error) {
	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &Text{Body: text},
	}
	return c.send(ctx, req)
}

// SendImageMessage sends an image by URL with an optional caption.
func (c *Client) SendImageMessage(ctx context.Context, to, imageURL, caption string) (*SendResponse, error) {
	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
		Image:            &Image{Link: imageURL, Caption: caption},
	}
	return c.send(ctx, req)
}

// SendListMessage sends an interactive list. The Cloud API caps lists
// at 10 rows, row titles at 24 characters and descriptions at 72;
// overflow is truncated rather than rejected.
func (c *Client) SendListMessage(ctx context.Context, to, bodyText, buttonLabel string, rows []Row) (*SendResponse, error) {
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	clipped := make([]Row, len(rows))
	for i, row := range rows {
		row.Title = truncate(row.Title, maxRowTitleLen)
		row.Description = truncate(row.Description, maxRowDescLen)
		clipped[i] = row
	}

	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type: "list",
			Body: Body{Text: bodyText},
			Action: Action{
				Button:   truncate(buttonLabel, maxButtonTitleLen),
				Sections: []Section{{Rows: clipped}},
			},
		},
	}
	return c.send(ctx, req)
}

// SendButtonMessage sends up to three reply buttons.
func (c *Client) SendButtonMessage(ctx context.Context, to, bodyText string, buttons []ButtonReply) (*SendResponse, error) {
	if len(buttons) > maxReplyButtons {
		buttons = buttons[:maxReplyButtons]
	}
	wrapped := make([]Button, len(buttons))
	for i, b := range buttons {
		b.Title = truncate(b.Title, maxButtonTitleLen)
		wrapped[i] = Button{Type: "reply", Reply: b}
	}

	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type:   "button",
			Body:   Body{Text: bodyText},
			Action: Action{Buttons: wrapped},
		},
	}
	return c.send(ctx, req)
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	req := SendRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	_, err := c.send(ctx, req)
	return err
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}

	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return &sendResp, nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
