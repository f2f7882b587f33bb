package whatsapp

import "time"

// WebhookEvent is the top-level structure received from Meta's
// WhatsApp Business webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a single entry in the webhook payload.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field update, normally "messages".
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value holds the inbound messages and their metadata.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

// Metadata identifies the business phone number that received the message.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact carries the customer profile attached to a message batch.
type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile is the customer's WhatsApp profile.
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound customer message.
type Message struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *Text               `json:"text,omitempty"`
	Interactive *InteractiveInbound `json:"interactive,omitempty"`
}

// Text is the body of a plain text message.
type Text struct {
	Body string `json:"body"`
}

// InteractiveInbound is the customer's reply to a list or button message.
type InteractiveInbound struct {
	Type        string            `json:"type"`
	ListReply   *InteractiveReply `json:"list_reply,omitempty"`
	ButtonReply *InteractiveReply `json:"button_reply,omitempty"`
}

// InteractiveReply identifies the row or button the customer tapped.
type InteractiveReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendRequest is the payload sent to the Cloud API.
type SendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to,omitempty"`
	Type             string       `json:"type,omitempty"`
	Text             *Text        `json:"text,omitempty"`
	Image            *Image       `json:"image,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
	Status           string       `json:"status,omitempty"`
	MessageID        string       `json:"message_id,omitempty"`
}

// Image is an outbound image attachment.
type Image struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

// Interactive is an outbound list or button message.
type Interactive struct {
	Type   string `json:"type"`
	Body   Body   `json:"body"`
	Footer *Body  `json:"footer,omitempty"`
	Action Action `json:"action"`
}

// Body is the text block of an interactive message.
type Body struct {
	Text string `json:"text"`
}

// Action carries the list sections or reply buttons.
type Action struct {
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Buttons  []Button  `json:"buttons,omitempty"`
}

// Section groups list rows under a title.
type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

// Row is one selectable entry in a list message.
type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Button is one reply button.
type Button struct {
	Type  string      `json:"type"`
	Reply ButtonReply `json:"reply"`
}

// ButtonReply is the id and label of a reply button.
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendResponse is the Cloud API response after sending a message.
type SendResponse struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []ContactResult   `json:"contacts"`
	Messages         []MessageResult   `json:"messages"`
	Error            *SendError        `json:"error,omitempty"`
}

// ContactResult echoes the normalized recipient.
type ContactResult struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// MessageResult carries the id of an accepted message.
type MessageResult struct {
	ID string `json:"id"`
}

// SendError represents an error returned by the Cloud API.
type SendError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// ParsedInboundMessage is the normalized result of parsing a webhook event.
type ParsedInboundMessage struct {
	From          string
	ProfileName   string
	Text          string
	Timestamp     time.Time
	IsInteractive bool
	ReplyID       string
	MessageID     string
}
