package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Peruvian mobiles (9 digits starting with 9, optional +51 prefix)
	// plus generic international numbers.
	phoneRe = regexp.MustCompile(`(\+?51[\s.-]?)?9\d{2}[\s.-]?\d{3}[\s.-]?\d{3}|\+\d{7,14}`)
)

// HashContact returns the hex-encoded SHA-256 hash of a channel user id
// (phone number, PSID or widget session suffix).
func HashContact(contact string) string {
	h := sha256.Sum256([]byte(contact))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Recipient names and addresses are kept for training context.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubMessages applies PII scrubbing to all messages in-place.
func ScrubMessages(msgs []Message) {
	for i := range msgs {
		msgs[i].Content = ScrubPII(msgs[i].Content)
	}
}
