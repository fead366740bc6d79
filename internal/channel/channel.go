// Package channel normalizes messaging-channel payloads and hides the
// Meta Graph API behind a Sender the bot can call without knowing
// which channel a conversation lives on.
package channel

// Channel names.
const (
	WhatsApp  = "whatsapp"
	Instagram = "instagram"
)

// InboundMessage is the channel-agnostic shape handed to the router
// and interpreter.
type InboundMessage struct {
	Channel   string `json:"channel"`
	Phone     string `json:"phone"` // phone number or IG-scoped sender id
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
}

// Sender is the outbound capability. The interpreter and router only
// ever talk to this interface, never to an HTTP client.
type Sender interface {
	SendText(to, text string) error
	SendTemplate(to, templateName string, params []string) error
	SendInteractive(to, body string, options []string) error
}
