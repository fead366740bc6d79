package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/config"
)

// WhatsAppSender delivers messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	apiURL string
	token  string
	fromID string // phone number id
	client *http.Client
}

func NewWhatsAppSender(cfg *config.Config) *WhatsAppSender {
	return &WhatsAppSender{
		apiURL: cfg.WhatsApp.APIURL,
		token:  cfg.WhatsApp.Token,
		fromID: cfg.WhatsApp.SenderID,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *WhatsAppSender) SendText(to, text string) error {
	return s.post(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	})
}

func (s *WhatsAppSender) SendTemplate(to, templateName string, params []string) error {
	components := []map[string]any{}
	if len(params) > 0 {
		body := make([]map[string]any, 0, len(params))
		for _, p := range params {
			body = append(body, map[string]any{"type": "text", "text": p})
		}
		components = append(components, map[string]any{"type": "body", "parameters": body})
	}
	return s.post(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":       templateName,
			"language":   map[string]any{"code": "pt_BR"},
			"components": components,
		},
	})
}

func (s *WhatsAppSender) SendInteractive(to, body string, options []string) error {
	buttons := make([]map[string]any, 0, len(options))
	for i, opt := range options {
		buttons = append(buttons, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    fmt.Sprintf("option_%d", i),
				"title": opt,
			},
		})
	}
	return s.post(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": buttons},
		},
	})
}

func (s *WhatsAppSender) post(payload map[string]any) error {
	url := fmt.Sprintf("%s/%s/messages", s.apiURL, s.fromID)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		klog.Errorf("whatsapp send failed: status=%d body=%s", resp.StatusCode, string(body))
		return fmt.Errorf("whatsapp send failed with status %d", resp.StatusCode)
	}
	return nil
}

// whatsappWebhook mirrors the Cloud API webhook envelope, reduced to
// the fields the bot consumes.
type whatsappWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						ID string `json:"id"`
					} `json:"image"`
					Audio struct {
						ID string `json:"id"`
					} `json:"audio"`
					Interactive struct {
						ButtonReply struct {
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWhatsAppWebhook normalizes a Cloud API webhook delivery. Status
// callbacks and unsupported message types produce no inbound messages.
func ParseWhatsAppWebhook(body []byte) ([]InboundMessage, error) {
	var hook whatsappWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("failed to decode whatsapp webhook: %w", err)
	}

	var msgs []InboundMessage
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				in := InboundMessage{
					Channel:   WhatsApp,
					Phone:     m.From,
					MessageID: m.ID,
				}
				switch m.Type {
				case "text":
					in.Text = m.Text.Body
				case "interactive":
					in.Text = m.Interactive.ButtonReply.Title
				case "image":
					in.MediaType = "image"
					in.MediaURL = m.Image.ID
				case "audio":
					in.MediaType = "audio"
					in.MediaURL = m.Audio.ID
				default:
					klog.V(6).Infof("ignoring whatsapp message type %q from %s", m.Type, m.From)
					continue
				}
				msgs = append(msgs, in)
			}
		}
	}
	return msgs, nil
}
