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

// InstagramSender delivers messages through the Instagram Graph API
// (Messenger platform). Recipients are IG-scoped user ids.
type InstagramSender struct {
	apiURL string
	token  string
	pageID string
	client *http.Client
}

func NewInstagramSender(cfg *config.Config) *InstagramSender {
	return &InstagramSender{
		apiURL: cfg.Instagram.APIURL,
		token:  cfg.Instagram.Token,
		pageID: cfg.Instagram.SenderID,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *InstagramSender) SendText(to, text string) error {
	return s.post(map[string]any{
		"recipient": map[string]any{"id": to},
		"message":   map[string]any{"text": text},
	})
}

// SendTemplate falls back to plain text; Instagram messaging has no
// pre-approved template concept like WhatsApp's.
func (s *InstagramSender) SendTemplate(to, templateName string, params []string) error {
	text := templateName
	for _, p := range params {
		text += " " + p
	}
	return s.SendText(to, text)
}

func (s *InstagramSender) SendInteractive(to, body string, options []string) error {
	replies := make([]map[string]any, 0, len(options))
	for i, opt := range options {
		replies = append(replies, map[string]any{
			"content_type": "text",
			"title":        opt,
			"payload":      fmt.Sprintf("option_%d", i),
		})
	}
	return s.post(map[string]any{
		"recipient": map[string]any{"id": to},
		"message": map[string]any{
			"text":          body,
			"quick_replies": replies,
		},
	})
}

func (s *InstagramSender) post(payload map[string]any) error {
	url := fmt.Sprintf("%s/%s/messages?access_token=%s", s.apiURL, s.pageID, s.token)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("instagram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		klog.Errorf("instagram send failed: status=%d body=%s", resp.StatusCode, string(body))
		return fmt.Errorf("instagram send failed with status %d", resp.StatusCode)
	}
	return nil
}

type instagramWebhook struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				MID         string `json:"mid"`
				Text        string `json:"text"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// ParseInstagramWebhook normalizes an Instagram messaging webhook
// delivery into inbound messages.
func ParseInstagramWebhook(body []byte) ([]InboundMessage, error) {
	var hook instagramWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("failed to decode instagram webhook: %w", err)
	}

	var msgs []InboundMessage
	for _, entry := range hook.Entry {
		for _, m := range entry.Messaging {
			if m.Message.MID == "" {
				continue
			}
			in := InboundMessage{
				Channel:   Instagram,
				Phone:     m.Sender.ID,
				Text:      m.Message.Text,
				MessageID: m.Message.MID,
			}
			if len(m.Message.Attachments) > 0 {
				in.MediaType = m.Message.Attachments[0].Type
				in.MediaURL = m.Message.Attachments[0].Payload.URL
			}
			if in.Text == "" && in.MediaType == "" {
				klog.V(6).Infof("ignoring empty instagram message %s", in.MessageID)
				continue
			}
			msgs = append(msgs, in)
		}
	}
	return msgs, nil
}
