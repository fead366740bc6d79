package channel

import "testing"

func TestParseWhatsAppWebhook(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [
						{"from": "5592999990000", "id": "wamid.1", "type": "text", "text": {"body": "oi, quero agendar"}},
						{"from": "5592999990000", "id": "wamid.2", "type": "interactive", "interactive": {"button_reply": {"title": "Acupuntura"}}},
						{"from": "5592999990000", "id": "wamid.3", "type": "audio", "audio": {"id": "media-123"}},
						{"from": "5592999990000", "id": "wamid.4", "type": "sticker"}
					]
				}
			}]
		}]
	}`)

	msgs, err := ParseWhatsAppWebhook(body)
	if err != nil {
		t.Fatalf("ParseWhatsAppWebhook: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (sticker ignored)", len(msgs))
	}

	if msgs[0].Channel != WhatsApp || msgs[0].Text != "oi, quero agendar" || msgs[0].MessageID != "wamid.1" {
		t.Fatalf("text message = %+v", msgs[0])
	}
	if msgs[1].Text != "Acupuntura" {
		t.Fatalf("button reply should surface as text, got %+v", msgs[1])
	}
	if msgs[2].MediaType != "audio" || msgs[2].MediaURL != "media-123" {
		t.Fatalf("audio message = %+v", msgs[2])
	}
}

func TestParseWhatsAppWebhookStatusCallback(t *testing.T) {
	// delivery receipts carry no messages array
	body := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.9","status":"delivered"}]}}]}]}`)

	msgs, err := ParseWhatsAppWebhook(body)
	if err != nil {
		t.Fatalf("ParseWhatsAppWebhook: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("status callback produced %d messages", len(msgs))
	}
}

func TestParseWhatsAppWebhookBadJSON(t *testing.T) {
	if _, err := ParseWhatsAppWebhook([]byte("not json")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseInstagramWebhook(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"messaging": [
				{"sender": {"id": "ig-user-1"}, "message": {"mid": "m1", "text": "vocês atendem sábado?"}},
				{"sender": {"id": "ig-user-1"}, "message": {"mid": "m2", "attachments": [{"type": "image", "payload": {"url": "https://cdn.example/img.jpg"}}]}},
				{"sender": {"id": "ig-user-1"}, "read": {"watermark": 123}}
			]
		}]
	}`)

	msgs, err := ParseInstagramWebhook(body)
	if err != nil {
		t.Fatalf("ParseInstagramWebhook: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (read receipt ignored)", len(msgs))
	}
	if msgs[0].Channel != Instagram || msgs[0].Phone != "ig-user-1" || msgs[0].Text != "vocês atendem sábado?" {
		t.Fatalf("text message = %+v", msgs[0])
	}
	if msgs[1].MediaType != "image" || msgs[1].MediaURL != "https://cdn.example/img.jpg" {
		t.Fatalf("attachment message = %+v", msgs[1])
	}
}
