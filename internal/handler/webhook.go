package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/config"
	"github.com/kalebecaldas/zorahapp/internal/channel"
	"github.com/kalebecaldas/zorahapp/internal/service"
)

// WebhookHandler receives Meta webhook deliveries for both channels.
type WebhookHandler struct {
	cfg           *config.Config
	conversations *service.ConversationService
}

func NewWebhookHandler(cfg *config.Config, conversations *service.ConversationService) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, conversations: conversations}
}

// VerifyWhatsApp answers the Meta subscription handshake.
func (h *WebhookHandler) VerifyWhatsApp(c *gin.Context) {
	h.verify(c, h.cfg.WhatsApp.VerifyToken)
}

func (h *WebhookHandler) VerifyInstagram(c *gin.Context) {
	h.verify(c, h.cfg.Instagram.VerifyToken)
}

func (h *WebhookHandler) verify(c *gin.Context, token string) {
	mode := c.Query("hub.mode")
	verifyToken := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && verifyToken == token {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

func (h *WebhookHandler) ReceiveWhatsApp(c *gin.Context) {
	h.receive(c, channel.ParseWhatsAppWebhook)
}

func (h *WebhookHandler) ReceiveInstagram(c *gin.Context) {
	h.receive(c, channel.ParseInstagramWebhook)
}

// receive always answers 200 so Meta does not retry-storm; processing
// failures are logged instead.
func (h *WebhookHandler) receive(c *gin.Context, parse func([]byte) ([]channel.InboundMessage, error)) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	msgs, err := parse(body)
	if err != nil {
		klog.Errorf("webhook parse failed: %v", err)
		c.Status(http.StatusOK)
		return
	}

	ctx := context.Background()
	for _, msg := range msgs {
		if err := h.conversations.HandleInbound(ctx, msg); err != nil {
			klog.Errorf("failed to handle inbound message %s: %v", msg.MessageID, err)
		}
	}
	c.Status(http.StatusOK)
}
