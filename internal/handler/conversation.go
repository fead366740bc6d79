package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/service"
)

type ConversationHandler struct {
	service *service.ConversationService
}

func NewConversationHandler(s *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: s}
}

func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.service.List(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	conv, err := h.service.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	msgs, err := h.service.Messages(id, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type transferRequest struct {
	Queue  string `json:"queue" binding:"required"`
	Reason string `json:"reason"`
}

func (h *ConversationHandler) Transfer(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Transfer(context.Background(), id, req.Queue, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transferred"})
}

type assignRequest struct {
	Agent string `json:"agent" binding:"required"`
}

func (h *ConversationHandler) Assign(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Assign(id, req.Agent); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assigned"})
}

type replyRequest struct {
	Agent string `json:"agent"`
	Text  string `json:"text" binding:"required"`
}

func (h *ConversationHandler) Reply(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.AgentReply(context.Background(), id, req.Agent, req.Text); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sent"})
}

func (h *ConversationHandler) Close(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	if err := h.service.Close(context.Background(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "closed"})
}
