package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZahraKhan-147/study-bot/internal/repository"
	"github.com/ZahraKhan-147/study-bot/internal/service"
	"github.com/ZahraKhan-147/study-bot/pkg/log"
)

// ConversationHandler 处理对话查询的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Get 处理 GET /conversation/:conversationId。
// ID 格式非法返回 400，格式合法但不存在返回 404，其余失败返回 500。
func (h *ConversationHandler) Get(c *gin.Context) {
	id := c.Param("conversationId")

	conv, err := h.service.GetConversation(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidConversationID):
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		case errors.Is(err, repository.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		default:
			log.Error("查询对话失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, conv)
}
