// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZahraKhan-147/study-bot/internal/service"
	"github.com/ZahraKhan-147/study-bot/pkg/log"
)

// ChatRequest 是 POST /chat 的请求体。
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversationId"`
}

// ChatResponse 是 POST /chat 的响应体。
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

// ChatHandler 处理聊天相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Welcome 处理 GET /，返回静态欢迎信息。
func Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the Study Bot API! Use /chat to talk to the bot.",
	})
}

// Chat 处理 POST /chat。请求体非法返回 400；编排过程中的任何失败
// （模型调用、存储）统一转换为 500，detail 携带原始错误信息。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), req.Message, req.ConversationID)
	if err != nil {
		log.Error("处理聊天请求失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:       result.Reply,
		ConversationID: result.ConversationID,
	})
}
