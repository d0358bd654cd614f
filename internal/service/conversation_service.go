package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ZahraKhan-147/study-bot/internal/model"
	"github.com/ZahraKhan-147/study-bot/internal/repository"
)

// ErrInvalidConversationID 表示读取路径上传入的对话 ID 不是合法的十六进制 ObjectID。
// 区别于聊天路径：那里非法 ID 静默回退到新建对话。
var ErrInvalidConversationID = errors.New("invalid conversation id")

// ConversationService 定义了对话查询的接口。
type ConversationService interface {
	// GetConversation 返回完整对话记录。ID 非法返回 ErrInvalidConversationID，
	// 格式合法但不存在返回 repository.ErrConversationNotFound。
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

func (s *conversationService) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConversationID, id)
	}
	return s.repo.FindByID(ctx, oid)
}
