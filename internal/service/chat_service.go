// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ZahraKhan-147/study-bot/internal/model"
	"github.com/ZahraKhan-147/study-bot/internal/repository"
	"github.com/ZahraKhan-147/study-bot/pkg/kafka"
	"github.com/ZahraKhan-147/study-bot/pkg/llm"
	"github.com/ZahraKhan-147/study-bot/pkg/lock"
	"github.com/ZahraKhan-147/study-bot/pkg/log"
)

// systemPrompt 是每次模型调用前临时拼入的固定人设指令，永不落库。
const systemPrompt = "You are a helpful study assistant. You help students with their academic questions. " +
	"Always explain concepts step by step and use simple analogies. " +
	"If a student seems confused, offer to explain differently. " +
	"Be clear, patient, and educational in your responses."

// TurnEventPublisher 发布完成的对话轮次事件。发布失败只记录日志，不影响请求结果。
type TurnEventPublisher interface {
	PublishChatTurn(ctx context.Context, event kafka.ChatTurnEvent) error
}

// ChatService 定义了聊天编排的接口。
type ChatService interface {
	// Chat 处理一条用户消息：解析/新建对话、取尾部历史作为上下文、调用模型、
	// 落库 user/assistant 两条消息，返回回复和对话 ID。
	Chat(ctx context.Context, message string, conversationID string) (*model.ChatResult, error)
}

type chatService struct {
	repo      repository.ConversationRepository
	llmClient llm.Client
	publisher TurnEventPublisher
	locks     *lock.KeyedMutex
}

// NewChatService 创建一个新的 ChatService 实例。publisher 可为 nil。
func NewChatService(repo repository.ConversationRepository, llmClient llm.Client, publisher TurnEventPublisher) ChatService {
	return &chatService{
		repo:      repo,
		llmClient: llmClient,
		publisher: publisher,
		locks:     lock.NewKeyedMutex(),
	}
}

func (s *chatService) Chat(ctx context.Context, message string, conversationID string) (*model.ChatResult, error) {
	// 1. 解析对话：空/非法/不存在的 ID 一律静默新建
	conv, err := s.repo.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	// 2. 取尾部窗口作为上下文；读取失败降级为无历史，仅记录日志
	history, err := s.repo.RecentMessages(ctx, conv.ID, repository.DefaultRecentWindow)
	if err != nil {
		log.Errorf("加载对话历史失败: id=%s, err=%v", conv.ID.Hex(), err)
		history = nil
	}

	// 3. 组装 prompt：system 指令 + 历史（角色原样映射）+ 本轮用户消息
	messages := composeMessages(history, message)

	// 4. 调用模型；失败时不落任何消息，保证本轮对历史零副作用
	reply, err := s.llmClient.ChatMessages(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	// 5. 落库 user/assistant 两条消息。同一对话的追加对通过按 ID 加锁串行化，
	//    并发请求的轮次不会在存储中互相穿插。
	key := conv.ID.Hex()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.repo.AppendMessage(ctx, conv.ID, model.RoleUser, message); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	if err := s.repo.AppendMessage(ctx, conv.ID, model.RoleAssistant, reply); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	// 6. 发布轮次事件（尽力而为）。使用后台上下文：请求被取消也不丢事件。
	if s.publisher != nil {
		event := kafka.ChatTurnEvent{
			ConversationID: key,
			Question:       message,
			Answer:         reply,
			Timestamp:      time.Now(),
		}
		if err := s.publisher.PublishChatTurn(context.Background(), event); err != nil {
			log.Errorf("发布对话轮次事件失败: id=%s, err=%v", key, err)
		}
	}

	return &model.ChatResult{Reply: reply, ConversationID: key}, nil
}

func composeMessages(history []model.Message, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: string(model.RoleUser), Content: userInput})
	return msgs
}
